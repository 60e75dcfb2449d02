package tools

import (
	"context"
	"fmt"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// UptimeTool reports boot time and elapsed uptime.
type UptimeTool struct {
	stats sysinfo.Stats
}

func NewUptimeTool(stats sysinfo.Stats) *UptimeTool {
	return &UptimeTool{stats: stats}
}

func (t *UptimeTool) Name() string {
	return "get_uptime"
}

func (t *UptimeTool) Description() string {
	return "Get system boot time and uptime duration."
}

func (t *UptimeTool) Parameters() map[string]interface{} {
	return noParams()
}

func (t *UptimeTool) Execute(ctx context.Context, _ map[string]interface{}) *types.ToolResult {
	reading, err := t.stats.Uptime(ctx)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("get_uptime: %v", err))
	}
	return jsonResult(reading)
}
