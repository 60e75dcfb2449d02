package tools

import (
	"context"
	"fmt"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// SystemTool reports basic host identification.
type SystemTool struct {
	stats sysinfo.Stats
}

func NewSystemTool(stats sysinfo.Stats) *SystemTool {
	return &SystemTool{stats: stats}
}

func (t *SystemTool) Name() string {
	return "get_system_info"
}

func (t *SystemTool) Description() string {
	return "Get basic system information like OS, hostname, kernel version, and architecture."
}

func (t *SystemTool) Parameters() map[string]interface{} {
	return noParams()
}

func (t *SystemTool) Execute(ctx context.Context, _ map[string]interface{}) *types.ToolResult {
	reading, err := t.stats.Host(ctx)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("get_system_info: %v", err))
	}
	return jsonResult(reading)
}
