package tools

import (
	"context"
	"fmt"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// NetworkTool reports interfaces, addresses, and transfer counters.
type NetworkTool struct {
	stats sysinfo.Stats
}

func NewNetworkTool(stats sysinfo.Stats) *NetworkTool {
	return &NetworkTool{stats: stats}
}

func (t *NetworkTool) Name() string {
	return "get_network_info"
}

func (t *NetworkTool) Description() string {
	return "Get network interfaces, IP addresses, and data transfer stats."
}

func (t *NetworkTool) Parameters() map[string]interface{} {
	return noParams()
}

func (t *NetworkTool) Execute(ctx context.Context, _ map[string]interface{}) *types.ToolResult {
	reading, err := t.stats.Network(ctx)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("get_network_info: %v", err))
	}
	return jsonResult(reading)
}
