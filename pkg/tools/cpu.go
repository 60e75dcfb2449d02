package tools

import (
	"context"
	"fmt"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// CPUTool reports CPU usage, core counts, and frequency. Usage percentages
// are sampled live, so a call blocks for the sampling interval.
type CPUTool struct {
	stats sysinfo.Stats
}

func NewCPUTool(stats sysinfo.Stats) *CPUTool {
	return &CPUTool{stats: stats}
}

func (t *CPUTool) Name() string {
	return "get_cpu_info"
}

func (t *CPUTool) Description() string {
	return "Get CPU usage, core count, and frequency information."
}

func (t *CPUTool) Parameters() map[string]interface{} {
	return noParams()
}

func (t *CPUTool) Execute(ctx context.Context, _ map[string]interface{}) *types.ToolResult {
	reading, err := t.stats.CPU(ctx)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("get_cpu_info: %v", err))
	}
	return jsonResult(reading)
}
