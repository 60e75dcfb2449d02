package tools

import (
	"context"
	"fmt"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// MemoryTool reports RAM and swap usage.
type MemoryTool struct {
	stats sysinfo.Stats
}

func NewMemoryTool(stats sysinfo.Stats) *MemoryTool {
	return &MemoryTool{stats: stats}
}

func (t *MemoryTool) Name() string {
	return "get_memory_info"
}

func (t *MemoryTool) Description() string {
	return "Get RAM and swap memory usage."
}

func (t *MemoryTool) Parameters() map[string]interface{} {
	return noParams()
}

func (t *MemoryTool) Execute(ctx context.Context, _ map[string]interface{}) *types.ToolResult {
	reading, err := t.stats.Memory(ctx)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("get_memory_info: %v", err))
	}
	return jsonResult(reading)
}
