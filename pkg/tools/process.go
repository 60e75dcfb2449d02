package tools

import (
	"context"
	"fmt"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// ProcessTool reports the top processes by memory usage. It is the only tool
// with an argument: an optional result limit.
type ProcessTool struct {
	stats sysinfo.Stats
}

func NewProcessTool(stats sysinfo.Stats) *ProcessTool {
	return &ProcessTool{stats: stats}
}

func (t *ProcessTool) Name() string {
	return "get_process_info"
}

func (t *ProcessTool) Description() string {
	return "Get the top running processes ranked by memory usage."
}

func (t *ProcessTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Number of processes to return. Default: %d.", types.DefaultProcessLimit),
			},
		},
	}
}

func (t *ProcessTool) Execute(ctx context.Context, args map[string]interface{}) *types.ToolResult {
	limit := types.DefaultProcessLimit
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}
	if limit <= 0 {
		limit = types.DefaultProcessLimit
	}
	if limit > types.MaxProcessLimit {
		limit = types.MaxProcessLimit
	}

	reading, err := t.stats.Processes(ctx, limit)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("get_process_info: %v", err))
	}
	return jsonResult(reading)
}
