package tools

import (
	"context"
	"fmt"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// DiskTool reports per-partition storage usage. Partitions the current user
// cannot stat are omitted rather than failing the whole reading.
type DiskTool struct {
	stats sysinfo.Stats
}

func NewDiskTool(stats sysinfo.Stats) *DiskTool {
	return &DiskTool{stats: stats}
}

func (t *DiskTool) Name() string {
	return "get_disk_info"
}

func (t *DiskTool) Description() string {
	return "Get disk partition and storage usage information."
}

func (t *DiskTool) Parameters() map[string]interface{} {
	return noParams()
}

func (t *DiskTool) Execute(ctx context.Context, _ map[string]interface{}) *types.ToolResult {
	reading, err := t.stats.Disk(ctx)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("get_disk_info: %v", err))
	}
	return jsonResult(reading)
}
