package tools

import (
	"context"
	"fmt"

	"github.com/jwalton/machbot/pkg/sysinfo"
	"github.com/jwalton/machbot/pkg/types"
)

// BatteryTool reports battery charge level and AC state. Desktops without a
// battery get a descriptive status instead of an error.
type BatteryTool struct {
	stats sysinfo.Stats
}

func NewBatteryTool(stats sysinfo.Stats) *BatteryTool {
	return &BatteryTool{stats: stats}
}

func (t *BatteryTool) Name() string {
	return "get_battery_info"
}

func (t *BatteryTool) Description() string {
	return "Get battery status and charge level (for laptops)."
}

func (t *BatteryTool) Parameters() map[string]interface{} {
	return noParams()
}

func (t *BatteryTool) Execute(ctx context.Context, _ map[string]interface{}) *types.ToolResult {
	reading, err := t.stats.Battery(ctx)
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("get_battery_info: %v", err))
	}
	return jsonResult(reading)
}
