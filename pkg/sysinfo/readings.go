package sysinfo

// HostReading holds basic system identification.
type HostReading struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	GoVersion       string `json:"go_version"`
	ProcessCount    uint64 `json:"process_count"`
}

// CPUReading holds CPU usage and identification.
type CPUReading struct {
	PhysicalCores int       `json:"physical_cores"`
	LogicalCores  int       `json:"logical_cores"`
	ModelName     string    `json:"model_name,omitempty"`
	FrequencyMHz  float64   `json:"frequency_mhz,omitempty"`
	UsagePercent  float64   `json:"cpu_usage_percent"`
	PerCoreUsage  []float64 `json:"per_core_usage"`
}

// MemoryReading holds RAM and swap usage.
type MemoryReading struct {
	TotalGB      float64 `json:"total_gb"`
	AvailableGB  float64 `json:"available_gb"`
	UsedGB       float64 `json:"used_gb"`
	UsagePercent float64 `json:"usage_percent"`
	SwapTotalGB  float64 `json:"swap_total_gb"`
	SwapUsedGB   float64 `json:"swap_used_gb"`
	SwapPercent  float64 `json:"swap_percent"`
}

// PartitionReading holds usage for a single mounted partition.
type PartitionReading struct {
	Device       string  `json:"device"`
	Mountpoint   string  `json:"mountpoint"`
	Filesystem   string  `json:"filesystem"`
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	FreeGB       float64 `json:"free_gb"`
	UsagePercent float64 `json:"usage_percent"`
}

// DiskReading holds usage for all readable partitions.
type DiskReading struct {
	Partitions []PartitionReading `json:"partitions"`
}

// NetworkReading holds interface addresses and transfer counters.
type NetworkReading struct {
	Hostname        string              `json:"hostname"`
	LocalIP         string              `json:"local_ip"`
	Interfaces      map[string][]string `json:"interfaces"`
	BytesSentMB     float64             `json:"bytes_sent_mb"`
	BytesReceivedMB float64             `json:"bytes_received_mb"`
}

// ProcessReading holds usage for a single process.
type ProcessReading struct {
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	MemoryPercent float64 `json:"memory_percent"`
	CPUPercent    float64 `json:"cpu_percent"`
}

// ProcessListReading holds the top processes by memory usage.
type ProcessListReading struct {
	TopByMemory []ProcessReading `json:"top_processes_by_memory"`
}

// BatteryReading holds battery charge state. Status is set instead of the
// other fields when no battery is present.
type BatteryReading struct {
	Percent         float64 `json:"percent,omitempty"`
	PowerPlugged    bool    `json:"power_plugged"`
	State           string  `json:"state,omitempty"`
	TimeLeftMinutes float64 `json:"time_left_minutes,omitempty"`
	Status          string  `json:"status,omitempty"`
}

// UptimeReading holds boot time and elapsed uptime.
type UptimeReading struct {
	BootTime string `json:"boot_time"`
	Uptime   string `json:"uptime"`
}
