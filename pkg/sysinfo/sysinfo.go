package sysinfo

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/distatus/battery"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// cpuSampleInterval is how long usage percentages are sampled for.
const cpuSampleInterval = time.Second

// Stats abstracts system metric collection for testability. Every call
// fetches live data; nothing is cached.
type Stats interface {
	Host(ctx context.Context) (*HostReading, error)
	CPU(ctx context.Context) (*CPUReading, error)
	Memory(ctx context.Context) (*MemoryReading, error)
	Disk(ctx context.Context) (*DiskReading, error)
	Network(ctx context.Context) (*NetworkReading, error)
	Processes(ctx context.Context, limit int) (*ProcessListReading, error)
	Battery(ctx context.Context) (*BatteryReading, error)
	Uptime(ctx context.Context) (*UptimeReading, error)
}

// SystemStats implements Stats using gopsutil and distatus/battery.
type SystemStats struct{}

var _ Stats = (*SystemStats)(nil)

func (s *SystemStats) Host(ctx context.Context) (*HostReading, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("host info: %w", err)
	}
	return &HostReading{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
		GoVersion:       runtime.Version(),
		ProcessCount:    info.Procs,
	}, nil
}

func (s *SystemStats) CPU(ctx context.Context) (*CPUReading, error) {
	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("cpu counts: %w", err)
	}
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cpu counts: %w", err)
	}
	perCore, err := cpu.PercentWithContext(ctx, cpuSampleInterval, true)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}

	reading := &CPUReading{
		PhysicalCores: physical,
		LogicalCores:  logical,
		PerCoreUsage:  make([]float64, len(perCore)),
	}
	var total float64
	for i, v := range perCore {
		reading.PerCoreUsage[i] = round2(v)
		total += v
	}
	if len(perCore) > 0 {
		reading.UsagePercent = round2(total / float64(len(perCore)))
	}

	// Model and frequency are best effort; some platforms cannot report them.
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		reading.ModelName = infos[0].ModelName
		reading.FrequencyMHz = round2(infos[0].Mhz)
	}

	return reading, nil
}

func (s *SystemStats) Memory(ctx context.Context) (*MemoryReading, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("swap memory: %w", err)
	}
	return &MemoryReading{
		TotalGB:      toGB(vm.Total),
		AvailableGB:  toGB(vm.Available),
		UsedGB:       toGB(vm.Used),
		UsagePercent: round2(vm.UsedPercent),
		SwapTotalGB:  toGB(swap.Total),
		SwapUsedGB:   toGB(swap.Used),
		SwapPercent:  round2(swap.UsedPercent),
	}, nil
}

func (s *SystemStats) Disk(ctx context.Context) (*DiskReading, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("disk partitions: %w", err)
	}
	reading := &DiskReading{}
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			// Some mountpoints are not readable by the current user.
			continue
		}
		reading.Partitions = append(reading.Partitions, PartitionReading{
			Device:       p.Device,
			Mountpoint:   p.Mountpoint,
			Filesystem:   p.Fstype,
			TotalGB:      toGB(usage.Total),
			UsedGB:       toGB(usage.Used),
			FreeGB:       toGB(usage.Free),
			UsagePercent: round2(usage.UsedPercent),
		})
	}
	return reading, nil
}

func (s *SystemStats) Network(ctx context.Context) (*NetworkReading, error) {
	ifaces, err := gnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("network interfaces: %w", err)
	}

	hostname, _ := os.Hostname()
	interfaces := make(map[string][]string, len(ifaces))
	for _, ifc := range ifaces {
		addrs := make([]string, 0, len(ifc.Addrs))
		for _, a := range ifc.Addrs {
			addrs = append(addrs, a.Addr)
		}
		interfaces[ifc.Name] = addrs
	}

	reading := &NetworkReading{
		Hostname:   hostname,
		LocalIP:    firstGlobalIPv4(ifaces),
		Interfaces: interfaces,
	}
	if reading.LocalIP == "" {
		reading.LocalIP = "unable to resolve"
	}
	if counters, err := gnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		reading.BytesSentMB = toMB(counters[0].BytesSent)
		reading.BytesReceivedMB = toMB(counters[0].BytesRecv)
	}
	return reading, nil
}

func (s *SystemStats) Processes(ctx context.Context, limit int) (*ProcessListReading, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process list: %w", err)
	}

	var readings []ProcessReading
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Process exited or access denied; skip it like the rest.
			continue
		}
		memPct, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		readings = append(readings, ProcessReading{
			PID:           p.Pid,
			Name:          name,
			MemoryPercent: round2(float64(memPct)),
			CPUPercent:    round2(cpuPct),
		})
	}

	sort.Slice(readings, func(i, j int) bool {
		return readings[i].MemoryPercent > readings[j].MemoryPercent
	})
	if limit > 0 && len(readings) > limit {
		readings = readings[:limit]
	}
	return &ProcessListReading{TopByMemory: readings}, nil
}

func (s *SystemStats) Battery(_ context.Context) (*BatteryReading, error) {
	batts, err := battery.GetAll()
	if len(batts) == 0 {
		if err != nil {
			return nil, fmt.Errorf("battery: %w", err)
		}
		return &BatteryReading{Status: "no battery detected (desktop or not available)"}, nil
	}

	b := batts[0]
	state := b.State.String()
	reading := &BatteryReading{
		State:        state,
		PowerPlugged: pluggedState(state),
	}
	if b.Full > 0 {
		reading.Percent = round2(b.Current / b.Full * 100)
	}
	if state == "Discharging" && b.ChargeRate > 0 {
		reading.TimeLeftMinutes = round2(b.Current / b.ChargeRate * 60)
	}
	return reading, nil
}

func (s *SystemStats) Uptime(ctx context.Context) (*UptimeReading, error) {
	bootSec, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("boot time: %w", err)
	}
	boot := time.Unix(int64(bootSec), 0)
	return &UptimeReading{
		BootTime: boot.Format("2006-01-02 15:04:05"),
		Uptime:   FormatUptime(time.Since(boot)),
	}, nil
}

// FormatUptime renders a duration as "Nd Nh Nm Ns".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSec := int64(d.Seconds())
	days := totalSec / 86400
	hours := totalSec % 86400 / 3600
	minutes := totalSec % 3600 / 60
	seconds := totalSec % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// pluggedState reports whether a battery state implies external power.
// Idle means plugged in but neither charging nor full.
func pluggedState(state string) bool {
	switch state {
	case "Charging", "Full", "Idle":
		return true
	}
	return false
}

// firstGlobalIPv4 returns the first non-loopback, non-link-local IPv4
// address found across interfaces, or "" when none exists.
func firstGlobalIPv4(ifaces gnet.InterfaceStatList) string {
	for _, ifc := range ifaces {
		for _, a := range ifc.Addrs {
			addr := a.Addr
			if i := strings.IndexByte(addr, '/'); i >= 0 {
				addr = addr[:i]
			}
			ip := net.ParseIP(addr)
			if ip == nil || ip.To4() == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			return ip.String()
		}
	}
	return ""
}

func toGB(b uint64) float64 {
	return round2(float64(b) / (1 << 30))
}

func toMB(b uint64) float64 {
	return round2(float64(b) / (1 << 20))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
