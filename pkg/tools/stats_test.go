package tools

import (
	"context"

	"github.com/jwalton/machbot/pkg/sysinfo"
)

// fakeStats returns canned readings so tool output can be checked verbatim.
type fakeStats struct {
	host    *sysinfo.HostReading
	cpu     *sysinfo.CPUReading
	cpuErr  error
	mem     *sysinfo.MemoryReading
	disk    *sysinfo.DiskReading
	network *sysinfo.NetworkReading
	procs   *sysinfo.ProcessListReading
	batt    *sysinfo.BatteryReading
	battErr error
	uptime  *sysinfo.UptimeReading

	lastProcessLimit int
}

var _ sysinfo.Stats = (*fakeStats)(nil)

func (f *fakeStats) Host(context.Context) (*sysinfo.HostReading, error) {
	return f.host, nil
}

func (f *fakeStats) CPU(context.Context) (*sysinfo.CPUReading, error) {
	return f.cpu, f.cpuErr
}

func (f *fakeStats) Memory(context.Context) (*sysinfo.MemoryReading, error) {
	return f.mem, nil
}

func (f *fakeStats) Disk(context.Context) (*sysinfo.DiskReading, error) {
	return f.disk, nil
}

func (f *fakeStats) Network(context.Context) (*sysinfo.NetworkReading, error) {
	return f.network, nil
}

func (f *fakeStats) Processes(_ context.Context, limit int) (*sysinfo.ProcessListReading, error) {
	f.lastProcessLimit = limit
	return f.procs, nil
}

func (f *fakeStats) Battery(context.Context) (*sysinfo.BatteryReading, error) {
	return f.batt, f.battErr
}

func (f *fakeStats) Uptime(context.Context) (*sysinfo.UptimeReading, error) {
	return f.uptime, nil
}
