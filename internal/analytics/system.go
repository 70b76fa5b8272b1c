package analytics

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot holds system-wide resource usage at one instant.
// Every field is best-effort: a probe that fails leaves its zero value.
type SystemSnapshot struct {
	CollectedAt time.Time `json:"collected_at"`

	CPUPercent float64 `json:"cpu_percent"`

	MemTotalMB float64 `json:"mem_total_mb"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemPercent float64 `json:"mem_percent"`

	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskPercent float64 `json:"disk_percent"`

	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`
}

// SystemSampler collects system snapshots. CPU usage is computed from
// the delta between consecutive samples; the first sample reports zero.
type SystemSampler struct {
	mu           sync.Mutex
	lastCPUTotal float64
	lastCPUIdle  float64
}

// NewSystemSampler creates a sampler.
func NewSystemSampler() *SystemSampler {
	return &SystemSampler{}
}

// Sample gathers current system statistics.
func (s *SystemSampler) Sample() SystemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SystemSnapshot{CollectedAt: time.Now().UTC()}
	s.sampleCPU(&snap)
	sampleMemory(&snap)
	sampleDisk(&snap)
	sampleLoad(&snap)
	return snap
}

func (s *SystemSampler) sampleCPU(snap *SystemSnapshot) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return
	}

	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	idle := t.Idle + t.Iowait

	if s.lastCPUTotal > 0 {
		totalDelta := total - s.lastCPUTotal
		idleDelta := idle - s.lastCPUIdle
		if totalDelta > 0 {
			snap.CPUPercent = (1 - idleDelta/totalDelta) * 100
		}
	}
	s.lastCPUTotal = total
	s.lastCPUIdle = idle
}

func sampleMemory(snap *SystemSnapshot) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	snap.MemTotalMB = float64(vm.Total) / 1024 / 1024
	snap.MemUsedMB = float64(vm.Used) / 1024 / 1024
	snap.MemPercent = vm.UsedPercent
}

func sampleDisk(snap *SystemSnapshot) {
	usage, err := disk.Usage(rootDiskPath())
	if err != nil {
		return
	}
	snap.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
	snap.DiskUsedGB = float64(usage.Used) / 1024 / 1024 / 1024
	snap.DiskPercent = usage.UsedPercent
}

func sampleLoad(snap *SystemSnapshot) {
	avg, err := load.Avg()
	if err != nil {
		return
	}
	snap.LoadAvg1 = avg.Load1
	snap.LoadAvg5 = avg.Load5
	snap.LoadAvg15 = avg.Load15
}

func rootDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + "\\"
	}
	return "/"
}
