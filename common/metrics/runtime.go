package metrics

import (
	"context"
	"runtime"
	"sync"
)

// SystemInfo holds static system information captured once at startup.
type SystemInfo struct {
	OS                string `json:"os"`
	OSVersion         string `json:"os_version"`
	Arch              string `json:"arch"`
	Hostname          string `json:"hostname"`
	CPUCores          int    `json:"cpu_cores"`
	CPULogical        int    `json:"cpu_logical"`
	TotalMemoryMB     uint64 `json:"total_memory_mb"`
	GoVersion         string `json:"go_version"`
	InContainer       bool   `json:"in_container"`
	ContainerRuntime  string `json:"container_runtime,omitempty"`
}

var (
	systemInfo     *SystemInfo
	systemInfoOnce sync.Once
)

// GetSystemInfo returns cached system information (captured once), logged
// by cmd/flowr at startup alongside the manifest being run.
func GetSystemInfo() *SystemInfo {
	systemInfoOnce.Do(func() {
		systemInfo = captureSystemInfo()
	})
	return systemInfo
}

// RuntimeMetrics captures memory and goroutine counts around one job's
// execution, handed to executor.Pool's MetricsHook.
type RuntimeMetrics struct {
	MemoryStartMB  float64
	MemoryEndMB    float64
	GoroutineStart int
	GoroutineEnd   int
}

// CaptureStart captures runtime metrics at the beginning of a job.
func CaptureStart(ctx context.Context) *RuntimeMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &RuntimeMetrics{
		MemoryStartMB:  float64(m.Alloc) / 1024 / 1024,
		GoroutineStart: runtime.NumGoroutine(),
	}
}

// Finalize completes the metrics capture at the end of a job.
func (rm *RuntimeMetrics) Finalize(ctx context.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	rm.MemoryEndMB = float64(m.Alloc) / 1024 / 1024
	rm.GoroutineEnd = runtime.NumGoroutine()
}

// ToMap converts RuntimeMetrics to a map, e.g. for a structured log line.
func (rm *RuntimeMetrics) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"memory_start_mb": rm.MemoryStartMB,
		"memory_end_mb":   rm.MemoryEndMB,
		"goroutine_start": rm.GoroutineStart,
		"goroutine_end":   rm.GoroutineEnd,
	}
}

// ToMap converts SystemInfo to a map for startup logging.
func (si *SystemInfo) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"os":              si.OS,
		"os_version":      si.OSVersion,
		"arch":            si.Arch,
		"hostname":        si.Hostname,
		"cpu_cores":       si.CPUCores,
		"cpu_logical":     si.CPULogical,
		"total_memory_mb": si.TotalMemoryMB,
		"go_version":      si.GoVersion,
		"in_container":    si.InContainer,
	}
	if si.ContainerRuntime != "" {
		m["container_runtime"] = si.ContainerRuntime
	}
	return m
}
