// Package sizing computes the default worker count and per-file timeout
// budget from host resources, per spec §4.9. pCloud transfers are I/O-bound,
// so CPU count alone under-estimates useful parallelism; each in-flight
// worker carries a streaming buffer and a connection, costing roughly 50 MiB
// at peak, which bounds how far available memory can push worker count up.
package sizing

import (
	"math"
	"runtime"
	"time"
)

const (
	minWorkers = 1
	maxWorkers = 32

	// workersPerMemoryGiB caps how many workers available memory can justify.
	workersPerMemoryGiB = 20
	// cpuMultiplier caps how many workers CPU count can justify.
	cpuMultiplier = 2
)

// TimeoutConfig holds the defaults for the per-file timeout formula of
// spec §4.5: T_file = clamp(base + ceil(size_MB)*per_MB, 0, max).
type TimeoutConfig struct {
	Base  time.Duration
	PerMB time.Duration
	Max   time.Duration
}

// DefaultTimeoutConfig returns the spec's stated defaults: 60s base, 2s/MiB,
// 600s cap.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Base:  60 * time.Second,
		PerMB: 2 * time.Second,
		Max:   600 * time.Second,
	}
}

// FileTimeout computes the per-file timeout for a file of sizeBytes under
// cfg, clamped to [0, cfg.Max].
func (cfg TimeoutConfig) FileTimeout(sizeBytes int64) time.Duration {
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	sizeMB := math.Ceil(float64(sizeBytes) / (1024 * 1024))
	budget := cfg.Base + time.Duration(sizeMB)*cfg.PerMB
	if budget < 0 {
		budget = 0
	}
	if budget > cfg.Max {
		budget = cfg.Max
	}
	return budget
}

// DefaultWorkerCount returns clamp(min(2*cpu_cores, 20*available_memory_GiB), 1, 32),
// using runtime.NumCPU for the CPU term and availableMemoryGiB (supplied by
// the caller, since Go's standard library has no portable "available
// memory" query) for the memory term.
func DefaultWorkerCount(availableMemoryGiB float64) int {
	cpuTerm := cpuMultiplier * runtime.NumCPU()
	memTerm := int(workersPerMemoryGiB * availableMemoryGiB)

	workers := cpuTerm
	if memTerm < workers {
		workers = memTerm
	}
	return Clamp(workers)
}

// Clamp bounds an explicit or computed worker count into [1, 32], per the
// "library additionally clamps the explicit value" rule in spec §4.9.
func Clamp(workers int) int {
	if workers < minWorkers {
		return minWorkers
	}
	if workers > maxWorkers {
		return maxWorkers
	}
	return workers
}
