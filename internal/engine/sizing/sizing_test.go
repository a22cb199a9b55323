package sizing

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileTimeout(t *testing.T) {
	cfg := DefaultTimeoutConfig()

	tests := []struct {
		name     string
		size     int64
		expected time.Duration
	}{
		{"zero bytes still pays the base", 0, 60 * time.Second},
		{"negative size clamps to zero bytes", -1, 60 * time.Second},
		{"one MiB rounds up from a partial MiB", 1024*1024 - 1, 62 * time.Second},
		{"exact one MiB", 1024 * 1024, 62 * time.Second},
		{"huge file caps at max", 10 * 1024 * 1024 * 1024, 600 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cfg.FileTimeout(tt.size))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(0))
	assert.Equal(t, 1, Clamp(-5))
	assert.Equal(t, 32, Clamp(100))
	assert.Equal(t, 8, Clamp(8))
}

func TestDefaultWorkerCountRespectsCPUAndMemoryCeiling(t *testing.T) {
	// With near-zero memory, the memory term dominates and clamps to 1.
	assert.Equal(t, 1, DefaultWorkerCount(0))

	// With abundant memory, the CPU term dominates, bounded by runtime.NumCPU.
	workers := DefaultWorkerCount(1000)
	assert.Equal(t, Clamp(2*runtime.NumCPU()), workers)
}

func TestDefaultWorkerCountNeverExceedsMax(t *testing.T) {
	assert.LessOrEqual(t, DefaultWorkerCount(1e9), 32)
}
