// Package progress is the external progress sink of spec §6: a small,
// dependency-free aggregator that turns per-file byte callbacks from
// internal/engine/transfer into a periodic, throttled summary a CLI or
// other caller can render.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle stage of a single file within a batch.
type State int

const (
	StatePending State = iota
	StateActive
	StateCompleted
	StateFailed
	StateSkipped
)

// Event describes one file's progress at a point in time.
type Event struct {
	FileName   string
	BytesDone  uint64
	BytesTotal uint64
	State      State
	Message    string
}

// Sink receives progress events. Implementations must be safe for
// concurrent use: transfer.Run invokes the callback from worker goroutines.
type Sink interface {
	Update(Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Update(e Event) { f(e) }

// minReportInterval is the minimum spacing between two Summary snapshots
// delivered to a Reporter, across all files of the batch, so a fast transfer
// doesn't flood a terminal with per-chunk updates.
const minReportInterval = 250 * time.Millisecond

// Summary is a point-in-time snapshot across every file the Aggregator has
// seen in the current batch.
type Summary struct {
	ActiveFiles      int
	CompletedFiles   int
	FailedFiles      int
	SkippedFiles     int
	TotalBytes       uint64
	TransferredBytes uint64
	BytesPerSecond   float64
}

// Aggregator accumulates per-file Events into a batch-wide Summary and
// forwards throttled snapshots to an optional Reporter.
type Aggregator struct {
	mu       sync.Mutex
	perFile  map[string]fileState
	lastSent int64 // unix nano, accessed atomically

	lastBytes uint64
	lastTime  time.Time

	Reporter func(Summary)
}

type fileState struct {
	done  uint64
	total uint64
	state State
}

// NewAggregator builds an Aggregator. Reporter, when non-nil, is invoked
// with a Summary no more often than minReportInterval.
func NewAggregator(reporter func(Summary)) *Aggregator {
	return &Aggregator{
		perFile:  make(map[string]fileState),
		lastTime: time.Now(),
		Reporter: reporter,
	}
}

// Sink returns a Sink that feeds events into this Aggregator.
func (a *Aggregator) Sink() Sink {
	return SinkFunc(a.Update)
}

// Update records one file's progress and, if the throttle window has
// elapsed, emits a Summary to Reporter.
func (a *Aggregator) Update(e Event) {
	a.mu.Lock()
	a.perFile[e.FileName] = fileState{done: e.BytesDone, total: e.BytesTotal, state: e.State}
	summary := a.summaryLocked()
	a.mu.Unlock()

	if a.Reporter == nil {
		return
	}
	if !a.shouldReport() {
		return
	}
	a.Reporter(summary)
}

func (a *Aggregator) summaryLocked() Summary {
	var s Summary
	for _, fs := range a.perFile {
		s.TotalBytes += fs.total
		s.TransferredBytes += fs.done
		switch fs.state {
		case StateActive, StatePending:
			s.ActiveFiles++
		case StateCompleted:
			s.CompletedFiles++
		case StateFailed:
			s.FailedFiles++
		case StateSkipped:
			s.SkippedFiles++
		}
	}

	now := time.Now()
	elapsed := now.Sub(a.lastTime).Seconds()
	if elapsed > 0 {
		s.BytesPerSecond = float64(s.TransferredBytes-a.lastBytes) / elapsed
	}
	a.lastBytes = s.TransferredBytes
	a.lastTime = now
	return s
}

func (a *Aggregator) shouldReport() bool {
	now := time.Now().UnixNano()
	prev := atomic.LoadInt64(&a.lastSent)
	if now-prev < int64(minReportInterval) {
		return false
	}
	return atomic.CompareAndSwapInt64(&a.lastSent, prev, now)
}

// Snapshot returns the current Summary regardless of the report throttle.
func (a *Aggregator) Snapshot() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}
