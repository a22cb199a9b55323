// Package transfer implements C5: the bounded-pool coordinator that drives
// a batch of file transfers with per-file timeouts, retries, progress
// fan-out, and cooperative cancellation, per spec §4.5.
//
// The "cooperative single-threaded event loop" of spec §5 describes the
// Rust/tokio reference implementation; here it is realized as a bounded
// goroutine pool (github.com/sourcegraph/conc/pool) plus context-based
// cancellation, which gives the same suspension-point semantics (every
// blocking I/O call already yields the Go scheduler) without an explicit
// cooperative-yield primitive.
package transfer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcerr"
	"github.com/pulsepoint/pulsepoint/internal/engine/sizing"
	"github.com/pulsepoint/pulsepoint/internal/engine/state"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Task is one file transfer to run. FileKey (Task.Source) is the canonical
// identifier used in TransferState's sequences, per spec §3.
type Task struct {
	Source      string
	Destination string
	Size        int64
}

// ProgressFunc is the external progress sink of spec §6: invoked from
// worker goroutines, must be reentrant.
type ProgressFunc func(fileName string, bytesDone, bytesTotal uint64)

// TransferFunc performs a single attempt at transferring task. onChunk, when
// non-nil, must be called with the number of bytes drained from the stream
// for every buffer, so the coordinator can fan out byte-level progress.
type TransferFunc func(ctx context.Context, task Task, onChunk func(n int64)) (transferredBytes int64, err error)

// Config configures a coordinator run.
type Config struct {
	Workers     int
	Timeouts    sizing.TimeoutConfig
	MaxRetries  int
	BaseBackoff time.Duration

	// State, when non-nil, is updated with every terminal outcome, atomic
	// with respect to its own invariants (state.TransferState is
	// concurrency-safe on its own).
	State *state.TransferState
	// Progress, when non-nil, receives start/completion (and optionally
	// intermediate) callbacks for every file.
	Progress ProgressFunc
	// ByteCounter, when non-nil, is atomically incremented by every
	// successfully transferred byte across the whole batch — the shared,
	// monotonically non-decreasing counter of spec §5/§8.
	ByteCounter *int64

	Logger *zap.Logger
}

// DefaultMaxRetries is R in spec §4.5.
const DefaultMaxRetries = 3

// DefaultBaseBackoff is the first retry delay in spec §4.5's
// exponential-backoff sequence (1s, 2s, 4s, ...).
const DefaultBaseBackoff = 1 * time.Second

// Result is the coordinator's public contract: the file keys that
// succeeded, the file keys that failed terminally, and the residual tasks
// — those left unfinished because they failed terminally or were still
// pending at cancellation (see GLOSSARY).
type Result struct {
	Succeeded []string
	Failed    []string
	Residual  []Task
}

// Run executes tasks under cfg and returns once every task has either
// completed, failed terminally, or been abandoned due to cancellation.
func Run(ctx context.Context, tasks []Task, transferOne TransferFunc, cfg Config) Result {
	cfg = withDefaults(cfg)

	var (
		mu        sync.Mutex
		succeeded []string
		failed    []string
		residual  []Task
	)

	p := pool.New().WithMaxGoroutines(sizing.Clamp(cfg.Workers))

	for _, task := range tasks {
		task := task
		p.Go(func() {
			outcome := runOne(ctx, task, transferOne, cfg)

			mu.Lock()
			defer mu.Unlock()
			switch outcome.kind {
			case outcomeSucceeded:
				succeeded = append(succeeded, task.Source)
			case outcomeFailed:
				failed = append(failed, task.Source)
				residual = append(residual, task)
			case outcomeCancelled:
				residual = append(residual, task)
			}
		})
	}
	p.Wait()

	return Result{Succeeded: succeeded, Failed: failed, Residual: residual}
}

type outcomeKind int

const (
	outcomeSucceeded outcomeKind = iota
	outcomeFailed
	outcomeCancelled
)

type attemptOutcome struct {
	kind outcomeKind
	err  error
}

func runOne(ctx context.Context, task Task, transferOne TransferFunc, cfg Config) attemptOutcome {
	if cfg.Progress != nil {
		cfg.Progress(task.Source, 0, uint64(clampNonNegative(task.Size)))
	}

	var cumulative int64
	onChunk := func(n int64) {
		if n <= 0 {
			return
		}
		if cfg.ByteCounter != nil {
			atomic.AddInt64(cfg.ByteCounter, n)
		}
		newCum := atomic.AddInt64(&cumulative, n)
		if cfg.Progress != nil {
			cfg.Progress(task.Source, uint64(newCum), uint64(clampNonNegative(task.Size)))
		}
	}

	var lastErr error
	timeout := cfg.Timeouts.FileTimeout(task.Size)

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return attemptOutcome{kind: outcomeCancelled, err: pcerr.NewCancelled("batch cancelled before attempt")}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		bytes, err := transferOne(attemptCtx, task, onChunk)
		deadlineExceeded := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()

		if err == nil {
			if cfg.Progress != nil {
				cfg.Progress(task.Source, uint64(clampNonNegative(task.Size)), uint64(clampNonNegative(task.Size)))
			}
			if cfg.State != nil {
				cfg.State.Complete(task.Source, bytes)
			}
			return attemptOutcome{kind: outcomeSucceeded}
		}

		if ctx.Err() != nil || pcerr.IsCancelled(err) {
			return attemptOutcome{kind: outcomeCancelled, err: err}
		}

		if deadlineExceeded {
			err = pcerr.NewNetworkError("per-file timeout exceeded", err)
		}
		lastErr = err

		if !pcerr.IsRetryable(err) || attempt == cfg.MaxRetries {
			break
		}

		backoff := cfg.BaseBackoff << uint(attempt)
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attemptOutcome{kind: outcomeCancelled, err: pcerr.NewCancelled("batch cancelled during backoff")}
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.Warn("file transfer failed terminally",
			zap.String("file", task.Source), zap.Error(lastErr))
	}
	if cfg.State != nil {
		cfg.State.Fail(task.Source)
	}
	return attemptOutcome{kind: outcomeFailed, err: lastErr}
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if (cfg.Timeouts == sizing.TimeoutConfig{}) {
		cfg.Timeouts = sizing.DefaultTimeoutConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

func clampNonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
