package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// Config controls the worker pool. Every scheduler trigger runs its job
// here, never on the timer goroutine that fired it.
type Config struct {
	Enabled   bool
	Workers   int
	QueueSize int

	// DefaultTimeout applies to tasks with no Timeout of their own.
	DefaultTimeout time.Duration
	// MaxQueueDelay drops a task that waited longer than this before a
	// worker picked it up. 0 never drops.
	MaxQueueDelay time.Duration

	HistorySize int
	RetryMax    int
}

type OverlapPolicy int

const (
	OverlapAllow OverlapPolicy = iota
	// OverlapSkipIfRunning refuses a task while an earlier one sharing its
	// RunState is queued or running.
	OverlapSkipIfRunning
)

const retryJitter = 0.2

// TaskOptions tune retries and overlap for one task. A negative RetryMax
// disables retries; 0 takes the engine default.
type TaskOptions struct {
	Overlap       OverlapPolicy
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

func (o TaskOptions) resolve(cfg Config) TaskOptions {
	switch {
	case o.RetryMax == 0:
		o.RetryMax = cfg.RetryMax
	case o.RetryMax < 0:
		o.RetryMax = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 15 * time.Second
	}
	return o
}

// RunState admits a single queued-or-running instance of a task.
type RunState struct {
	busy atomic.Bool
}

func (s *RunState) acquire() bool {
	return s == nil || s.busy.CompareAndSwap(false, true)
}

func (s *RunState) release() {
	if s != nil {
		s.busy.Store(false)
	}
}

// Task is a unit of work executed by the engine.
type Task struct {
	ID      string
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
	Opt     TaskOptions
	// State is shared by recurring triggers of the same job. Nil uses a
	// per-name state.
	State *RunState
}

// Record describes one task run. It is kept in the history and carried as
// the Data of every task.* bus event.
type Record struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Attempts   int           `json:"attempts"`
	Error      string        `json:"error,omitempty"`
}

// Snapshot is a point-in-time view for diagnostics.
type Snapshot struct {
	Enabled        bool
	Workers        int
	QueueLen       int
	QueueCap       int
	InFlight       int
	Dropped        uint64
	DefaultTimeout time.Duration
	RetryMax       int
	History        []Record
}
