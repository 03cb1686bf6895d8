package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"athand/internal/task/engine"
	logx "athand/pkg/logx"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// ErrPastDue is returned when a one-shot job is scheduled at or before now.
var ErrPastDue = errors.New("scheduled instant is not in the future")

// Config controls the scheduler (trigger) service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Europe/London"
}

// Job is the function a trigger enqueues.
type Job func(ctx context.Context) error

// OnceJob describes one pending one-shot job.
type OnceJob struct {
	Name    string
	At      time.Time
	Timeout time.Duration
	Run     Job
}

type cronDef struct {
	id      string
	name    string
	spec    string
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	opt     engine.TaskOptions
	state   *engine.RunState
}

type onceDef struct {
	at      time.Time
	timeout time.Duration
	job     Job
	ver     uint64
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	now func() time.Time

	engine *engine.Service

	parser cron.Parser
	c      *cron.Cron
	defs   []cronDef

	// enqWarn throttles enqueue warnings per job name.
	enqMu   sync.Mutex
	enqWarn map[string]*rate.Sometimes

	// tmu guards the one-shot set. once holds definitions (they survive
	// Stop/Start); timers holds the armed runtime timers.
	tmu    sync.Mutex
	once   map[string]onceDef
	timers map[string]*time.Timer
	armed  bool
	ver    uint64
}

type ScheduleInfo struct {
	ID      string
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
}

type OnceInfo struct {
	Name string
	At   time.Time
}

type Snapshot struct {
	Enabled   bool
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
	Pending   []OnceInfo
	Engine    engine.Snapshot
}
