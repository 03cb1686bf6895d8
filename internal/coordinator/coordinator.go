package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"athand/internal/eventbus"
	"athand/internal/prayer"
	"athand/internal/task/scheduler"
	logx "athand/pkg/logx"

	"github.com/google/uuid"
)

const (
	// RefreshJob is the recurring job name.
	RefreshJob = "prayer.refresh"
	retryJob   = "prayer.refresh.retry"
	jobPrefix  = "prayer."
)

// ErrNoSource is returned when neither source produced timings.
var ErrNoSource = errors.New("no prayer time source available")

// Scheduler is the part of scheduler.Service the coordinator drives.
type Scheduler interface {
	ReplaceOnce(jobs []scheduler.OnceJob) (installed []string, err error)
	AddOnce(name string, at time.Time, timeout time.Duration, job scheduler.Job) (string, error)
	AddSchedule(name, schedule string, timeout time.Duration, job scheduler.Job) (string, error)
}

// Binder turns an event into the job that announces it.
type Binder interface {
	Job(ev prayer.Event) func(ctx context.Context) error
}

type Config struct {
	// RefreshSpec is the recurring refresh schedule; default "0 0 * * *".
	RefreshSpec string
	// RefreshTimeout bounds one refresh including both fetches.
	RefreshTimeout time.Duration
	// JobTimeout bounds one notification job.
	JobTimeout time.Duration
	// RetryInterval re-runs a fully failed refresh later the same day.
	// 0 keeps the default: skip today, retry at the next refresh.
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.RefreshSpec == "" {
		c.RefreshSpec = "0 0 * * *"
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Minute
	}
	return c
}

// Result describes one refresh.
type Result struct {
	RunID       string
	Date        string
	Source      string // source that produced the schedule; empty when none did
	Installed   []prayer.Event
	Missed      []prayer.Event
	PrimaryErr  error
	FallbackErr error
	Err         error // set when no schedule was installed
	Took        time.Duration
}

// OK reports whether a schedule was installed.
func (r Result) OK() bool { return r.Err == nil }

type Coordinator struct {
	cfg   Config
	sched Scheduler
	bind  Binder
	log   logx.Logger
	bus   eventbus.Bus
	clock func() time.Time

	smu      sync.RWMutex
	primary  prayer.Source
	fallback prayer.Source

	// run serializes refreshes so two of them never interleave their
	// fetch and install steps. mu guards last only.
	run  sync.Mutex
	mu   sync.Mutex
	last Result
}

// New wires a coordinator. fallback may be nil. clock supplies "now" for
// scheduled refreshes; it should return time in the scheduler location.
func New(cfg Config, primary, fallback prayer.Source, sched Scheduler, bind Binder, clock func() time.Time, log logx.Logger, bus eventbus.Bus) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Coordinator{
		cfg:      cfg.withDefaults(),
		sched:    sched,
		bind:     bind,
		log:      log,
		bus:      bus,
		clock:    clock,
		primary:  primary,
		fallback: fallback,
	}
}

// SetSources swaps the sources used by subsequent refreshes.
func (c *Coordinator) SetSources(primary, fallback prayer.Source) {
	c.smu.Lock()
	c.primary, c.fallback = primary, fallback
	c.smu.Unlock()
}

func (c *Coordinator) sources() (prayer.Source, prayer.Source) {
	c.smu.RLock()
	defer c.smu.RUnlock()
	return c.primary, c.fallback
}

// Install registers the recurring refresh job.
func (c *Coordinator) Install() error {
	_, err := c.sched.AddSchedule(RefreshJob, c.cfg.RefreshSpec, c.cfg.RefreshTimeout, func(ctx context.Context) error {
		c.log.Info("Refreshing prayer times for new day")
		c.Refresh(ctx, c.clock())
		return nil
	})
	if err != nil {
		return fmt.Errorf("install %s: %w", RefreshJob, err)
	}
	c.log.Debug("refresh job installed", logx.String("spec", c.cfg.RefreshSpec))
	return nil
}

// Last returns the most recent refresh result.
func (c *Coordinator) Last() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Resolve fetches the timings for date's calendar day, falling back once.
// It installs nothing.
func (c *Coordinator) Resolve(ctx context.Context, date time.Time) (prayer.DailySchedule, Result) {
	res := Result{Date: prayer.DateKey(date)}
	primary, fallback := c.sources()
	if primary == nil {
		primary, fallback = fallback, nil
	}
	if primary == nil {
		res.Err = ErrNoSource
		return prayer.DailySchedule{}, res
	}

	t, err := primary.Fetch(ctx, date)
	if err == nil {
		res.Source = primary.Name()
		return prayer.NewDailySchedule(date, res.Source, t), res
	}
	res.PrimaryErr = err
	if fallback == nil {
		res.Err = fmt.Errorf("%s: %w", primary.Name(), err)
		return prayer.DailySchedule{}, res
	}
	c.log.Warn("primary source failed; using fallback",
		logx.String("primary", primary.Name()), logx.String("fallback", fallback.Name()),
		logx.String("kind", prayer.KindOf(err).String()), logx.Err(err))

	t, err = fallback.Fetch(ctx, date)
	if err != nil {
		res.FallbackErr = err
		res.Err = errors.Join(fmt.Errorf("%s: %w", primary.Name(), res.PrimaryErr), fmt.Errorf("%s: %w", fallback.Name(), err))
		return prayer.DailySchedule{}, res
	}
	res.Source = fallback.Name()
	return prayer.NewDailySchedule(date, res.Source, t), res
}

// Refresh resolves today's schedule relative to now and replaces the pending
// one-shot set with the prayers after now. It never fails the caller: a
// refresh with no usable source logs, leaves the pending set untouched and
// reports the error in the Result.
func (c *Coordinator) Refresh(ctx context.Context, now time.Time) Result {
	c.run.Lock()
	defer c.run.Unlock()

	start := time.Now()
	runID := uuid.NewString()
	log := c.log.With(logx.String("run", runID), logx.String("date", prayer.DateKey(now)))

	sched, res := c.Resolve(ctx, now)
	res.RunID = runID
	if res.Err != nil {
		log.Error("no prayer times for today; keeping current schedule", logx.Err(res.Err))
		c.scheduleRetry(now, log)
		return c.finish(res, start)
	}

	upcoming, missed := sched.Upcoming(now)
	res.Missed = missed
	jobs := make([]scheduler.OnceJob, 0, len(upcoming))
	for _, ev := range upcoming {
		jobs = append(jobs, scheduler.OnceJob{
			Name:    jobPrefix + string(ev.Name),
			At:      ev.At,
			Timeout: c.cfg.JobTimeout,
			Run:     c.bind.Job(ev),
		})
	}

	names, err := c.sched.ReplaceOnce(jobs)
	if err != nil {
		// Only instants that slipped into the past between filtering and install.
		log.Warn("some prayers were not scheduled", logx.Err(err))
	}
	armed := make(map[string]bool, len(names))
	for _, name := range names {
		armed[name] = true
	}
	for _, ev := range upcoming {
		if !armed[jobPrefix+string(ev.Name)] {
			continue
		}
		res.Installed = append(res.Installed, ev)
		log.Info(fmt.Sprintf("Scheduled %s at %s", ev.Name, ev.At.Format("15:04")))
	}
	for _, ev := range missed {
		log.Debug("prayer already passed", logx.String("prayer", string(ev.Name)), logx.String("at", ev.At.Format("15:04")))
	}
	log.Info("schedule refreshed", logx.String("source", res.Source), logx.Int("scheduled", len(res.Installed)), logx.Int("passed", len(missed)))
	return c.finish(res, start)
}

func (c *Coordinator) finish(res Result, start time.Time) Result {
	res.Took = time.Since(start)
	c.mu.Lock()
	c.last = res
	c.mu.Unlock()
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeRefreshed, Data: res})
	}
	return res
}

// scheduleRetry arms a same-day retry when configured. A retry that would
// land on the next day is left to the recurring refresh.
func (c *Coordinator) scheduleRetry(now time.Time, log logx.Logger) {
	if c.cfg.RetryInterval <= 0 {
		return
	}
	at := now.Add(c.cfg.RetryInterval)
	if prayer.DateKey(at) != prayer.DateKey(now) {
		log.Info("skipping today; next attempt at the daily refresh")
		return
	}
	_, err := c.sched.AddOnce(retryJob, at, c.cfg.RefreshTimeout, func(ctx context.Context) error {
		c.Refresh(ctx, c.clock())
		return nil
	})
	if err != nil {
		log.Warn("refresh retry not scheduled", logx.Err(err))
		return
	}
	log.Info("refresh retry scheduled", logx.String("at", at.Format("15:04")))
}
