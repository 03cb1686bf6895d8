package app

import (
	"context"
	"fmt"
	"time"

	"athand/internal/config"
	"athand/internal/coordinator"
	"athand/internal/dispatch"
	"athand/internal/eventbus"
	"athand/internal/runtime/supervisor"
	"athand/internal/storage"
	"athand/internal/task/engine"
	"athand/internal/task/scheduler"
	logx "athand/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

// App wires the sources, scheduler, engine and sinks together and owns
// their lifecycle.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	engine *engine.Service
	sched  *scheduler.Service
	disp   *dispatch.Dispatcher
	coord  *coordinator.Coordinator

	// notifyd is swapped in tests to observe sd_notify calls.
	notifyd func(state string)
}

// NewApp loads the config at cfgPath and builds every component. Nothing
// runs until Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return newApp(cfgm, cfg)
}

func newApp(cfgm *config.Manager, cfg *config.Config) (*App, error) {
	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	fail := func(err error) (*App, error) {
		if store != nil {
			_ = store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return fail(err)
	}
	coordCfg, err := mapCoordinatorConfig(cfg)
	if err != nil {
		return fail(err)
	}
	primary, fallback, err := buildSources(cfg, log)
	if err != nil {
		return fail(err)
	}
	sink, err := buildSink(cfg, log.With(logx.String("comp", "notify")))
	if err != nil {
		return fail(err)
	}

	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)
	schedSvc := scheduler.New(mapSchedulerConfig(cfg), engineSvc, log.With(logx.String("comp", "scheduler")))
	disp := dispatch.New(sink, store, log.With(logx.String("comp", "dispatch")), bus)
	coord := coordinator.New(coordCfg, primary, fallback, schedSvc, disp, schedSvc.Now,
		log.With(logx.String("comp", "coordinator")), bus)

	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		engine:  engineSvc,
		sched:   schedSvc,
		disp:    disp,
		coord:   coord,
		notifyd: sdNotify,
	}, nil
}

func sdNotify(state string) {
	// No-op (false, nil) outside systemd.
	_, _ = daemon.SdNotify(false, state)
}

func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Coordinator() *coordinator.Coordinator { return a.coord }

func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the engine and scheduler, installs the daily refresh and
// performs the first refresh before returning. A first refresh that finds no
// source is logged, not returned: the daily refresh tries again.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.engine.Start(runCtx)
	a.sched.Start(runCtx)

	if err := a.coord.Install(); err != nil {
		a.sup.Cancel()
		return err
	}

	a.logEvents()

	res := a.refreshNow(runCtx)
	a.log.Info("prayer scheduler running",
		logx.String("source", res.Source),
		logx.Int("scheduled", len(res.Installed)),
		logx.String("tz", a.sched.Location().String()),
	)

	a.watchConfig()

	a.notifyd(daemon.SdNotifyReady)
	return nil
}

func (a *App) refreshNow(ctx context.Context) coordinator.Result {
	timeout, err := config.ParseDurationOrDefault("scheduler.refresh_timeout", a.cfgm.Get().Scheduler.RefreshTimeout, time.Minute)
	if err != nil {
		timeout = time.Minute
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.coord.Refresh(rctx, a.sched.Now())
}

// Status reports the armed triggers and the engine state.
func (a *App) Status() scheduler.Snapshot { return a.sched.Snapshot() }

// logStatus logs the next recurring refresh and today's pending prayers.
func (a *App) logStatus() {
	snap := a.Status()
	fields := []logx.Field{
		logx.String("tz", snap.Timezone),
		logx.Int("queue_len", snap.Engine.QueueLen),
		logx.Int("in_flight", snap.Engine.InFlight),
		logx.Int64("dropped", int64(snap.Engine.Dropped)),
	}
	for _, s := range snap.Schedules {
		if s.Name == coordinator.RefreshJob && !s.Next.IsZero() {
			fields = append(fields, logx.Time("next_refresh", s.Next))
		}
	}
	pending := make([]string, 0, len(snap.Pending))
	for _, p := range snap.Pending {
		pending = append(pending, p.Name+"@"+p.At.Format("15:04"))
	}
	fields = append(fields, logx.Strs("pending", pending))
	a.log.Info("scheduler status", fields...)
}

// logEvents logs every bus event at debug level.
func (a *App) logEvents() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.Type == eventbus.TypeRefreshed {
					a.logStatus()
				}
				if !a.log.Enabled(logx.LevelDebug) {
					continue
				}
				fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
				switch d := e.Data.(type) {
				case dispatch.Notice:
					fields = append(fields, logx.String("prayer", string(d.Prayer)), logx.Bool("duplicate", d.Duplicate))
				case engine.Record:
					fields = append(fields, logx.String("task", d.Name), logx.Int("attempts", d.Attempts))
				case coordinator.Result:
					fields = append(fields, logx.String("source", d.Source), logx.Int("scheduled", len(d.Installed)))
				}
				a.log.Debug("event", fields...)
			}
		}
	})
}
