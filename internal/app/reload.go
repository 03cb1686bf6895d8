package app

import (
	"context"
	"strings"

	"athand/internal/config"
	"athand/internal/task/engine"
	logx "athand/pkg/logx"
)

// sections that are only read at startup.
var restartSections = map[string]bool{
	"task_engine": true,
	"notify":      true,
	"storage":     true,
}

// watchConfig follows the config file and applies accepted changes.
func (a *App) watchConfig() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				newCfg = latest(sub, newCfg)
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
}

// latest drains ch and returns the newest config received.
func latest(ch <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer := <-ch:
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

// applyConfig applies a reloaded config. Logging and the scheduler zone apply
// in place; a change to location, document or remote rebuilds the sources and
// refreshes today's schedule.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := make(map[string]bool, len(sections))
	for _, s := range sections {
		changed[s] = true
		if restartSections[s] {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	if changed["logging"] {
		a.logs.Apply(mapLogConfig(newCfg))
	}

	refresh := false
	if changed["scheduler"] {
		if oldCfg.Scheduler.RefreshSpec != newCfg.Scheduler.RefreshSpec ||
			oldCfg.Scheduler.RetryInterval != newCfg.Scheduler.RetryInterval {
			a.log.Warn("scheduler.refresh_spec and scheduler.retry_interval apply after restart")
		}
		if oldCfg.EffectiveTimezone() != newCfg.EffectiveTimezone() {
			a.sched.Apply(mapSchedulerConfig(newCfg))
			refresh = true
		}
	}
	if changed["location"] && oldCfg.EffectiveTimezone() != newCfg.EffectiveTimezone() {
		a.sched.Apply(mapSchedulerConfig(newCfg))
	}
	if changed["location"] || changed["document"] || changed["remote"] {
		primary, fallback, err := buildSources(newCfg, a.log)
		if err != nil {
			a.log.Warn("invalid source config; keeping previous", logx.Err(err))
		} else {
			a.coord.SetSources(primary, fallback)
			refresh = true
		}
	}

	if refresh {
		// Submit waits for queue space; a reload refresh must not be dropped.
		err := a.engine.Submit(ctx, engine.Task{
			Name: "prayer.refresh.reload",
			Run: func(ctx context.Context) error {
				a.coord.Refresh(ctx, a.sched.Now())
				return nil
			},
		})
		if err != nil {
			a.log.Warn("refresh after reload not queued", logx.Err(err))
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
