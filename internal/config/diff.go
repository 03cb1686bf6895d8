package config

import (
	"reflect"

	logx "athand/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured fields for logging. Secrets (the Telegram token) are never
// included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Location != newCfg.Location {
		changed = append(changed, "location")
		attrs = append(attrs,
			logx.Float64("location.latitude", newCfg.Location.Latitude),
			logx.Float64("location.longitude", newCfg.Location.Longitude),
			logx.String("location.timezone", newCfg.Location.Timezone),
		)
	}
	if oldCfg.Document != newCfg.Document {
		changed = append(changed, "document")
		attrs = append(attrs,
			logx.Bool("document.enabled", newCfg.Document.Enabled),
			logx.String("document.dir", newCfg.Document.Dir),
		)
	}
	if oldCfg.Remote != newCfg.Remote {
		changed = append(changed, "remote")
		attrs = append(attrs,
			logx.Bool("remote.enabled", newCfg.Remote.Enabled),
			logx.Int("remote.method", newCfg.Remote.Method),
			logx.Int("remote.school", newCfg.Remote.School),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.refresh_spec", newCfg.Scheduler.RefreshSpec),
			logx.String("scheduler.timezone", newCfg.EffectiveTimezone()),
			logx.String("scheduler.retry_interval", newCfg.Scheduler.RetryInterval),
		)
	}
	if oldCfg.TaskEngine != newCfg.TaskEngine {
		changed = append(changed, "task_engine")
		attrs = append(attrs,
			logx.Int("task_engine.workers", newCfg.TaskEngine.Workers),
			logx.Int("task_engine.queue_size", newCfg.TaskEngine.QueueSize),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Bool("notify.log", newCfg.Notify.Log),
			logx.Bool("notify.command", newCfg.Notify.Command.Enabled),
			logx.Bool("notify.telegram", newCfg.Notify.Telegram.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	return changed, attrs
}
