package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "athand/pkg/logx"
)

// Validate checks value ranges and that every duration and timezone parses.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" && !logx.ValidLevel(lv) {
		add(fmt.Errorf("logging.level: unknown level %q", lv))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add(errors.New("logging.file.path is required when logging.file.enabled is true"))
	}

	if cfg.Location.Latitude < -90 || cfg.Location.Latitude > 90 {
		add(fmt.Errorf("location.latitude: %v out of range", cfg.Location.Latitude))
	}
	if cfg.Location.Longitude < -180 || cfg.Location.Longitude > 180 {
		add(fmt.Errorf("location.longitude: %v out of range", cfg.Location.Longitude))
	}
	for key, tz := range map[string]string{"location.timezone": cfg.Location.Timezone, "scheduler.timezone": cfg.Scheduler.Timezone} {
		if tz = strings.TrimSpace(tz); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				add(fmt.Errorf("%s: invalid %q: %w", key, tz, err))
			}
		}
	}

	if !cfg.Document.Enabled && !cfg.Remote.Enabled {
		add(errors.New("at least one of document.enabled and remote.enabled must be true"))
	}
	if cfg.Document.Enabled && strings.TrimSpace(cfg.Document.Dir) == "" {
		add(errors.New("document.dir is required when document.enabled is true"))
	}
	if cfg.Remote.Enabled {
		if strings.TrimSpace(cfg.Remote.BaseURL) == "" {
			add(errors.New("remote.base_url is required when remote.enabled is true"))
		}
		if cfg.Remote.Method < 0 {
			add(errors.New("remote.method must be >= 0"))
		}
		if cfg.Remote.School != 0 && cfg.Remote.School != 1 {
			add(fmt.Errorf("remote.school must be 0 or 1, got %d", cfg.Remote.School))
		}
	}

	if strings.TrimSpace(cfg.Scheduler.RefreshSpec) == "" {
		add(errors.New("scheduler.refresh_spec is required"))
	}

	te := cfg.TaskEngine
	if te.Workers < 0 {
		add(errors.New("task_engine.workers must be >= 0"))
	}
	if te.QueueSize < 0 {
		add(errors.New("task_engine.queue_size must be >= 0"))
	}
	if te.HistorySize < 0 {
		add(errors.New("task_engine.history_size must be >= 0"))
	}
	if te.RetryMax < 0 {
		add(errors.New("task_engine.retry_max must be >= 0"))
	}

	if cfg.Notify.Command.Enabled && strings.TrimSpace(cfg.Notify.Command.Player) == "" {
		add(errors.New("notify.command.player is required when notify.command.enabled is true"))
	}
	if tg := cfg.Notify.Telegram; tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			add(errors.New("notify.telegram.token is required when notify.telegram.enabled is true"))
		}
		if tg.ChatID == 0 {
			add(errors.New("notify.telegram.chat_id is required when notify.telegram.enabled is true"))
		}
		if tg.RatePerSec < 0 {
			add(errors.New("notify.telegram.rate_per_sec must be >= 0"))
		}
	}

	switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(fmt.Errorf("storage.path is required when storage.driver=%s", d))
		}
	default:
		add(fmt.Errorf("unknown storage.driver: %s", cfg.Storage.Driver))
	}

	for key, raw := range map[string]string{
		"remote.timeout":              cfg.Remote.Timeout,
		"scheduler.refresh_timeout":   cfg.Scheduler.RefreshTimeout,
		"scheduler.retry_interval":    cfg.Scheduler.RetryInterval,
		"scheduler.job_timeout":       cfg.Scheduler.JobTimeout,
		"task_engine.default_timeout": te.DefaultTimeout,
		"task_engine.max_queue_delay": te.MaxQueueDelay,
		"notify.command.timeout":      cfg.Notify.Command.Timeout,
		"notify.telegram.timeout":     cfg.Notify.Telegram.Timeout,
		"storage.busy_timeout":        cfg.Storage.BusyTimeout,
	} {
		_, err := ParseDurationField(key, raw)
		add(err)
	}
	return errors.Join(errs...)
}
