package app

import (
	"fmt"
	"strings"
	"time"

	"athand/internal/config"
	"athand/internal/coordinator"
	"athand/internal/notify"
	"athand/internal/prayer"
	"athand/internal/source/document"
	"athand/internal/source/remote"
	"athand/internal/storage"
	"athand/internal/task/engine"
	"athand/internal/task/scheduler"
	logx "athand/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	defTimeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	maxQueueDelay, err := config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Enabled:        true,
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: defTimeout,
		MaxQueueDelay:  maxQueueDelay,
		HistorySize:    te.HistorySize,
		RetryMax:       te.RetryMax,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Enabled: true, Timezone: cfg.EffectiveTimezone()}
}

func mapCoordinatorConfig(cfg *config.Config) (coordinator.Config, error) {
	sc := cfg.Scheduler
	refreshTimeout, err := config.ParseDurationOrDefault("scheduler.refresh_timeout", sc.RefreshTimeout, time.Minute)
	if err != nil {
		return coordinator.Config{}, err
	}
	jobTimeout, err := config.ParseDurationOrDefault("scheduler.job_timeout", sc.JobTimeout, 10*time.Minute)
	if err != nil {
		return coordinator.Config{}, err
	}
	retry, err := config.ParseDurationField("scheduler.retry_interval", sc.RetryInterval)
	if err != nil {
		return coordinator.Config{}, err
	}
	return coordinator.Config{
		RefreshSpec:    sc.RefreshSpec,
		RefreshTimeout: refreshTimeout,
		JobTimeout:     jobTimeout,
		RetryInterval:  retry,
	}, nil
}

func newDocumentProvider(cfg *config.Config, log logx.Logger) *document.Provider {
	return document.New(document.Config{
		Dir: cfg.Document.Dir,
		Ext: cfg.Document.Ext,
		Schema: document.Schema{
			Marker: cfg.Document.Marker,
			Strict: cfg.Document.Strict,
		},
	}, log.With(logx.String("comp", "document")))
}

// buildSources returns the primary and fallback sources. The document is
// primary whenever it is enabled; fallback may be nil.
func buildSources(cfg *config.Config, log logx.Logger) (prayer.Source, prayer.Source, error) {
	var out []prayer.Source
	if cfg.Document.Enabled {
		out = append(out, newDocumentProvider(cfg, log))
	}
	if cfg.Remote.Enabled {
		timeout, err := config.ParseDurationOrDefault("remote.timeout", cfg.Remote.Timeout, 10*time.Second)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, remote.New(remote.Config{
			BaseURL:   cfg.Remote.BaseURL,
			Latitude:  cfg.Location.Latitude,
			Longitude: cfg.Location.Longitude,
			Method:    cfg.Remote.Method,
			School:    cfg.Remote.School,
			Timeout:   timeout,
		}, nil, log.With(logx.String("comp", "remote"))))
	}
	switch len(out) {
	case 0:
		return nil, nil, coordinator.ErrNoSource
	case 1:
		return out[0], nil, nil
	default:
		return out[0], out[1], nil
	}
}

// buildSink assembles the enabled sinks. The log sink is used when nothing
// else is enabled.
func buildSink(cfg *config.Config, log logx.Logger) (notify.Sink, error) {
	nc := cfg.Notify
	var sinks notify.Multi
	if nc.Log {
		sinks = append(sinks, notify.NewLogSink(log.With(logx.String("sink", "log"))))
	}
	if nc.Command.Enabled {
		timeout, err := config.ParseDurationField("notify.command.timeout", nc.Command.Timeout)
		if err != nil {
			return nil, err
		}
		s, err := notify.NewCommandSink(notify.CommandConfig{
			Enabled:   true,
			Player:    nc.Command.Player,
			Args:      nc.Command.Args,
			AudioDir:  nc.Command.AudioDir,
			Athan:     nc.Command.Athan,
			FajrAthan: nc.Command.FajrAthan,
			Timeout:   timeout,
		}, log.With(logx.String("sink", "command")))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if nc.Telegram.Enabled {
		timeout, err := config.ParseDurationField("notify.telegram.timeout", nc.Telegram.Timeout)
		if err != nil {
			return nil, err
		}
		s, err := notify.NewTelegramSink(notify.TelegramConfig{
			Enabled:    true,
			Token:      nc.Telegram.Token,
			ChatID:     nc.Telegram.ChatID,
			ThreadID:   nc.Telegram.ThreadID,
			APIURL:     nc.Telegram.APIURL,
			RatePerSec: nc.Telegram.RatePerSec,
			Timeout:    timeout,
		}, log.With(logx.String("sink", "telegram")))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return notify.NewLogSink(log.With(logx.String("sink", "log"))), nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}
