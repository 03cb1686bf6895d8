package config

// Config is the on-disk configuration (JSON, or YAML coerced to JSON).
//
// Parse decodes on top of Default(), so any omitted key keeps its default.
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Location   LocationConfig   `json:"location"`
	Document   DocumentConfig   `json:"document"`
	Remote     RemoteConfig     `json:"remote"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Notify     NotifyConfig     `json:"notify"`
	Storage    StorageConfig    `json:"storage"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LocationConfig is where prayer times are computed for (remote source) and
// which zone wall-clock times are read in.
type LocationConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"` // IANA TZ; empty means the host zone
}

// DocumentConfig points at the monthly timetables, one file per month named
// like "09-September-2025.csv".
type DocumentConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
	Ext     string `json:"ext,omitempty"`
	Marker  string `json:"marker,omitempty"` // header substring marking a begin-column
	Strict  bool   `json:"strict,omitempty"` // require exactly five begin-columns
}

// RemoteConfig controls the Aladhan-compatible fallback.
type RemoteConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url"`
	Method  int    `json:"method"` // calculation method, 2 = ISNA
	School  int    `json:"school"` // 0 = Shafi'i, 1 = Hanafi
	Timeout string `json:"timeout"`
}

type SchedulerConfig struct {
	// Timezone overrides location.timezone for triggers.
	Timezone string `json:"timezone,omitempty"`
	// RefreshSpec is a cron expression, "HH:MM" or interval (default "0 0 * * *").
	RefreshSpec    string `json:"refresh_spec"`
	RefreshTimeout string `json:"refresh_timeout,omitempty"`
	// RetryInterval re-runs a refresh that found no source later the same day.
	// Empty or "0s" skips the day and waits for the next refresh.
	RetryInterval string `json:"retry_interval,omitempty"`
	// JobTimeout bounds one notification (audio playback can be long).
	JobTimeout string `json:"job_timeout,omitempty"`
}

// TaskEngineConfig controls the worker pool every trigger runs on.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 64
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 100
//   - retry_max: 0
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
}

type NotifyConfig struct {
	// Log writes every notification to the log. It is the fallback sink
	// when nothing else is enabled.
	Log      bool           `json:"log"`
	Command  CommandConfig  `json:"command"`
	Telegram TelegramConfig `json:"telegram"`
}

// CommandConfig runs an audio player: <player> <args...> <audio file>.
type CommandConfig struct {
	Enabled   bool     `json:"enabled"`
	Player    string   `json:"player"`
	Args      []string `json:"args,omitempty"`
	AudioDir  string   `json:"audio_dir,omitempty"`
	Athan     string   `json:"athan,omitempty"`
	FajrAthan string   `json:"fajr_athan,omitempty"`
	Timeout   string   `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	APIURL     string `json:"api_url,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

// StorageConfig controls the fired-notification marker store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/athand.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
			File:    LoggingFile{Path: "./athand.log"},
		},
		Location: LocationConfig{
			Latitude:  53.2307,
			Longitude: -0.5406,
		},
		Document: DocumentConfig{
			Enabled: true,
			Dir:     "./calendar",
			Ext:     ".csv",
			Marker:  "Begins",
		},
		Remote: RemoteConfig{
			Enabled: true,
			BaseURL: "http://api.aladhan.com/v1",
			Method:  2,
			School:  1,
			Timeout: "10s",
		},
		Scheduler: SchedulerConfig{
			RefreshSpec:    "0 0 * * *",
			RefreshTimeout: "1m",
			JobTimeout:     "10m",
		},
		TaskEngine: TaskEngineConfig{
			Workers:     2,
			QueueSize:   64,
			HistorySize: 100,
		},
		Notify: NotifyConfig{Log: true},
	}
}

// EffectiveTimezone is the zone used for triggers and wall-clock parsing.
func (c *Config) EffectiveTimezone() string {
	if c.Scheduler.Timezone != "" {
		return c.Scheduler.Timezone
	}
	return c.Location.Timezone
}
