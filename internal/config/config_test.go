package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDecodeKeepsDefaultsForOmittedKeys(t *testing.T) {
	cfg, err := Decode("cfg.json", []byte(`{"location":{"timezone":"Europe/London"}}`))
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.Location.Timezone)
	assert.InDelta(t, 53.2307, cfg.Location.Latitude, 1e-9)
	assert.Equal(t, 2, cfg.Remote.Method)
	assert.Equal(t, 1, cfg.Remote.School)
	assert.Equal(t, "0 0 * * *", cfg.Scheduler.RefreshSpec)
	assert.Equal(t, "./calendar", cfg.Document.Dir)
	assert.NoError(t, Validate(cfg))
}

func TestDecodeYAML(t *testing.T) {
	body := `
location:
  latitude: 51.5
  longitude: -0.12
remote:
  enabled: false
notify:
  command:
    enabled: true
    player: mpg123
    args: ["-q"]
storage:
  driver: file
  path: ./data/athand
`
	cfg, err := Decode("athand.yaml", []byte(body))
	require.NoError(t, err)
	assert.InDelta(t, 51.5, cfg.Location.Latitude, 1e-9)
	assert.False(t, cfg.Remote.Enabled)
	assert.True(t, cfg.Document.Enabled)
	assert.Equal(t, []string{"-q"}, cfg.Notify.Command.Args)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.NoError(t, Validate(cfg))
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	_, err := Decode("cfg.json", []byte(`{"locaton":{}}`))
	assert.Error(t, err)

	_, err = Decode("cfg.yml", []byte("remote:\n  methd: 3\n"))
	assert.Error(t, err)

	_, err = Decode("cfg.json", []byte(`{} {}`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"bad latitude", func(c *Config) { c.Location.Latitude = 91 }, false},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, false},
		{"no sources", func(c *Config) { c.Document.Enabled = false; c.Remote.Enabled = false }, false},
		{"bad school", func(c *Config) { c.Remote.School = 3 }, false},
		{"bad duration", func(c *Config) { c.Scheduler.RetryInterval = "soon" }, false},
		{"negative duration", func(c *Config) { c.Remote.Timeout = "-1s" }, false},
		{"player missing", func(c *Config) { c.Notify.Command.Enabled = true }, false},
		{"telegram missing chat", func(c *Config) {
			c.Notify.Telegram.Enabled = true
			c.Notify.Telegram.Token = "x"
		}, false},
		{"storage without path", func(c *Config) { c.Storage.Driver = "sqlite" }, false},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "redis" }, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEffectiveTimezone(t *testing.T) {
	cfg := Default()
	cfg.Location.Timezone = "Europe/London"
	assert.Equal(t, "Europe/London", cfg.EffectiveTimezone())
	cfg.Scheduler.Timezone = "Asia/Jakarta"
	assert.Equal(t, "Asia/Jakarta", cfg.EffectiveTimezone())
}

func TestSummarizeConfigChangeOmitsSecrets(t *testing.T) {
	a := Default()
	b := Default()
	b.Notify.Telegram.Token = "123:secret"
	b.Scheduler.RefreshSpec = "00:05"

	changed, fields := SummarizeConfigChange(&a, &b)
	assert.ElementsMatch(t, []string{"notify", "scheduler"}, changed)
	assert.NotEmpty(t, fields)

	changed, _ = SummarizeConfigChange(&a, &a)
	assert.Empty(t, changed)
}

func TestManagerLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "athand.json", `{"scheduler":{"refresh_spec":"0 0 * * *"}}`)

	m := NewManager(p)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	changed, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, changed, "unchanged content must not publish")

	writeFile(t, dir, "athand.json", `{"scheduler":{"refresh_spec":"00:05"}}`)
	changed, err = m.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)

	select {
	case got := <-ch:
		assert.Equal(t, "00:05", got.Scheduler.RefreshSpec)
	default:
		t.Fatal("expected published config")
	}

	writeFile(t, dir, "athand.json", `{"location":{"latitude":200}}`)
	_, err = m.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "00:05", m.Get().Scheduler.RefreshSpec, "invalid config must not be committed")
}

func TestManagerWatchPublishesChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "athand.yaml", "logging:\n  level: INFO\n")

	m := NewManager(p)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "athand.yaml", "logging:\n  level: DEBUG\n")

	select {
	case got := <-ch:
		assert.Equal(t, "DEBUG", got.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestManagerValidatorRejects(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "athand.json", `{}`)
	m := NewManager(p)
	_, err := m.Load()
	require.NoError(t, err)

	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		return assert.AnError
	})
	writeFile(t, dir, "athand.json", `{"remote":{"method":3}}`)
	changed, err := m.Reload(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, changed)
	assert.Equal(t, 2, m.Get().Remote.Method)
}

func TestDecodeEmptyYAMLUsesDefaults(t *testing.T) {
	cfg, err := Decode("athand.yaml", []byte("# nothing yet\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = ParseDurationOrDefault("x", "90s", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDurationOrDefault("x", "-5s", time.Minute)
	assert.ErrorContains(t, err, "x:")
}
