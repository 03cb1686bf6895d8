package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"athand/internal/prayer"
	logx "athand/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(p prayer.Name) Notification {
	at := time.Date(2025, 9, 15, 6, 2, 0, 0, time.UTC)
	return Notification{Prayer: p, At: at, Date: prayer.DateKey(at)}
}

type stubSink struct {
	name string
	err  error
	n    int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Notify(context.Context, Notification) Result {
	s.n++
	return Result{Sink: s.name, Delivered: s.err == nil, Err: s.err}
}

func TestNotificationText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Time for Fajr (06:02)", note(prayer.Fajr).Text())
}

func TestLogSink(t *testing.T) {
	t.Parallel()
	r := NewLogSink(logx.Nop()).Notify(context.Background(), note(prayer.Asr))
	assert.True(t, r.OK())
	assert.Equal(t, "log", r.Sink)
}

func TestMultiContinuesPastFailure(t *testing.T) {
	t.Parallel()
	bad := &stubSink{name: "bad", err: errors.New("speaker unplugged")}
	good := &stubSink{name: "good"}

	r := Multi{bad, good}.Notify(context.Background(), note(prayer.Dhuhr))
	assert.Equal(t, 1, bad.n)
	assert.Equal(t, 1, good.n)
	assert.True(t, r.Delivered)
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "bad: speaker unplugged")
	require.Len(t, r.Parts, 2)
	assert.False(t, r.Parts[0].OK())
	assert.True(t, r.Parts[1].OK())
}

func TestCommandSinkAudioFor(t *testing.T) {
	t.Parallel()
	s, err := NewCommandSink(CommandConfig{Player: "mpg123", AudioDir: "/srv/athan"}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/athan", "fajr_athan.mp3"), s.AudioFor(prayer.Fajr))
	for _, p := range []prayer.Name{prayer.Dhuhr, prayer.Asr, prayer.Maghrib, prayer.Isha} {
		assert.Equal(t, filepath.Join("/srv/athan", "athan.mp3"), s.AudioFor(p))
	}

	_, err = NewCommandSink(CommandConfig{}, logx.Nop())
	assert.Error(t, err)
}

func TestCommandSinkRunsPlayer(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "played")
	player := filepath.Join(dir, "player.sh")
	require.NoError(t, os.WriteFile(player, []byte("#!/bin/sh\necho \"$@\" > "+out+"\n"), 0o755))

	s, err := NewCommandSink(CommandConfig{Player: player, Args: []string{"-q"}}, logx.Nop())
	require.NoError(t, err)
	r := s.Notify(context.Background(), note(prayer.Fajr))
	require.NoError(t, r.Err)
	assert.True(t, r.Delivered)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "-q fajr_athan.mp3", strings.TrimSpace(string(b)))
}

func TestCommandSinkReportsFailure(t *testing.T) {
	t.Parallel()
	s, err := NewCommandSink(CommandConfig{Player: filepath.Join(t.TempDir(), "missing-player")}, logx.Nop())
	require.NoError(t, err)
	r := s.Notify(context.Background(), note(prayer.Isha))
	assert.Error(t, r.Err)
	assert.False(t, r.Delivered)
}

func TestTelegramSinkSends(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		path string
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1757916120,"chat":{"id":-100123,"type":"supergroup"}}}`)
	}))
	t.Cleanup(srv.Close)

	s, err := NewTelegramSink(TelegramConfig{Token: "123:abc", ChatID: -100123, ThreadID: 9, APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)

	r := s.Notify(context.Background(), note(prayer.Maghrib))
	require.NoError(t, r.Err)
	assert.True(t, r.OK())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "Time for Maghrib (06:02)", body["text"])
	assert.Equal(t, "-100123", body["chat_id"])
}

func TestTelegramSinkAPIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	t.Cleanup(srv.Close)

	s, err := NewTelegramSink(TelegramConfig{Token: "123:abc", ChatID: 1, APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)
	r := s.Notify(context.Background(), note(prayer.Isha))
	assert.Error(t, r.Err)
	assert.False(t, r.OK())
}

func TestTelegramSinkConfig(t *testing.T) {
	t.Parallel()
	_, err := NewTelegramSink(TelegramConfig{ChatID: 1}, logx.Nop())
	assert.Error(t, err)
	_, err = NewTelegramSink(TelegramConfig{Token: "x"}, logx.Nop())
	assert.Error(t, err)
}
