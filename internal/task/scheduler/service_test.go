package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"athand/internal/task/engine"
	logx "athand/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firedLog struct {
	mu    sync.Mutex
	names []string
}

func (f *firedLog) job(name string) Job {
	return func(context.Context) error {
		f.mu.Lock()
		f.names = append(f.names, name)
		f.mu.Unlock()
		return nil
	}
}

func (f *firedLog) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

func newStarted(t *testing.T) *Service {
	t.Helper()
	eng := engine.New(engine.Config{Enabled: true, Workers: 2, QueueSize: 16}, logx.Nop(), nil)
	eng.Start(context.Background())
	s := New(Config{Enabled: true, Timezone: "UTC"}, eng, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
		eng.Stop(ctx)
	})
	return s
}

func TestAddOnceRejectsPastDue(t *testing.T) {
	t.Parallel()
	s := newStarted(t)
	f := &firedLog{}

	_, err := s.AddOnce("past", time.Now().Add(-time.Minute), 0, f.job("past"))
	require.ErrorIs(t, err, ErrPastDue)

	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	_, err = s.AddOnce("exact", now, 0, f.job("exact"))
	require.ErrorIs(t, err, ErrPastDue)
	assert.Empty(t, s.Pending())
}

func TestAddOnceFiresOnEngine(t *testing.T) {
	t.Parallel()
	s := newStarted(t)
	f := &firedLog{}

	_, err := s.AddOnce("Fajr", time.Now().Add(50*time.Millisecond), time.Second, f.job("Fajr"))
	require.NoError(t, err)
	require.Len(t, s.Pending(), 1)

	require.Eventually(t, func() bool { return len(f.list()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Fajr"}, f.list())
	assert.Empty(t, s.Pending())
}

func TestReplaceOnceDropsPreviousSet(t *testing.T) {
	t.Parallel()
	s := newStarted(t)
	f := &firedLog{}
	at := time.Now().Add(80 * time.Millisecond)

	_, err := s.AddOnce("old-a", at, 0, f.job("old-a"))
	require.NoError(t, err)
	_, err = s.AddOnce("old-b", at, 0, f.job("old-b"))
	require.NoError(t, err)

	names, err := s.ReplaceOnce([]OnceJob{{Name: "new", At: at, Run: f.job("new")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, names)
	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "new", pending[0].Name)

	require.Eventually(t, func() bool { return len(f.list()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"new"}, f.list())
}

func TestReplaceOnceSameNameFiresOnce(t *testing.T) {
	t.Parallel()
	s := newStarted(t)
	f := &firedLog{}
	at := time.Now().Add(60 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := s.ReplaceOnce([]OnceJob{{Name: "Dhuhr", At: at, Run: f.job("Dhuhr")}})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(f.list()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"Dhuhr"}, f.list())
}

func TestReplaceOnceReportsRejected(t *testing.T) {
	t.Parallel()
	s := newStarted(t)
	f := &firedLog{}
	now := time.Now()

	names, err := s.ReplaceOnce([]OnceJob{
		{Name: "Fajr", At: now.Add(-time.Hour), Run: f.job("Fajr")},
		{Name: "Isha", At: now.Add(time.Hour), Run: f.job("Isha")},
		{Name: "", At: now.Add(time.Hour), Run: f.job("")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPastDue))
	assert.Equal(t, []string{"Isha"}, names)
	require.Len(t, s.Pending(), 1)
	assert.Equal(t, "Isha", s.Pending()[0].Name)
}

func TestCancelAllOnceKeepsCron(t *testing.T) {
	t.Parallel()
	s := newStarted(t)
	f := &firedLog{}

	_, err := s.AddCron("tick", "* * * * * *", time.Second, f.job("tick"))
	require.NoError(t, err)
	_, err = s.AddOnce("Asr", time.Now().Add(time.Hour), 0, f.job("Asr"))
	require.NoError(t, err)
	_, err = s.AddOnce("Isha", time.Now().Add(2*time.Hour), 0, f.job("Isha"))
	require.NoError(t, err)

	assert.Equal(t, 2, s.CancelAllOnce())
	assert.Equal(t, 0, s.CancelAllOnce())
	assert.Empty(t, s.Pending())

	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "tick", snap.Schedules[0].Name)
	require.Eventually(t, func() bool { return len(f.list()) >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestStopPreventsFiring(t *testing.T) {
	t.Parallel()
	eng := engine.New(engine.Config{Enabled: true, Workers: 1, QueueSize: 4}, logx.Nop(), nil)
	eng.Start(context.Background())
	defer eng.Stop(context.Background())
	s := New(Config{Enabled: true}, eng, logx.Nop())
	s.Start(context.Background())
	f := &firedLog{}

	_, err := s.AddOnce("Maghrib", time.Now().Add(50*time.Millisecond), 0, f.job("Maghrib"))
	require.NoError(t, err)
	s.Stop(context.Background())

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, f.list())
	assert.Len(t, s.Pending(), 1)
}

func TestAddOnceBeforeStartArmsOnStart(t *testing.T) {
	t.Parallel()
	eng := engine.New(engine.Config{Enabled: true, Workers: 1, QueueSize: 4}, logx.Nop(), nil)
	eng.Start(context.Background())
	defer eng.Stop(context.Background())
	s := New(Config{Enabled: true}, eng, logx.Nop())
	defer s.Stop(context.Background())
	f := &firedLog{}

	_, err := s.AddOnce("Fajr", time.Now().Add(30*time.Millisecond), 0, f.job("Fajr"))
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, f.list())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return len(f.list()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestPendingOrdered(t *testing.T) {
	t.Parallel()
	s := newStarted(t)
	f := &firedLog{}
	base := time.Now().Add(time.Hour)

	_, err := s.ReplaceOnce([]OnceJob{
		{Name: "Isha", At: base.Add(3 * time.Hour), Run: f.job("Isha")},
		{Name: "Asr", At: base.Add(time.Hour), Run: f.job("Asr")},
		{Name: "Maghrib", At: base.Add(2 * time.Hour), Run: f.job("Maghrib")},
	})
	require.NoError(t, err)

	var names []string
	for _, p := range s.Pending() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Asr", "Maghrib", "Isha"}, names)
}

func TestAddCronUpsertsByName(t *testing.T) {
	t.Parallel()
	s := newStarted(t)
	f := &firedLog{}

	_, err := s.AddCron("refresh", "0 0 * * *", 0, f.job("a"))
	require.NoError(t, err)
	_, err = s.AddSchedule("refresh", "00:00", 0, f.job("b"))
	require.NoError(t, err)
	_, err = s.AddCron("bad", "not cron", 0, f.job("c"))
	require.Error(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "0 0 * * *", snap.Schedules[0].Spec)
	assert.False(t, snap.Schedules[0].Next.IsZero())
	assert.Equal(t, "UTC", snap.Timezone)
}
