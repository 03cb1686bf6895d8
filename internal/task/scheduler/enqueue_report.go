package scheduler

import (
	"errors"
	"time"

	"golang.org/x/time/rate"

	"athand/internal/task/engine"
	logx "athand/pkg/logx"
)

const enqueueWarnEvery = 5 * time.Second

// reportEnqueueError logs a trigger the engine refused. Overlap skips are
// expected (a slow refresh still running when cron fires again) and stay at
// debug; other failures warn at most once per job per enqueueWarnEvery.
func (s *Service) reportEnqueueError(name string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("schedule trigger skipped", logx.String("job", name), logx.Err(err))
		return
	}

	s.enqMu.Lock()
	gate, ok := s.enqWarn[name]
	if !ok {
		gate = &rate.Sometimes{Interval: enqueueWarnEvery}
		s.enqWarn[name] = gate
	}
	s.enqMu.Unlock()

	gate.Do(func() {
		s.log.Warn("schedule failed to enqueue task", logx.String("job", name), logx.Err(err))
	})
}
