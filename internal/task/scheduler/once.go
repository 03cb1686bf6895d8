package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"athand/internal/task/engine"
	logx "athand/pkg/logx"
)

// AddOnce schedules job to fire once at at. An existing one-shot with the same
// name is replaced. Instants at or before now are rejected with ErrPastDue.
func (s *Service) AddOnce(name string, at time.Time, timeout time.Duration, job Job) (string, error) {
	j := OnceJob{Name: name, At: at, Timeout: timeout, Run: job}
	now := s.now()

	s.tmu.Lock()
	defer s.tmu.Unlock()
	if err := s.installLocked(j, now); err != nil {
		return "", err
	}
	return strings.TrimSpace(name), nil
}

// CancelAllOnce removes every pending one-shot job and returns how many were
// removed. Recurring jobs are not affected.
func (s *Service) CancelAllOnce() int {
	s.tmu.Lock()
	n := s.cancelAllLocked()
	s.tmu.Unlock()
	if n > 0 {
		s.log.Debug("one-shot jobs cancelled", logx.Int("count", n))
	}
	return n
}

// ReplaceOnce cancels every pending one-shot job and installs jobs in one
// critical section, so no trigger can observe a partially replaced set.
// Jobs that fail validation are skipped; their errors are joined into err.
// installed lists the names that were armed, in input order.
func (s *Service) ReplaceOnce(jobs []OnceJob) (installed []string, err error) {
	now := s.now()

	s.tmu.Lock()
	cancelled := s.cancelAllLocked()
	var errs []error
	for _, j := range jobs {
		if e := s.installLocked(j, now); e != nil {
			errs = append(errs, e)
			continue
		}
		installed = append(installed, strings.TrimSpace(j.Name))
	}
	s.tmu.Unlock()

	s.log.Debug("one-shot set replaced", logx.Int("cancelled", cancelled), logx.Int("installed", len(installed)), logx.Int("rejected", len(errs)))
	return installed, errors.Join(errs...)
}

// Pending lists the pending one-shot jobs ordered by fire time.
func (s *Service) Pending() []OnceInfo {
	s.tmu.Lock()
	out := make([]OnceInfo, 0, len(s.once))
	for name, d := range s.once {
		out = append(out, OnceInfo{Name: name, At: d.at})
	}
	s.tmu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Name < out[j].Name
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Call with s.tmu held.
func (s *Service) installLocked(j OnceJob, now time.Time) error {
	name := strings.TrimSpace(j.Name)
	if name == "" {
		return errors.New("name required")
	}
	if j.Run == nil {
		return fmt.Errorf("%s: job required", name)
	}
	if j.At.IsZero() {
		return fmt.Errorf("%s: at required", name)
	}
	if !j.At.After(now) {
		return fmt.Errorf("%s at %s: %w", name, j.At.Format(time.RFC3339), ErrPastDue)
	}

	s.dropLocked(name)
	s.ver++
	d := onceDef{at: j.At, timeout: j.Timeout, job: j.Run, ver: s.ver}
	s.once[name] = d
	if s.armed {
		s.armLocked(name, d)
	}
	return nil
}

// Call with s.tmu held.
func (s *Service) cancelAllLocked() int {
	n := len(s.once)
	for _, t := range s.timers {
		_ = t.Stop()
	}
	s.timers = map[string]*time.Timer{}
	s.once = map[string]onceDef{}
	return n
}

// Call with s.tmu held.
func (s *Service) dropLocked(name string) {
	if t, ok := s.timers[name]; ok {
		_ = t.Stop()
		delete(s.timers, name)
	}
	delete(s.once, name)
}

// Call with s.tmu held.
func (s *Service) armLocked(name string, d onceDef) {
	if t, ok := s.timers[name]; ok {
		_ = t.Stop()
	}
	delay := d.at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	ver := d.ver
	s.timers[name] = time.AfterFunc(delay, func() { s.fireOnce(name, ver) })
}

func (s *Service) fireOnce(name string, ver uint64) {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	d, ok := s.once[name]
	// Cancelled, replaced or disarmed since this timer was created.
	if !s.armed || !ok || d.ver != ver {
		return
	}
	delete(s.once, name)
	delete(s.timers, name)

	// Enqueue is non-blocking; doing it under tmu means Stop and ReplaceOnce
	// never race a trigger that already passed the version check.
	s.enqueue(engine.Task{
		Name:    name,
		Timeout: d.timeout,
		Run:     d.job,
		State:   &engine.RunState{},
	})
}
