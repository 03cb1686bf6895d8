package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"athand/internal/prayer"
	logx "athand/pkg/logx"
)

// Notification is one due prayer.
type Notification struct {
	Prayer prayer.Name
	At     time.Time // scheduled instant
	Date   string    // prayer.DateKey of At
}

// Text is the human-readable line sinks send or log.
func (n Notification) Text() string {
	return fmt.Sprintf("Time for %s (%s)", n.Prayer, n.At.Format("15:04"))
}

// Result is the outcome of one delivery attempt.
type Result struct {
	Sink      string
	Delivered bool
	Err       error
	Took      time.Duration
	Parts     []Result // set by Multi
}

// OK reports whether delivery succeeded.
func (r Result) OK() bool { return r.Err == nil && r.Delivered }

type Sink interface {
	Name() string
	Notify(ctx context.Context, n Notification) Result
}

func done(sink string, start time.Time, err error) Result {
	return Result{Sink: sink, Delivered: err == nil, Err: err, Took: time.Since(start)}
}

// LogSink logs the notification. It always succeeds.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(ctx context.Context, n Notification) Result {
	_ = ctx
	start := time.Now()
	s.log.Info(n.Text(), logx.String("prayer", string(n.Prayer)), logx.String("date", n.Date))
	return done(s.Name(), start, nil)
}

// Multi delivers to every sink in order. A failing sink does not stop the
// rest; the combined Result carries each part and a joined error.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, n Notification) Result {
	start := time.Now()
	res := Result{Sink: m.Name(), Parts: make([]Result, 0, len(m))}
	var errs []error
	for _, s := range m {
		r := s.Notify(ctx, n)
		if r.Sink == "" {
			r.Sink = s.Name()
		}
		res.Parts = append(res.Parts, r)
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Sink, r.Err))
			continue
		}
		if r.Delivered {
			res.Delivered = true
		}
	}
	res.Err = errors.Join(errs...)
	res.Took = time.Since(start)
	return res
}
