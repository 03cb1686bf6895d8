// Package dispatch turns a due prayer into exactly one notification.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"athand/internal/eventbus"
	"athand/internal/notify"
	"athand/internal/prayer"
	"athand/internal/storage"
	logx "athand/pkg/logx"
)

// Notice is published on the bus for prayer.due and prayer.notified.
type Notice struct {
	Prayer    prayer.Name   `json:"prayer"`
	At        time.Time     `json:"at"`
	Date      string        `json:"date"`
	Duplicate bool          `json:"duplicate,omitempty"`
	Result    notify.Result `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// Dispatcher hands due events to a sink. Each (prayer, date) is delivered at
// most once per process, and once across restarts when a store is set.
// Sink failures and panics are logged, never returned.
type Dispatcher struct {
	sink  notify.Sink
	store storage.Store
	log   logx.Logger
	bus   eventbus.Bus
	now   func() time.Time

	mu    sync.Mutex
	fired map[string]time.Time // key -> expiry
}

func New(sink notify.Sink, store storage.Store, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sink == nil {
		sink = notify.NewLogSink(log)
	}
	return &Dispatcher{
		sink:  sink,
		store: store,
		log:   log,
		bus:   bus,
		now:   time.Now,
		fired: map[string]time.Time{},
	}
}

// Key is the marker key for one prayer on one date.
func Key(p prayer.Name, date string) string {
	return fmt.Sprintf("fired:%s:%s", date, p)
}

// Job returns the scheduler job for ev.
func (d *Dispatcher) Job(ev prayer.Event) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		d.OnDue(ctx, ev)
		return nil
	}
}

// OnDue notifies ev unless it was already notified for its date. The
// returned Notice reports what happened.
func (d *Dispatcher) OnDue(ctx context.Context, ev prayer.Event) Notice {
	date := prayer.DateKey(ev.At)
	n := Notice{Prayer: ev.Name, At: ev.At, Date: date}
	log := d.log.With(logx.String("prayer", string(ev.Name)), logx.String("date", date))
	d.publish(eventbus.TypeDue, n)

	key := Key(ev.Name, date)
	if !d.claim(ctx, key, endOfDay(ev.At), log) {
		n.Duplicate = true
		log.Info("prayer already notified; skipping")
		return n
	}

	log.Info("prayer due", logx.String("at", ev.At.Format("15:04")))
	n.Result = d.deliver(ctx, notify.Notification{Prayer: ev.Name, At: ev.At, Date: date}, log)
	if n.Result.Err != nil {
		n.Error = n.Result.Err.Error()
		log.Warn("notification failed", logx.String("sink", n.Result.Sink), logx.Err(n.Result.Err), logx.Duration("took", n.Result.Took))
	} else {
		log.Debug("notification delivered", logx.String("sink", n.Result.Sink), logx.Duration("took", n.Result.Took))
	}
	d.publish(eventbus.TypeNotified, n)
	return n
}

// claim records key and reports whether this call owns the notification.
// The marker is written before the sink runs, so a crash mid-delivery
// prefers a missed athan over a repeated one.
func (d *Dispatcher) claim(ctx context.Context, key string, until time.Time, log logx.Logger) bool {
	now := d.now()

	d.mu.Lock()
	for k, exp := range d.fired {
		if exp.Before(now) {
			delete(d.fired, k)
		}
	}
	if _, ok := d.fired[key]; ok {
		d.mu.Unlock()
		return false
	}
	d.fired[key] = until
	d.mu.Unlock()

	if d.store == nil {
		return true
	}
	if _, ok, err := d.store.Marked(ctx, key); err != nil {
		log.Warn("fired marker lookup failed", logx.Err(err))
	} else if ok {
		return false
	}
	if err := d.store.Mark(ctx, key, until); err != nil {
		log.Warn("fired marker write failed", logx.Err(err))
	}
	return true
}

func (d *Dispatcher) deliver(ctx context.Context, n notify.Notification, log logx.Logger) (res notify.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("sink panicked", logx.String("sink", d.sink.Name()), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			res = notify.Result{Sink: d.sink.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	res = d.sink.Notify(ctx, n)
	if res.Sink == "" {
		res.Sink = d.sink.Name()
	}
	return res
}

func (d *Dispatcher) publish(typ string, n Notice) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Type: typ, Data: n})
}

func endOfDay(t time.Time) time.Time {
	y, m, dd := t.Date()
	return time.Date(y, m, dd+1, 0, 0, 0, 0, t.Location())
}
