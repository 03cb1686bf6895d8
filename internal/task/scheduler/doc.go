// Package scheduler owns every trigger in the process: recurring cron entries
// (the midnight refresh) and the pending set of one-shot timers (today's
// prayers).
//
// The scheduler never runs jobs itself. When a trigger fires it enqueues a
// task into the engine, so job code always runs on an engine worker and never
// on a cron or timer goroutine.
//
// One-shot timers carry a version; replacing or cancelling a job bumps it, and
// a callback that wakes up with a stale version returns without enqueueing.
package scheduler
