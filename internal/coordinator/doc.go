// Package coordinator builds today's prayer schedule and installs it.
//
// A refresh asks the primary source first and the fallback exactly once when
// the primary fails. When both fail the day is skipped: the pending set is
// left as it was and the midnight job tries again tomorrow (or sooner, when a
// same-day retry interval is configured). A successful refresh replaces every
// pending one-shot job with the prayers still ahead of now.
package coordinator
