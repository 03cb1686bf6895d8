// Package storage persists fired-notification markers so a restart on the same
// day never announces a prayer twice.
//
// A marker is a key plus an expiry instant; expired markers are pruned lazily.
// Two drivers exist: "file" (snapshot plus append-only journal) and "sqlite"
// (modernc.org/sqlite, no cgo).
package storage
