package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"athand/internal/prayer"
	logx "athand/pkg/logx"
)

const sourceName = "document"

// Config controls where monthly timetables are looked up.
type Config struct {
	// Dir holds one file per month, named like "09-September-2025.csv".
	Dir string
	// Ext is the file extension including the dot. Default ".csv".
	Ext    string
	Schema Schema
}

// Provider is a prayer.Source backed by monthly timetable files.
type Provider struct {
	cfg Config
	log logx.Logger

	mu    sync.Mutex
	cache map[string]cachedTable
}

type cachedTable struct {
	modTime time.Time
	size    int64
	t       *table
}

// Report summarizes a loaded timetable (used by `athand check`).
type Report struct {
	Path    string
	Columns []string
	Rows    int
}

func New(cfg Config, log logx.Logger) *Provider {
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = "./calendar"
	}
	if strings.TrimSpace(cfg.Ext) == "" {
		cfg.Ext = ".csv"
	}
	if !strings.HasPrefix(cfg.Ext, ".") {
		cfg.Ext = "." + cfg.Ext
	}
	cfg.Schema = cfg.Schema.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Provider{cfg: cfg, log: log, cache: map[string]cachedTable{}}
}

func (p *Provider) Name() string { return sourceName }

// Path returns the timetable path for date's month and year.
func (p *Provider) Path(date time.Time) string {
	return filepath.Join(p.cfg.Dir, date.Format("01-January-2006")+p.cfg.Ext)
}

// Fetch returns the timings for date from its month's timetable.
func (p *Provider) Fetch(ctx context.Context, date time.Time) (prayer.Timings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := p.Path(date)
	t, err := p.load(path)
	if err != nil {
		return nil, err
	}

	day := date.Day()
	if day < 1 || day > len(t.rows) {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindRowOutOfRange, Day: day, Rows: len(t.rows)}
	}
	row := t.rows[day-1]

	out := make(prayer.Timings, len(p.cfg.Schema.Order))
	for i, name := range p.cfg.Schema.Order {
		at, ok := prayer.ParseClock(date, row[i])
		if !ok {
			return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindTimeParse, Column: t.columns[i], Raw: row[i]}
		}
		out[name] = at
	}
	p.log.Debug("timetable row read", logx.String("path", path), logx.Int("day", day))
	return out, nil
}

// Check loads and validates the timetable for date's month.
func (p *Provider) Check(ctx context.Context, date time.Time) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	path := p.Path(date)
	t, err := p.load(path)
	if err != nil {
		return Report{Path: path}, err
	}
	return Report{Path: path, Columns: append([]string(nil), t.columns...), Rows: len(t.rows)}, nil
}

// load returns the parsed table for path, reusing the cached copy while the
// file's size and modification time are unchanged.
func (p *Provider) load(path string) (*table, error) {
	fi, err := os.Stat(path)
	if err != nil {
		// Unreadable is treated like absent: the remote source takes over either way.
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindResourceNotFound, Resource: path, Err: err}
	}
	if fi.IsDir() {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindResourceNotFound, Resource: path, Err: fmt.Errorf("%s is a directory", path)}
	}

	p.mu.Lock()
	c, ok := p.cache[path]
	p.mu.Unlock()
	if ok && c.modTime.Equal(fi.ModTime()) && c.size == fi.Size() {
		return c.t, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindResourceNotFound, Resource: path, Err: err}
	}
	defer f.Close()

	t, err := readTable(f, p.cfg.Schema)
	if err != nil {
		var se *schemaError
		if errors.As(err, &se) {
			return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindSchemaMismatch, Found: se.found}
		}
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindSchemaMismatch, Err: err}
	}

	p.mu.Lock()
	p.cache[path] = cachedTable{modTime: fi.ModTime(), size: fi.Size(), t: t}
	// Keep only the current and previous month around.
	if len(p.cache) > 2 {
		for k := range p.cache {
			if k != path {
				delete(p.cache, k)
				break
			}
		}
	}
	p.mu.Unlock()

	p.log.Debug("timetable loaded", logx.String("path", path), logx.Strs("columns", t.columns), logx.Int("rows", len(t.rows)))
	return t, nil
}
