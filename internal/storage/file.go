package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "athand/pkg/logx"
)

const compactEvery = 200

// fileStore keeps markers in memory and persists them as
//   - <prefix>.markers.json   (snapshot, rewritten on compaction)
//   - <prefix>.markers.jsonl  (append-only journal)
type fileStore struct {
	log logx.Logger

	mu       sync.Mutex
	snapPath string
	journal  *os.File
	markers  map[string]int64 // unix milli
	writes   int
	now      func() time.Time
}

type markerRecord struct {
	Key   string `json:"key"`
	Until int64  `json:"until"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:      log,
		snapPath: prefix + ".markers.json",
		markers:  map[string]int64{},
		now:      time.Now,
	}
	journalPath := prefix + ".markers.jsonl"
	if err := loadSnapshot(s.snapPath, s.markers); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("marker snapshot unreadable; starting from journal", logx.Err(err))
	}
	if err := replayJournal(journalPath, s.markers); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("marker journal unreadable", logx.Err(err))
	}
	pruneExpired(s.markers, s.now())

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.journal = jf
	log.Debug("file store opened", logx.String("path", prefix), logx.Int("markers", len(s.markers)))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.compactLocked()
	if cerr := s.journal.Close(); err == nil {
		err = cerr
	}
	s.journal = nil
	return err
}

func (s *fileStore) Mark(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	ms := until.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.journal).Encode(markerRecord{Key: key, Until: ms}); err != nil {
		return err
	}
	s.markers[key] = ms
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("marker compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) Marked(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return time.Time{}, false, ErrClosed
	}
	ms, ok := s.markers[key]
	if !ok || ms < s.now().UnixMilli() {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// compactLocked writes live markers to the snapshot and truncates the journal.
func (s *fileStore) compactLocked() error {
	pruneExpired(s.markers, s.now())

	tmp := s.snapPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.markers); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekEnd)
	return err
}

func loadSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r markerRecord
		// a torn last line after a crash is skipped
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Key == "" {
			continue
		}
		out[r.Key] = r.Until
	}
	return sc.Err()
}

func pruneExpired(m map[string]int64, now time.Time) {
	ms := now.UnixMilli()
	for k, v := range m {
		if v < ms {
			delete(m, k)
		}
	}
}
