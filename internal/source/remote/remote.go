// Package remote fetches prayer times from an Aladhan-compatible HTTP API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"athand/internal/prayer"
	logx "athand/pkg/logx"
)

const (
	sourceName = "remote"

	DefaultBaseURL = "http://api.aladhan.com/v1"

	maxBodyBytes = 1 << 20
)

// Config holds the request parameters. Method and School are passed through
// verbatim; see the API documentation for their meaning.
type Config struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	Method    int
	School    int
	Timeout   time.Duration
}

type Provider struct {
	cfg  Config
	log  logx.Logger
	http *http.Client
}

// New builds a provider. If client is nil a client with cfg.Timeout is used.
func New(cfg Config, client *http.Client, log logx.Logger) *Provider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Provider{cfg: cfg, log: log, http: client}
}

func (p *Provider) Name() string { return sourceName }

// URL returns the request URL for date.
func (p *Provider) URL(date time.Time) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(p.cfg.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(p.cfg.Longitude, 'f', -1, 64))
	q.Set("method", strconv.Itoa(p.cfg.Method))
	q.Set("school", strconv.Itoa(p.cfg.School))
	return fmt.Sprintf("%s/timings/%d-%d-%d?%s", p.cfg.BaseURL, date.Day(), int(date.Month()), date.Year(), q.Encode())
}

type timingsResponse struct {
	Code int `json:"code"`
	Data *struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

func (p *Provider) Fetch(ctx context.Context, date time.Time) (prayer.Timings, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	u := p.URL(date)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindNetwork, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindNetwork, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	p.log.Debug("timings fetched", logx.String("url", u), logx.Int("status", resp.StatusCode), logx.Duration("took", time.Since(start)))

	var tr timingsResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindSchemaMismatch, Err: fmt.Errorf("decode: %w", err)}
	}
	if tr.Data == nil || tr.Data.Timings == nil {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindSchemaMismatch, Err: fmt.Errorf("response has no data.timings")}
	}

	out := make(prayer.Timings, len(prayer.Names))
	found := 0
	for _, n := range prayer.Names {
		if _, ok := tr.Data.Timings[string(n)]; ok {
			found++
		}
	}
	if found < len(prayer.Names) {
		return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindSchemaMismatch, Found: found}
	}
	for _, n := range prayer.Names {
		raw := tr.Data.Timings[string(n)]
		at, ok := prayer.ParseClock(date, clockPart(raw))
		if !ok {
			return nil, &prayer.SourceError{Source: sourceName, Kind: prayer.KindTimeParse, Column: string(n), Raw: raw}
		}
		out[n] = at
	}
	return out, nil
}

// clockPart strips an optional zone suffix, e.g. "05:12 (BST)" -> "05:12".
func clockPart(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}
