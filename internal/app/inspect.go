package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"athand/internal/config"
	"athand/internal/coordinator"
	"athand/internal/prayer"
	"athand/internal/source/document"
	logx "athand/pkg/logx"
)

// Location returns the zone configured for triggers and wall-clock times.
func Location(cfg *config.Config) (*time.Location, error) {
	tz := strings.TrimSpace(cfg.EffectiveTimezone())
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ParseDate reads "YYYY-MM-DD" in loc. An empty string means today.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return prayer.DateOf(time.Now().In(loc)), nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", raw, err)
	}
	return d, nil
}

// Resolve fetches date's schedule with the configured sources without
// scheduling anything.
func Resolve(ctx context.Context, cfg *config.Config, date time.Time, log logx.Logger) (prayer.DailySchedule, coordinator.Result, error) {
	primary, fallback, err := buildSources(cfg, log)
	if err != nil {
		return prayer.DailySchedule{}, coordinator.Result{}, err
	}
	coordCfg, err := mapCoordinatorConfig(cfg)
	if err != nil {
		return prayer.DailySchedule{}, coordinator.Result{}, err
	}
	c := coordinator.New(coordCfg, primary, fallback, nil, nil, nil, log, nil)
	sched, res := c.Resolve(ctx, date)
	return sched, res, res.Err
}

// CheckDocument loads and validates date's monthly timetable.
func CheckDocument(ctx context.Context, cfg *config.Config, date time.Time, log logx.Logger) (document.Report, error) {
	return newDocumentProvider(cfg, log).Check(ctx, date)
}
