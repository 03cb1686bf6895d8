package scheduler

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		kind  SpecKind
		cron  string
		every time.Duration
	}{
		{name: "cron", raw: "0 0 * * *", kind: SpecCron, cron: "0 0 * * *"},
		{name: "descriptor", raw: "@midnight", kind: SpecCron, cron: "@midnight"},
		{name: "prefixed cron", raw: "cron:5 0 * * *", kind: SpecCron, cron: "5 0 * * *"},
		{name: "hhmm is daily", raw: "00:00", kind: SpecDaily, cron: "0 0 * * *"},
		{name: "prefixed daily", raw: "daily:03:30", kind: SpecDaily, cron: "30 3 * * *"},
		{name: "duration", raw: "6h", kind: SpecInterval, cron: "@every 6h0m0s", every: 6 * time.Hour},
		{name: "at every", raw: "@every 90m", kind: SpecInterval, cron: "@every 1h30m0s", every: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Cron != tt.cron {
				t.Fatalf("Cron = %q, want %q", got.Cron, tt.cron)
			}
			if got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "25:00", "daily:7", "every:-1h"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q): expected error", raw)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}
	if _, _, err := parseHHMM("12:60"); err == nil {
		t.Fatal("expected error for minute 60")
	}
}
