package prayer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Name identifies one of the five daily prayers.
type Name string

const (
	Fajr    Name = "Fajr"
	Dhuhr   Name = "Dhuhr"
	Asr     Name = "Asr"
	Maghrib Name = "Maghrib"
	Isha    Name = "Isha"
)

// Names is the canonical, chronological order of the daily prayers.
// Callers must not modify it.
var Names = []Name{Fajr, Dhuhr, Asr, Maghrib, Isha}

// ParseName resolves a prayer name case-insensitively.
func ParseName(s string) (Name, bool) {
	s = strings.TrimSpace(s)
	for _, n := range Names {
		if strings.EqualFold(string(n), s) {
			return n, true
		}
	}
	return "", false
}

// Index returns the position of n in Names, or -1.
func (n Name) Index() int {
	for i, v := range Names {
		if v == n {
			return i
		}
	}
	return -1
}

// Timings maps each prayer to its start instant on a single date.
type Timings map[Name]time.Time

// Source produces a day's timings or fails with a *SourceError.
type Source interface {
	Name() string
	Fetch(ctx context.Context, date time.Time) (Timings, error)
}

// Event is a single prayer start on a given day.
type Event struct {
	Name Name
	At   time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%s", e.Name, e.At.Format("15:04"))
}

// DailySchedule is the ordered set of prayer events for one calendar date.
type DailySchedule struct {
	Date   time.Time
	Source string
	Events []Event
}

// NewDailySchedule orders timings by the fixed prayer sequence. Names not in
// Names are ignored; missing names are simply absent.
func NewDailySchedule(date time.Time, source string, t Timings) DailySchedule {
	events := make([]Event, 0, len(Names))
	for _, n := range Names {
		at, ok := t[n]
		if !ok {
			continue
		}
		events = append(events, Event{Name: n, At: at})
	}
	return DailySchedule{Date: DateOf(date), Source: source, Events: events}
}

// Upcoming returns the events strictly after now. Events at or before now are
// treated as already missed and are returned separately.
func (d DailySchedule) Upcoming(now time.Time) (upcoming, missed []Event) {
	for _, e := range d.Events {
		if e.At.After(now) {
			upcoming = append(upcoming, e)
		} else {
			missed = append(missed, e)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].At.Before(upcoming[j].At) })
	return upcoming, missed
}

// DateOf truncates t to midnight in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateKey formats the calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
