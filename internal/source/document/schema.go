package document

import (
	"strings"

	"athand/internal/prayer"
)

const DefaultMarker = "Begins"

// Schema describes which columns of a timetable hold prayer start times.
type Schema struct {
	// Marker is the substring shared by all begin-column headers.
	Marker string
	// Order is the prayer each matching column encodes, left to right.
	Order []prayer.Name
	// Strict rejects tables with more begin-columns than Order instead of
	// using the leftmost ones.
	Strict bool
}

// DefaultSchema matches headers like "Fajr Begins", "Zuhr Begins", ...
func DefaultSchema() Schema {
	return Schema{Marker: DefaultMarker, Order: prayer.Names}
}

func (s Schema) withDefaults() Schema {
	if strings.TrimSpace(s.Marker) == "" {
		s.Marker = DefaultMarker
	}
	if len(s.Order) == 0 {
		s.Order = prayer.Names
	}
	return s
}

// resolve returns the header indexes of the begin-columns, or the number of
// matching columns found when there are fewer than required.
func (s Schema) resolve(header []string) (idx []int, found int, ok bool) {
	for i, h := range header {
		if strings.Contains(h, s.Marker) {
			idx = append(idx, i)
		}
	}
	if len(idx) < len(s.Order) || (s.Strict && len(idx) != len(s.Order)) {
		return nil, len(idx), false
	}
	return idx[:len(s.Order)], len(idx), true
}
