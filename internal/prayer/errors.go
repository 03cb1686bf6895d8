package prayer

import (
	"errors"
	"fmt"
)

// Kind classifies why a time source failed.
type Kind int

const (
	KindResourceNotFound Kind = iota + 1
	KindSchemaMismatch
	KindRowOutOfRange
	KindTimeParse
	KindNetwork
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrRowOutOfRange    = errors.New("row out of range")
	ErrTimeParse        = errors.New("time parse error")
	ErrNetwork          = errors.New("network error")
)

func (k Kind) String() string {
	switch k {
	case KindResourceNotFound:
		return "resource_not_found"
	case KindSchemaMismatch:
		return "schema_mismatch"
	case KindRowOutOfRange:
		return "row_out_of_range"
	case KindTimeParse:
		return "time_parse"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindResourceNotFound:
		return ErrResourceNotFound
	case KindSchemaMismatch:
		return ErrSchemaMismatch
	case KindRowOutOfRange:
		return ErrRowOutOfRange
	case KindTimeParse:
		return ErrTimeParse
	case KindNetwork:
		return ErrNetwork
	default:
		return nil
	}
}

// SourceError is returned by every Source on failure. Match the category with
// errors.Is against the Err* sentinels, or inspect the fields via errors.As.
type SourceError struct {
	Source string
	Kind   Kind

	// Detail fields; which ones are set depends on Kind.
	Resource string // ResourceNotFound
	Found    int    // SchemaMismatch: number of matching columns found
	Day      int    // RowOutOfRange
	Rows     int    // RowOutOfRange
	Column   string // TimeParse
	Raw      string // TimeParse

	Err error
}

func (e *SourceError) Error() string {
	var msg string
	switch e.Kind {
	case KindResourceNotFound:
		msg = fmt.Sprintf("resource not found: %s", e.Resource)
	case KindSchemaMismatch:
		if e.Err != nil {
			msg = fmt.Sprintf("schema mismatch: %v", e.Err)
		} else {
			msg = fmt.Sprintf("schema mismatch: found %d of %d required columns", e.Found, len(Names))
		}
	case KindRowOutOfRange:
		msg = fmt.Sprintf("row out of range: day %d, table has %d rows", e.Day, e.Rows)
	case KindTimeParse:
		msg = fmt.Sprintf("time parse error: column %q value %q", e.Column, e.Raw)
	case KindNetwork:
		msg = fmt.Sprintf("network error: %v", e.Err)
	default:
		msg = fmt.Sprintf("source error: %v", e.Err)
	}
	if e.Source != "" {
		return e.Source + ": " + msg
	}
	return msg
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is matches the Kind's sentinel so callers can write errors.Is(err, ErrRowOutOfRange).
func (e *SourceError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of err, or 0 if err is not a *SourceError.
func KindOf(err error) Kind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
