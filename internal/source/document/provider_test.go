package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"athand/internal/prayer"
	logx "athand/pkg/logx"
)

const header = "Date,Day,Fajr Begins,Fajr Jama'ah,Sunrise,Zuhr Begins,Zuhr Jama'ah,Asr Begins,Asr Jama'ah,Maghrib Begins,Isha Begins,Isha Jama'ah"

// writeMonth writes a timetable with `days` rows; day 15 carries the fixed
// example times, every other day a generic row.
func writeMonth(t *testing.T, dir string, date time.Time, head string, days int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(head + "\n")
	for d := 1; d <= days; d++ {
		if d == 15 {
			fmt.Fprintf(&b, "%d,Mon,06:02,06:30,07:10,12:30,13:15,15:45,16:15,18:10,19:40,20:00\n", d)
			continue
		}
		fmt.Fprintf(&b, "%d,Tue,05:%02d,06:00,07:00,12:31,13:15,15:40,16:15,18:05,19:35,20:00\n", d, d%60)
	}
	p := filepath.Join(dir, date.Format("01-January-2006")+".csv")
	require.NoError(t, os.WriteFile(p, []byte(b.String()), 0o644))
	return p
}

func day(d int) time.Time {
	return time.Date(2025, time.September, d, 0, 0, 0, 0, time.UTC)
}

func TestFetchReturnsFiveTimingsInOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeMonth(t, dir, day(1), header, 30)
	p := New(Config{Dir: dir}, logx.Nop())

	got, err := p.Fetch(context.Background(), day(15))
	require.NoError(t, err)
	require.Len(t, got, 5)

	want := map[prayer.Name]string{
		prayer.Fajr: "06:02", prayer.Dhuhr: "12:30", prayer.Asr: "15:45", prayer.Maghrib: "18:10", prayer.Isha: "19:40",
	}
	for n, hhmm := range want {
		at, ok := got[n]
		require.True(t, ok, "missing %s", n)
		assert.Equal(t, hhmm, at.Format("15:04"), n)
		assert.Equal(t, "2025-09-15", prayer.DateKey(at), n)
	}
}

func TestFetchEveryDayInRange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeMonth(t, dir, day(1), header, 30)
	p := New(Config{Dir: dir}, logx.Nop())

	for d := 1; d <= 30; d++ {
		got, err := p.Fetch(context.Background(), day(d))
		require.NoError(t, err, "day %d", d)
		require.Len(t, got, 5)
		for _, at := range got {
			assert.Equal(t, d, at.Day())
		}
	}
}

func TestFetchMissingDocument(t *testing.T) {
	t.Parallel()
	p := New(Config{Dir: t.TempDir()}, logx.Nop())
	_, err := p.Fetch(context.Background(), day(15))
	require.Error(t, err)
	assert.True(t, errors.Is(err, prayer.ErrResourceNotFound))
	assert.Contains(t, err.Error(), "09-September-2025.csv")
}

func TestFetchTooFewBeginColumns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeMonth(t, dir, day(1), strings.Replace(header, "Isha Begins", "Isha Starts", 1), 30)
	p := New(Config{Dir: dir}, logx.Nop())

	got, err := p.Fetch(context.Background(), day(15))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, prayer.ErrSchemaMismatch))

	var se *prayer.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 4, se.Found)
}

func TestFetchEmptyDocument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "09-September-2025.csv"), nil, 0o644))
	p := New(Config{Dir: dir}, logx.Nop())

	_, err := p.Fetch(context.Background(), day(1))
	assert.True(t, errors.Is(err, prayer.ErrSchemaMismatch))
}

func TestFetchDayBeyondRows(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeMonth(t, dir, day(1), header, 28)
	p := New(Config{Dir: dir}, logx.Nop())

	_, err := p.Fetch(context.Background(), day(29))
	require.Error(t, err)
	assert.True(t, errors.Is(err, prayer.ErrRowOutOfRange))

	var se *prayer.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 29, se.Day)
	assert.Equal(t, 28, se.Rows)
}

func TestFetchMalformedCell(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := header + "\n1,Mon,06:02,06:30,07:10,12:30,13:15,quarter to four,16:15,18:10,19:40,20:00\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "09-September-2025.csv"), []byte(content), 0o644))
	p := New(Config{Dir: dir}, logx.Nop())

	_, err := p.Fetch(context.Background(), day(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, prayer.ErrTimeParse))

	var se *prayer.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Asr Begins", se.Column)
	assert.Equal(t, "quarter to four", se.Raw)
}

func TestBlankRowKeepsLaterDaysAligned(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := header + "\n" +
		"1,Mon,05:01,05:30,06:40,12:20,13:00,15:30,16:00,18:00,19:30,20:00\n" +
		",,,,,,,,,,,\n" +
		"3,Wed,05:03,05:30,06:40,12:20,13:00,15:30,16:00,18:00,19:30,20:00\n" +
		",,,,,,,,,,,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "09-September-2025.csv"), []byte(content), 0o644))
	p := New(Config{Dir: dir}, logx.Nop())

	_, err := p.Fetch(context.Background(), day(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, prayer.ErrTimeParse))

	got, err := p.Fetch(context.Background(), day(3))
	require.NoError(t, err)
	assert.Equal(t, "05:03", got[prayer.Fajr].Format("15:04"))

	_, err = p.Fetch(context.Background(), day(4))
	assert.True(t, errors.Is(err, prayer.ErrRowOutOfRange))
}

func TestStrictSchemaRejectsExtraColumns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeMonth(t, dir, day(1), header+",Jumuah Begins", 30)

	lenient := New(Config{Dir: dir}, logx.Nop())
	_, err := lenient.Fetch(context.Background(), day(15))
	require.NoError(t, err)

	schema := DefaultSchema()
	schema.Strict = true
	strict := New(Config{Dir: dir, Schema: schema}, logx.Nop())
	_, err = strict.Fetch(context.Background(), day(15))
	assert.True(t, errors.Is(err, prayer.ErrSchemaMismatch))
}

func TestCheckReportsColumnsAndRows(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeMonth(t, dir, day(1), header, 30)
	p := New(Config{Dir: dir}, logx.Nop())

	rep, err := p.Check(context.Background(), day(3))
	require.NoError(t, err)
	assert.Equal(t, path, rep.Path)
	assert.Equal(t, 30, rep.Rows)
	assert.Equal(t, []string{"Fajr Begins", "Zuhr Begins", "Asr Begins", "Maghrib Begins", "Isha Begins"}, rep.Columns)
}

func TestReloadsChangedDocument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeMonth(t, dir, day(1), header, 30)
	p := New(Config{Dir: dir}, logx.Nop())

	_, err := p.Fetch(context.Background(), day(30))
	require.NoError(t, err)

	// Shrink the table; a stale cache would still return day 30.
	writeMonth(t, dir, day(1), header, 20)
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = p.Fetch(context.Background(), day(30))
	assert.True(t, errors.Is(err, prayer.ErrRowOutOfRange))
}
