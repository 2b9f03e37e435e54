package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayStart(t *testing.T) {
	ts := int64(100*SecondsPerDay + 12345)
	assert.Equal(t, int64(100*SecondsPerDay), DayStart(ts))
	assert.Equal(t, int64(100*SecondsPerDay), DayStart(int64(100*SecondsPerDay)))
}

func TestPreviousWindowPairsEqualSpan(t *testing.T) {
	w := Window{Start: 1000, End: 4000}
	prev := Previous(w)
	assert.Equal(t, int64(-2000), prev.Start)
	assert.Equal(t, int64(1000), prev.End)
	assert.Equal(t, w.End-w.Start, prev.End-prev.Start)
}

func TestLastDaysWindows(t *testing.T) {
	now := int64(200 * SecondsPerDay)
	assert.Equal(t, 7, Week(now).Days())
	assert.Equal(t, 30, Month(now).Days())
	assert.Equal(t, now-15*SecondsPerDay, LastDays(now, 15).Start)
}

func TestMonthRange(t *testing.T) {
	w := MonthRange(2025, time.December)
	start := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, start.Unix(), w.Start)
	require.Equal(t, end.Unix(), w.End)
}

func TestPreviousMonthAcrossYearBoundary(t *testing.T) {
	now := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC).Unix()
	w := PreviousMonth(now)
	assert.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC).Unix(), w.Start)
}

func TestFixedClock(t *testing.T) {
	c := NewFixedUnix(123456)
	assert.Equal(t, int64(123456), c.Now().Unix())
}
