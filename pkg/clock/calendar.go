package clock

import "time"

// SecondsPerDay is the length of a UTC day bucket.
const SecondsPerDay = 86400

// Window is a half-open unix-second interval [Start, End).
type Window struct {
	Start int64
	End   int64
}

// Days returns the whole number of days the window spans.
func (w Window) Days() int {
	if w.End <= w.Start {
		return 0
	}
	return int((w.End - w.Start) / SecondsPerDay)
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts < w.End
}

// DayStart floors a unix timestamp to its UTC day boundary.
func DayStart(ts int64) int64 {
	if ts < 0 {
		ts -= SecondsPerDay - 1
	}
	return (ts / SecondsPerDay) * SecondsPerDay
}

// Today returns [start-of-day UTC, now).
func Today(now int64) Window {
	return Window{Start: DayStart(now), End: now}
}

// LastDays returns [now - n days, now).
func LastDays(now int64, n int) Window {
	if n < 0 {
		n = 0
	}
	return Window{Start: now - int64(n)*SecondsPerDay, End: now}
}

// Week returns the trailing 7-day window ending at now.
func Week(now int64) Window {
	return LastDays(now, 7)
}

// Month returns the trailing 30-day window ending at now.
func Month(now int64) Window {
	return LastDays(now, 30)
}

// Previous pairs a window with the equally sized window preceding it:
// [a, b) maps to [a-(b-a), a).
func Previous(w Window) Window {
	span := w.End - w.Start
	return Window{Start: w.Start - span, End: w.Start}
}

// MonthRange returns the UTC calendar-month window for (year, month).
func MonthRange(year int, month time.Month) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return Window{Start: start.Unix(), End: end.Unix()}
}

// PreviousMonth returns the calendar month before the one containing now.
func PreviousMonth(now int64) Window {
	t := time.Unix(now, 0).UTC()
	year, month := t.Year(), t.Month()
	if month == time.January {
		year--
		month = time.December
	} else {
		month--
	}
	return MonthRange(year, month)
}
