package nlq

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"monobudget/pkg/clock"
)

// PeriodRange is a half-open [Start, End) query window with the human
// token that produced it, used later to phrase the answer.
type PeriodRange struct {
	Start int64
	End   int64
	Label string
}

type monthName struct {
	name  string
	month time.Month
	re    *regexp.Regexp
}

// monthNames accepts Ukrainian, Russian and English month names. The
// common transliteration with latin "i" is included for сiчень.
// RE2's \b is ASCII-only, so the boundary is spelled out explicitly.
var monthNames = func() []monthName {
	pairs := []struct {
		name  string
		month time.Month
	}{
		{"січень", time.January}, {"сiчень", time.January}, {"январь", time.January}, {"january", time.January},
		{"лютий", time.February}, {"февраль", time.February}, {"february", time.February},
		{"березень", time.March}, {"март", time.March}, {"march", time.March},
		{"квітень", time.April}, {"апрель", time.April}, {"april", time.April},
		{"травень", time.May}, {"май", time.May}, {"may", time.May},
		{"червень", time.June}, {"июнь", time.June}, {"june", time.June},
		{"липень", time.July}, {"июль", time.July}, {"july", time.July},
		{"серпень", time.August}, {"август", time.August}, {"august", time.August},
		{"вересень", time.September}, {"сентябрь", time.September}, {"september", time.September},
		{"жовтень", time.October}, {"октябрь", time.October}, {"october", time.October},
		{"листопад", time.November}, {"ноябрь", time.November}, {"november", time.November},
		{"грудень", time.December}, {"декабрь", time.December}, {"december", time.December},
	}
	out := make([]monthName, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, monthName{
			name:  p.name,
			month: p.month,
			re:    regexp.MustCompile(`за\s+` + p.name + `(\s|$|[.,!?])`),
		})
	}
	return out
}()

var (
	todayRe     = regexp.MustCompile(`(^|\s)(сьогодні|сьодні|сегодня|today)(\s|$)`)
	yesterdayRe = regexp.MustCompile(`(^|\s)(вчора|вчера|yesterday)(\s|$)`)
	lastDaysRe  = regexp.MustCompile(`(за\s+останні\s+|за\s+последние\s+|last\s+)(\d{1,3})\s*(дн(і|ів)?|дней|days)`)
	lastWeekRe  = regexp.MustCompile(`(за\s+тиждень|за\s+неделю|last\s+week)`)
	lastMonthRe = regexp.MustCompile(`(за\s+минулий\s+місяць|за\s+прошлый\s+месяц|last\s+month)`)
	numMonthRe  = regexp.MustCompile(`за\s+(\d{4})[-./](\d{1,2})`)
	yearRe      = regexp.MustCompile(`\b(\d{4})\b`)
)

// ParsePeriodRange extracts an explicit time range from the text, or nil
// when no period phrasing is present. Day and month boundaries are UTC.
func ParsePeriodRange(text string, nowTS int64) *PeriodRange {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return nil
	}

	if todayRe.MatchString(s) {
		return &PeriodRange{Start: clock.DayStart(nowTS), End: nowTS, Label: "сьогодні"}
	}
	if yesterdayRe.MatchString(s) {
		today0 := clock.DayStart(nowTS)
		return &PeriodRange{Start: today0 - clock.SecondsPerDay, End: today0, Label: "вчора"}
	}

	if m := lastDaysRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil && n > 0 {
			return &PeriodRange{
				Start: nowTS - int64(n)*clock.SecondsPerDay,
				End:   nowTS,
				Label: "останні " + m[2] + " днів",
			}
		}
	}

	if lastWeekRe.MatchString(s) {
		return &PeriodRange{Start: nowTS - 7*clock.SecondsPerDay, End: nowTS, Label: "тиждень"}
	}

	if lastMonthRe.MatchString(s) {
		w := clock.PreviousMonth(nowTS)
		return &PeriodRange{Start: w.Start, End: w.End, Label: "минулий місяць"}
	}

	for _, mn := range monthNames {
		loc := mn.re.FindStringIndex(s)
		if loc == nil {
			continue
		}
		year := time.Unix(nowTS, 0).UTC().Year()
		// an explicit 4-digit year after the month name wins
		if ym := yearRe.FindStringSubmatch(s[loc[1]:]); ym != nil {
			if y, err := strconv.Atoi(ym[1]); err == nil {
				year = y
			}
		}
		w := clock.MonthRange(year, mn.month)
		return &PeriodRange{Start: w.Start, End: w.End, Label: mn.name}
	}

	if m := numMonthRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			w := clock.MonthRange(year, time.Month(month))
			return &PeriodRange{Start: w.Start, End: w.End, Label: m[1] + "-" + m[2]}
		}
	}

	return nil
}
