package analytics

import (
	"sort"
	"strings"

	"monobudget/pkg/clock"
)

// maxMerchantLabel bounds normalized labels so long free-text descriptions
// bucket together.
const maxMerchantLabel = 48

// merchantLabel normalizes a description into a bucketing label: lowercase,
// trimmed, tail identifiers (card numbers, order ids) stripped, bounded.
func merchantLabel(description string) string {
	s := strings.ToLower(strings.TrimSpace(description))
	if s == "" {
		return "unknown"
	}
	s = strings.TrimRight(s, "0123456789*#-. ")
	if s == "" {
		return "unknown"
	}
	if len(s) > maxMerchantLabel {
		s = s[:maxMerchantLabel]
	}
	return s
}

// TrendItem is one merchant's movement between the two windows.
type TrendItem struct {
	Label      string  `json:"label"`
	PrevCents  int64   `json:"prev_cents"`
	LastCents  int64   `json:"last_cents"`
	DeltaCents int64   `json:"delta_cents"`
	DeltaPct   float64 `json:"delta_pct"`
}

// Trends is the two-window ranking attached to a period report.
type Trends struct {
	WindowDays   int         `json:"window_days"`
	LastStartTS  int64       `json:"last_start_ts"`
	PrevStartTS  int64       `json:"prev_start_ts"`
	TopGrowing   []TrendItem `json:"top_growing"`
	TopDeclining []TrendItem `json:"top_declining"`
}

func clampTrendWindow(days int) int {
	if days < 3 {
		return 3
	}
	if days > 31 {
		return 31
	}
	return days
}

// ComputeTrends partitions spend rows by merchant label into
// last = [now-W, now) and previous = [now-2W, now-W) and ranks the deltas.
func ComputeTrends(rows []Row, nowTS int64, windowDays int) *Trends {
	windowDays = clampTrendWindow(windowDays)

	lastStart := nowTS - int64(windowDays)*clock.SecondsPerDay
	prevStart := lastStart - int64(windowDays)*clock.SecondsPerDay

	lastBy := map[string]int64{}
	prevBy := map[string]int64{}

	for _, r := range rows {
		if r.Kind != KindSpend {
			continue
		}
		label := merchantLabel(r.Description)
		cents := -r.Amount

		switch {
		case r.Time >= prevStart && r.Time < lastStart:
			prevBy[label] += cents
		case r.Time >= lastStart && r.Time < nowTS:
			lastBy[label] += cents
		}
	}

	labels := map[string]struct{}{}
	for l := range prevBy {
		labels[l] = struct{}{}
	}
	for l := range lastBy {
		labels[l] = struct{}{}
	}

	items := make([]TrendItem, 0, len(labels))
	for label := range labels {
		prev := prevBy[label]
		last := lastBy[label]
		delta := last - prev

		var pct float64
		switch {
		case prev > 0:
			pct = float64(delta) / float64(prev)
		case last > 0:
			pct = 1.0
		}

		items = append(items, TrendItem{
			Label:      label,
			PrevCents:  prev,
			LastCents:  last,
			DeltaCents: delta,
			DeltaPct:   pct,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].DeltaCents != items[j].DeltaCents {
			return items[i].DeltaCents > items[j].DeltaCents
		}
		return items[i].Label < items[j].Label
	})

	var growing, declining []TrendItem
	for _, it := range items {
		if it.DeltaCents > 0 && len(growing) < 3 {
			growing = append(growing, it)
		}
	}
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].DeltaCents < 0 && len(declining) < 3 {
			declining = append(declining, items[i])
		}
	}

	return &Trends{
		WindowDays:   windowDays,
		LastStartTS:  lastStart,
		PrevStartTS:  prevStart,
		TopGrowing:   growing,
		TopDeclining: declining,
	}
}
