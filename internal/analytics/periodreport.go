package analytics

import (
	"time"

	"monobudget/internal/ledger"
	"monobudget/pkg/clock"
)

// PeriodSide describes one half of a report period.
type PeriodSide struct {
	StartTS     int64  `json:"start_ts"`
	EndTS       int64  `json:"end_ts"`
	StartISOUTC string `json:"start_iso_utc"`
	EndISOUTC   string `json:"end_iso_utc"`
}

// Period is the report's time frame: current window plus the equal-length
// window right before it.
type Period struct {
	DaysBack int        `json:"days_back"`
	Current  PeriodSide `json:"current"`
	Previous PeriodSide `json:"previous"`
}

// PeriodReport is the full report payload: facts for both windows plus the
// comparison. Current carries the attached trend/anomaly/what-if blocks and
// is what gets cached.
type PeriodReport struct {
	Period   Period        `json:"period"`
	Current  *Facts        `json:"current"`
	Previous *Facts        `json:"previous"`
	Compare  *CompareBlock `json:"compare"`
}

func isoUTC(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func periodSide(w clock.Window) PeriodSide {
	return PeriodSide{
		StartTS:     w.Start,
		EndTS:       w.End,
		StartISOUTC: isoUTC(w.Start),
		EndISOUTC:   isoUTC(w.End),
	}
}

func filterRecords(records []ledger.Record, w clock.Window) []ledger.Record {
	out := make([]ledger.Record, 0, len(records))
	for _, r := range records {
		if w.Contains(r.Time) {
			out = append(out, r)
		}
	}
	return out
}

// BuildPeriodReport unifies today/week/month (and any N-day) reports.
// Records may span multiple accounts; anything outside [now-2N, now) is
// ignored.
func BuildPeriodReport(records []ledger.Record, daysBack int, nowTS int64) *PeriodReport {
	if daysBack <= 0 {
		daysBack = 1
	}

	currentW := clock.LastDays(nowTS, daysBack)
	prevW := clock.Previous(currentW)

	currentRows := FromLedger(filterRecords(records, currentW))
	prevRows := FromLedger(filterRecords(records, prevW))

	current := ComputeFacts(currentRows)
	previous := ComputeFacts(prevRows)

	// Trends and anomalies look at raw timestamps, so they get the full
	// two-window row set.
	allRows := FromLedger(records)
	current.Trends = ComputeTrends(allRows, nowTS, 7)
	current.Anomalies = DetectAnomalies(allRows, nowTS, AnomalyOptions{})
	current.WhatIf = BuildWhatIf(currentRows, daysBack)

	compare := &CompareBlock{
		Totals:              CompareTotals(current, previous),
		CategoriesRealSpend: CompareCategories(current.CategoriesRealSpend, previous.CategoriesRealSpend),
		PreviousTotals:      previous.Totals,
	}
	current.Compare = compare

	return &PeriodReport{
		Period: Period{
			DaysBack: daysBack,
			Current:  periodSide(currentW),
			Previous: periodSide(prevW),
		},
		Current:  current,
		Previous: previous,
		Compare:  compare,
	}
}
