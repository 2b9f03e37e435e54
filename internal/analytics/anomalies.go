package analytics

import (
	"sort"

	"monobudget/pkg/clock"
)

// categoryLabelPrefix marks anomalies detected on the category axis so a
// renderer can tell them apart from merchant labels.
const categoryLabelPrefix = "категорія: "

// Anomaly flags one label whose last-day spend stands out against its
// lookback baseline.
type Anomaly struct {
	Label               string `json:"label"`
	LastDayCents        int64  `json:"last_day_cents"`
	BaselineMedianCents int64  `json:"baseline_median_cents"`
	Reason              string `json:"reason"` // "spike_vs_median" or "first_time_large"
}

// AnomalyOptions tune the detector. Zero values fall back to defaults.
type AnomalyOptions struct {
	LookbackDays      int     // clamped to [7,90], default 28
	SpikeMult         float64 // default 2.0
	MinThresholdCents int64   // default 20000 (200 UAH)
	AbsDeltaMinCents  int64   // default 3000 (30 UAH), floor on the MAD term
}

func (o AnomalyOptions) normalized() AnomalyOptions {
	if o.LookbackDays == 0 {
		o.LookbackDays = 28
	}
	o.LookbackDays = clampLookback(o.LookbackDays)
	if o.SpikeMult == 0 {
		o.SpikeMult = 2.0
	}
	if o.MinThresholdCents == 0 {
		o.MinThresholdCents = 20000
	}
	if o.AbsDeltaMinCents == 0 {
		o.AbsDeltaMinCents = 3000
	}
	return o
}

// madInt64 is the median absolute deviation around med.
func madInt64(vals []int64, med int64) int64 {
	devs := make([]int64, 0, len(vals))
	for _, v := range vals {
		d := v - med
		if d < 0 {
			d = -d
		}
		devs = append(devs, d)
	}
	return medianInt64(devs)
}

// DetectAnomalies runs the detector twice over the same rows, once bucketed
// by merchant and once by category, and merges both axes into a single
// top-5 ranked by how far the last day sits above its baseline.
func DetectAnomalies(rows []Row, nowTS int64, opts AnomalyOptions) []Anomaly {
	opts = opts.normalized()

	merchant := detectAxis(rows, nowTS, opts, func(r Row) string {
		return merchantLabel(r.Description)
	})
	category := detectAxis(rows, nowTS, opts, func(r Row) string {
		cat := CategoryFromMCC(r.MCC)
		if cat == "" {
			return ""
		}
		return categoryLabelPrefix + cat
	})

	out := append(merchant, category...)
	sort.Slice(out, func(i, j int) bool {
		di := out[i].LastDayCents - out[i].BaselineMedianCents
		dj := out[j].LastDayCents - out[j].BaselineMedianCents
		if di != dj {
			return di > dj
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// detectAxis flags labels for one bucketing function. Rows the function maps
// to an empty label are skipped.
func detectAxis(rows []Row, nowTS int64, opts AnomalyOptions, labelOf func(Row) string) []Anomaly {
	lastDayStart := nowTS - clock.SecondsPerDay
	histStart := nowTS - int64(opts.LookbackDays)*clock.SecondsPerDay

	dailyByLabel := map[string]map[int64]int64{}
	lastDayBy := map[string]int64{}
	seenBefore := map[string]struct{}{}

	for _, r := range rows {
		if r.Kind != KindSpend {
			continue
		}
		label := labelOf(r)
		if label == "" {
			continue
		}
		cents := -r.Amount

		if r.Time >= histStart && r.Time < lastDayStart {
			seenBefore[label] = struct{}{}
		}
		if r.Time >= lastDayStart && r.Time < nowTS {
			lastDayBy[label] += cents
		}
		if r.Time >= histStart && r.Time < nowTS {
			day := r.Time / clock.SecondsPerDay
			m := dailyByLabel[label]
			if m == nil {
				m = map[int64]int64{}
				dailyByLabel[label] = m
			}
			m[day] += cents
		}
	}

	var out []Anomaly
	for label, lastCents := range lastDayBy {
		var histVals []int64
		for day, v := range dailyByLabel[label] {
			if day*clock.SecondsPerDay < lastDayStart {
				histVals = append(histVals, v)
			}
		}
		baseMed := medianInt64(histVals)

		if _, ok := seenBefore[label]; !ok {
			if lastCents >= opts.MinThresholdCents {
				out = append(out, Anomaly{
					Label:               label,
					LastDayCents:        lastCents,
					BaselineMedianCents: baseMed,
					Reason:              "first_time_large",
				})
			}
			continue
		}

		if len(histVals) < 3 || baseMed <= 0 {
			continue
		}
		madTerm := int64(opts.SpikeMult * float64(madInt64(histVals, baseMed)))
		if madTerm < opts.AbsDeltaMinCents {
			madTerm = opts.AbsDeltaMinCents
		}
		dynamicFloor := baseMed + madTerm
		threshold := opts.MinThresholdCents
		if multMed := int64(opts.SpikeMult * float64(baseMed)); multMed > threshold {
			threshold = multMed
		}
		if dynamicFloor > threshold {
			threshold = dynamicFloor
		}
		if lastCents >= threshold {
			out = append(out, Anomaly{
				Label:               label,
				LastDayCents:        lastCents,
				BaselineMedianCents: baseMed,
				Reason:              "spike_vs_median",
			})
		}
	}
	return out
}
