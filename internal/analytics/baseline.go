package analytics

import (
	"sort"
	"strings"

	"monobudget/pkg/clock"
)

// BaselineCompare is yesterday's spend against the lookback median.
// All values are minor units.
type BaselineCompare struct {
	YesterdayCents      int64 `json:"yesterday_cents"`
	BaselineMedianCents int64 `json:"baseline_median_cents"`
	DeltaCents          int64 `json:"delta_cents"`
}

func medianInt64(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]int64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clampLookback(days int) int {
	if days < 7 {
		return 7
	}
	if days > 90 {
		return 90
	}
	return days
}

// CompareYesterdayToBaseline sums yesterday's spend matching the merchant or
// category filter and compares it to the median of the per-day totals over
// [today0 - lookback days, today0). Day boundaries are UTC.
func CompareYesterdayToBaseline(rows []Row, nowTS int64, merchantContains, category string, lookbackDays int) BaselineCompare {
	lookbackDays = clampLookback(lookbackDays)

	today0 := clock.DayStart(nowTS)
	yesterday0 := today0 - clock.SecondsPerDay
	histStart := today0 - int64(lookbackDays)*clock.SecondsPerDay

	filter := strings.ToLower(strings.TrimSpace(merchantContains))
	category = strings.TrimSpace(category)

	var yesterdaySum int64
	daily := map[int64]int64{}

	for _, r := range rows {
		if r.Kind != KindSpend {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(r.Description), filter) {
			continue
		}
		if category != "" && CategoryFromMCC(r.MCC) != category {
			continue
		}

		cents := -r.Amount
		if r.Time >= yesterday0 && r.Time < today0 {
			yesterdaySum += cents
		}
		if r.Time >= histStart && r.Time < today0 {
			daily[r.Time/clock.SecondsPerDay] += cents
		}
	}

	vals := make([]int64, 0, len(daily))
	for _, v := range daily {
		vals = append(vals, v)
	}
	base := medianInt64(vals)

	return BaselineCompare{
		YesterdayCents:      yesterdaySum,
		BaselineMedianCents: base,
		DeltaCents:          yesterdaySum - base,
	}
}
