package analytics

import "monobudget/internal/money"

// PctChange returns (current-prev)/prev·100 rounded to 2 decimals, or nil
// when prev is zero. nil is the absent sentinel: renderers must show "—",
// never infinity.
func PctChange(current, prev float64) *float64 {
	v, ok := money.PctChange(current, prev)
	if !ok {
		return nil
	}
	return &v
}

// TotalsCompare carries per-total deltas against the previous period.
type TotalsCompare struct {
	Delta     map[string]float64  `json:"delta"`
	PctChange map[string]*float64 `json:"pct_change"`
}

// CategoryCompare is one named category across both periods.
type CategoryCompare struct {
	CurrentUAH float64  `json:"current_uah"`
	PrevUAH    float64  `json:"prev_uah"`
	DeltaUAH   float64  `json:"delta_uah"`
	PctChange  *float64 `json:"pct_change"`
}

// CompareBlock embeds the previous-period totals and per-category deltas
// into the current facts.
type CompareBlock struct {
	Totals              TotalsCompare              `json:"totals"`
	CategoriesRealSpend map[string]CategoryCompare `json:"categories_real_spend"`
	PreviousTotals      Totals                     `json:"previous_totals"`
}

func totalsAsMap(t Totals) map[string]float64 {
	return map[string]float64{
		"real_spend_total_uah":   t.RealSpendTotalUAH,
		"spend_total_uah":        t.SpendTotalUAH,
		"income_total_uah":       t.IncomeTotalUAH,
		"transfer_in_total_uah":  t.TransferInTotalUAH,
		"transfer_out_total_uah": t.TransferOutTotalUAH,
	}
}

// CompareTotals diffs the five totals of two facts objects.
func CompareTotals(current, prev *Facts) TotalsCompare {
	cur := totalsAsMap(current.Totals)
	pre := totalsAsMap(prev.Totals)

	out := TotalsCompare{
		Delta:     make(map[string]float64, len(cur)),
		PctChange: make(map[string]*float64, len(cur)),
	}
	for key, c := range cur {
		p := pre[key]
		out.Delta[key] = money.Round2(c - p)
		out.PctChange[key] = PctChange(c, p)
	}
	return out
}

// CompareCategories diffs named-category spend across the union of keys.
func CompareCategories(current, prev map[string]float64) map[string]CategoryCompare {
	out := make(map[string]CategoryCompare, len(current)+len(prev))
	for key := range current {
		out[key] = CategoryCompare{}
	}
	for key := range prev {
		out[key] = CategoryCompare{}
	}
	for key := range out {
		c := current[key]
		p := prev[key]
		out[key] = CategoryCompare{
			CurrentUAH: money.Round2(c),
			PrevUAH:    money.Round2(p),
			DeltaUAH:   money.Round2(c - p),
			PctChange:  PctChange(c, p),
		}
	}
	return out
}
