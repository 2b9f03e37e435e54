package analytics

import (
	"monobudget/internal/ledger"
	"monobudget/internal/money"
)

// Profile summarizes long-term spending habits. It is rebuilt from deep
// history rather than a report window and feeds the LLM enrichment prompt.
type Profile struct {
	AvgCheckUAH           float64         `json:"avg_check_uah"`
	TotalSpendUAH         float64         `json:"total_spend_uah"`
	SpendTxCount          int             `json:"spend_tx_count"`
	TopCategoriesLongTerm []LabeledAmount `json:"top_categories_long_term"`
	TopMerchantsLongTerm  []LabeledAmount `json:"top_merchants_long_term"`
}

// BuildProfile aggregates spend rows across the full record set. Returns
// nil when there is nothing to profile.
func BuildProfile(records []ledger.Record) *Profile {
	rows := FromLedger(records)
	if len(rows) == 0 {
		return nil
	}

	var totalSpend int64
	var txCount int
	catSpend := map[string]int64{}
	merchantSpend := map[string]int64{}

	for _, r := range rows {
		if r.Kind != KindSpend {
			continue
		}
		cents := -r.Amount
		totalSpend += cents
		txCount++

		cat := CategoryFromMCC(r.MCC)
		if cat == "" {
			cat = CategoryOther
		}
		catSpend[cat] += cents
		merchantSpend[merchantLabel(r.Description)] += cents
	}

	var avgCheck float64
	if txCount > 0 {
		avgCheck = money.ToUAH(totalSpend / int64(txCount))
	}

	return &Profile{
		AvgCheckUAH:           avgCheck,
		TotalSpendUAH:         money.ToUAH(totalSpend),
		SpendTxCount:          txCount,
		TopCategoriesLongTerm: topN(catSpend, 5),
		TopMerchantsLongTerm:  topN(merchantSpend, 5),
	}
}
