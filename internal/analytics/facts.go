package analytics

import (
	"sort"
	"strconv"

	"monobudget/internal/money"
)

// Totals are the per-direction sums in major units.
type Totals struct {
	IncomeTotalUAH      float64 `json:"income_total_uah"`
	SpendTotalUAH       float64 `json:"spend_total_uah"`
	TransferInTotalUAH  float64 `json:"transfer_in_total_uah"`
	TransferOutTotalUAH float64 `json:"transfer_out_total_uah"`
	RealSpendTotalUAH   float64 `json:"real_spend_total_uah"`
}

// LabeledAmount is one entry of an ordered top-N list.
type LabeledAmount struct {
	Label     string  `json:"label"`
	AmountUAH float64 `json:"amount_uah"`
}

// AccountBreakdown is the per-account slice of the period.
type AccountBreakdown struct {
	Count          int     `json:"count"`
	IncomeUAH      float64 `json:"income_uah"`
	SpendUAH       float64 `json:"spend_uah"`
	TransferInUAH  float64 `json:"transfer_in_uah"`
	TransferOutUAH float64 `json:"transfer_out_uah"`
}

// Facts is the serialized analytics contract for one period.
// Optional blocks are attached by the period report builder.
type Facts struct {
	TransactionsCount int    `json:"transactions_count"`
	Totals            Totals `json:"totals"`

	TopMerchantsRealSpend       []LabeledAmount    `json:"top_merchants_real_spend"`
	TopCategoriesRealSpend      []LabeledAmount    `json:"top_categories_real_spend"`
	CategoriesRealSpend         map[string]float64 `json:"categories_real_spend"`
	TopCategoriesNamedRealSpend []LabeledAmount    `json:"top_categories_named_real_spend"`
	UncategorizedSpendUAH       float64            `json:"uncategorized_spend_uah"`

	ByAccount map[string]AccountBreakdown `json:"by_account"`

	CategorySharesRealSpend     map[string]float64 `json:"category_shares_real_spend"`
	TopMerchantsSharesRealSpend map[string]float64 `json:"top_merchants_shares_real_spend"`

	Trends    *Trends        `json:"trends,omitempty"`
	Anomalies []Anomaly      `json:"anomalies,omitempty"`
	Compare   *CompareBlock  `json:"compare,omitempty"`
	WhatIf    []WhatIfOption `json:"whatif_suggestions,omitempty"`
}

// topN turns a minor-unit map into an ordered major-unit list: amount
// descending, label ascending on ties, at most n entries.
func topN(m map[string]int64, n int) []LabeledAmount {
	out := make([]LabeledAmount, 0, len(m))
	for label, cents := range m {
		out = append(out, LabeledAmount{Label: label, AmountUAH: money.ToUAH(cents)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AmountUAH != out[j].AmountUAH {
			return out[i].AmountUAH > out[j].AmountUAH
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type accountAgg struct {
	count                                  int
	income, spend, transferIn, transferOut int64
}

// ComputeFacts aggregates classified rows. Pure: the same rows always
// produce byte-identical facts.
func ComputeFacts(rows []Row) *Facts {
	var incomeTotal, spendTotal, transferInTotal, transferOutTotal int64

	byAccount := map[string]*accountAgg{}
	merchantSpend := map[string]int64{}
	mccSpend := map[string]int64{}
	categorySpend := map[string]int64{}
	var uncategorized int64

	account := func(id string) *accountAgg {
		acc, ok := byAccount[id]
		if !ok {
			acc = &accountAgg{}
			byAccount[id] = acc
		}
		return acc
	}

	for _, r := range rows {
		acc := account(r.AccountID)
		acc.count++

		switch r.Kind {
		case KindSpend:
			abs := -r.Amount
			spendTotal += abs
			acc.spend += abs
			merchantSpend[r.Description] += abs
			if r.MCC != 0 {
				mccSpend[strconv.Itoa(r.MCC)] += abs
			}
			if cat := CategoryFromMCC(r.MCC); cat != "" {
				categorySpend[cat] += abs
			} else {
				uncategorized += abs
			}

		case KindIncome:
			incomeTotal += r.Amount
			acc.income += r.Amount

		case KindTransferOut:
			abs := -r.Amount
			transferOutTotal += abs
			acc.transferOut += abs

		case KindTransferIn:
			transferInTotal += r.Amount
			acc.transferIn += r.Amount
		}
	}

	// real spend excludes transfers by construction of the classifier
	realSpendTotal := spendTotal

	facts := &Facts{
		TransactionsCount: len(rows),
		Totals: Totals{
			IncomeTotalUAH:      money.ToUAH(incomeTotal),
			SpendTotalUAH:       money.ToUAH(spendTotal),
			TransferInTotalUAH:  money.ToUAH(transferInTotal),
			TransferOutTotalUAH: money.ToUAH(transferOutTotal),
			RealSpendTotalUAH:   money.ToUAH(realSpendTotal),
		},
		TopMerchantsRealSpend:       topN(merchantSpend, 10),
		TopCategoriesRealSpend:      topN(mccSpend, 10),
		TopCategoriesNamedRealSpend: topN(categorySpend, 10),
		UncategorizedSpendUAH:       money.ToUAH(uncategorized),
		CategoriesRealSpend:         map[string]float64{},
		ByAccount:                   map[string]AccountBreakdown{},
		CategorySharesRealSpend:     map[string]float64{},
		TopMerchantsSharesRealSpend: map[string]float64{},
	}

	for cat, cents := range categorySpend {
		facts.CategoriesRealSpend[cat] = money.ToUAH(cents)
		facts.CategorySharesRealSpend[cat] = money.Percent(cents, realSpendTotal)
	}
	for _, top := range facts.TopMerchantsRealSpend {
		facts.TopMerchantsSharesRealSpend[top.Label] = money.Percent(merchantSpend[top.Label], realSpendTotal)
	}
	for id, acc := range byAccount {
		facts.ByAccount[id] = AccountBreakdown{
			Count:          acc.count,
			IncomeUAH:      money.ToUAH(acc.income),
			SpendUAH:       money.ToUAH(acc.spend),
			TransferInUAH:  money.ToUAH(acc.transferIn),
			TransferOutUAH: money.ToUAH(acc.transferOut),
		}
	}

	return facts
}
