package analytics

import (
	"regexp"
	"sort"
	"strings"

	"monobudget/internal/money"
	"monobudget/pkg/clock"
)

// WhatIfScenario is one reduction level applied to a bucket's projected
// monthly spend.
type WhatIfScenario struct {
	ReductionPct        int     `json:"reduction_pct"`
	MonthlySavingsUAH   float64 `json:"monthly_savings_uah"`
	ProjectedMonthlyUAH float64 `json:"projected_monthly_uah"`
}

// WhatIfOption is a savings suggestion for one spend bucket.
type WhatIfOption struct {
	Key             string           `json:"key"`
	Title           string           `json:"title"`
	MonthlySpendUAH float64          `json:"monthly_spend_uah"`
	ShareOfSpendPct float64          `json:"share_of_spend_pct"`
	Scenarios       []WhatIfScenario `json:"scenarios"`
}

var (
	whatifStripRe = regexp.MustCompile(`[^\w\s'&+\-.]`)
	whatifWSRe    = regexp.MustCompile(`\s+`)
)

// normText flattens a description for keyword matching.
func normText(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = whatifStripRe.ReplaceAllString(s, " ")
	s = whatifWSRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var (
	taxiKeywords     = []string{"uber", "bolt", "uklon", "taxi", "такси", "таксі"}
	deliveryKeywords = []string{"glovo", "wolt", "raketa", "bolt food", "uber eats", "ubereats", "delivery"}
)

func matchesAny(norm string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(norm, k) {
			return true
		}
	}
	return false
}

// projectMonthly scales a period sum to a 30-day month.
func projectMonthly(periodUAH float64, periodDays int) float64 {
	if periodDays <= 0 {
		return 0
	}
	return money.Round2(periodUAH * (30.0 / float64(periodDays)))
}

// concentratedSharePct is the share of total spend above which a bucket
// gets the more aggressive reduction scenarios.
const concentratedSharePct = 30.0

func scenariosFor(monthlyUAH float64, concentrated bool, minSavingsUAH float64) []WhatIfScenario {
	pcts := []int{10, 20}
	if concentrated {
		pcts = []int{15, 25}
	}
	var out []WhatIfScenario
	for _, pct := range pcts {
		savings := money.Round2(monthlyUAH * float64(pct) / 100.0)
		if savings < minSavingsUAH {
			continue
		}
		out = append(out, WhatIfScenario{
			ReductionPct:        pct,
			MonthlySavingsUAH:   savings,
			ProjectedMonthlyUAH: money.Round2(monthlyUAH - savings),
		})
	}
	return out
}

func bestSavings(o WhatIfOption) float64 {
	var best float64
	for _, s := range o.Scenarios {
		if s.MonthlySavingsUAH > best {
			best = s.MonthlySavingsUAH
		}
	}
	return best
}

// BuildWhatIf merges keyword-bucket and category-bucket savings
// suggestions, best first, at most 3.
func BuildWhatIf(rows []Row, periodDays int) []WhatIfOption {
	if periodDays <= 0 {
		return nil
	}

	var totalSpend int64
	var taxiSpend, deliverySpend, cafesSpend int64
	categorySpend := map[string]int64{}
	categoryDays := map[string]map[int64]struct{}{}

	for _, r := range rows {
		if r.Kind != KindSpend {
			continue
		}
		cents := -r.Amount
		totalSpend += cents

		norm := normText(r.Description)
		if matchesAny(norm, taxiKeywords) {
			taxiSpend += cents
		}
		if matchesAny(norm, deliveryKeywords) {
			deliverySpend += cents
		}

		cat := CategoryFromMCC(r.MCC)
		if cat == "" {
			cat = CategoryOther
		}
		if cat == CategoryCafes {
			cafesSpend += cents
		}
		categorySpend[cat] += cents
		days := categoryDays[cat]
		if days == nil {
			days = map[int64]struct{}{}
			categoryDays[cat] = days
		}
		days[r.Time/clock.SecondsPerDay] = struct{}{}
	}

	sharePct := func(cents int64) float64 {
		if totalSpend == 0 {
			return 0
		}
		return float64(cents) / float64(totalSpend) * 100.0
	}

	var options []WhatIfOption

	keywordBucket := func(key, title string, spendCents int64, minMonthlyUAH float64) {
		monthly := projectMonthly(money.ToUAH(spendCents), periodDays)
		if monthly < minMonthlyUAH {
			return
		}
		share := sharePct(spendCents)
		scenarios := scenariosFor(monthly, share >= concentratedSharePct, 100.0)
		if len(scenarios) == 0 {
			return
		}
		options = append(options, WhatIfOption{
			Key:             key,
			Title:           title,
			MonthlySpendUAH: monthly,
			ShareOfSpendPct: money.Round2(share),
			Scenarios:       scenarios,
		})
	}

	keywordBucket("taxi", "Таксі", taxiSpend, 400.0)
	keywordBucket("delivery", "Доставка", deliverySpend, 350.0)
	keywordBucket("cafes", CategoryCafes, cafesSpend, 600.0)

	// Category buckets. Cafes are already covered by the keyword bucket.
	catNames := make([]string, 0, len(categorySpend))
	for cat := range categorySpend {
		if cat == CategoryCafes {
			continue
		}
		catNames = append(catNames, cat)
	}
	sort.Strings(catNames)

	for _, cat := range catNames {
		cents := categorySpend[cat]
		share := sharePct(cents)
		if share < 15.0 || len(categoryDays[cat]) < 4 {
			continue
		}
		monthly := projectMonthly(money.ToUAH(cents), periodDays)
		if monthly < 800.0 {
			continue
		}
		scenarios := scenariosFor(monthly, share >= concentratedSharePct, 0)
		opt := WhatIfOption{
			Key:             "cat:" + cat,
			Title:           cat,
			MonthlySpendUAH: monthly,
			ShareOfSpendPct: money.Round2(share),
			Scenarios:       scenarios,
		}
		if bestSavings(opt) < 150.0 {
			continue
		}
		options = append(options, opt)
	}

	sort.SliceStable(options, func(i, j int) bool {
		return bestSavings(options[i]) > bestSavings(options[j])
	})
	if len(options) > 3 {
		options = options[:3]
	}
	return options
}
