package nlq

import (
	"regexp"
	"strconv"
	"strings"

	"monobudget/internal/analytics"
	"monobudget/pkg/clock"
)

// Intent names produced by the router.
const (
	IntentSpendSum          = "spend_sum"
	IntentSpendCount        = "spend_count"
	IntentIncomeSum         = "income_sum"
	IntentIncomeCount       = "income_count"
	IntentTransferOutSum    = "transfer_out_sum"
	IntentTransferOutCount  = "transfer_out_count"
	IntentTransferInSum     = "transfer_in_sum"
	IntentTransferInCount   = "transfer_in_count"
	IntentCompareToBaseline = "compare_to_baseline"
	IntentUnsupported       = "unsupported"
)

// Intent is the routed query: a name plus extracted slots. Zero slot
// values mean "absent".
type Intent struct {
	Name             string `json:"name"`
	Days             int    `json:"days,omitempty"`
	StartTS          int64  `json:"start_ts,omitempty"`
	EndTS            int64  `json:"end_ts,omitempty"`
	MerchantContains string `json:"merchant_contains,omitempty"`
	RecipientAlias   string `json:"recipient_alias,omitempty"`
	PeriodLabel      string `json:"period_label,omitempty"`
	Category         string `json:"category,omitempty"`
}

var daysRe = regexp.MustCompile(`(\d{1,2})\s*(дн|днів|дня|дней|days)`)

var countMarkers = []string{
	"транзакц",
	"операц",
	"покуп",
	"скільки було",
	"кількість",
	"скільки разів",
	"how many",
}

var incomeMarkers = []string{
	"поповнен",
	"зарахуван",
	"надходжен",
	"дохід",
	"доход",
	"income",
	"отримав зарплат",
}

var transferOutMarkers = []string{
	"переказав",
	"перевів",
	"перевел",
	"відправив",
	"вихідн",
	"sent to",
}

var transferInMarkers = []string{
	"мені переказали",
	"мне перевели",
	"отримав переказ",
	"вхідн",
	"received transfer",
}

var spendMarkers = []string{
	"скільки",
	"витратив",
	"витрати",
	"потратил",
	"spent",
}

var comparativeMarkers = []string{
	"на скільки більше",
	"наскільки більше",
	"на скільки менше",
	"більше ніж",
	"менше ніж",
	"more than",
}

var baselineMarkers = []string{
	"зазвичай",
	"обычно",
	"usually",
}

// recipientVocabulary is the closed set of relationship terms treated as
// transfer recipients rather than merchants.
var recipientVocabulary = []string{
	"дружині", "дружина",
	"чоловіку", "чоловіков",
	"дівчині", "хлопцю", "партнер",
	"мамі", "мама", "матері",
	"тату", "татові", "батьку", "батьков",
	"wife", "husband", "mom", "dad",
	"за оренду", "оренда", "за квартиру", "квартира", "rent",
}

// categoryKeywords maps colloquial terms to the stable category labels.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"бари", analytics.CategoryCafes},
	{"бар", analytics.CategoryCafes},
	{"кафе", analytics.CategoryCafes},
	{"ресторан", analytics.CategoryCafes},
	{"таксі", "Транспорт"},
	{"такси", "Транспорт"},
	{"транспорт", "Транспорт"},
	{"продукти", "Маркет/Побут"},
	{"аптек", "Аптеки/Здоров'я"},
	{"ліки", "Аптеки/Здоров'я"},
	{"подорож", "Подорожі"},
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func clampDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > 31 {
		return 31
	}
	return days
}

var purelyNumericRe = regexp.MustCompile(`^[\d\s.,%]+$`)

// merchantStops end the merchant phrase: period phrasing and comparative
// connectors.
var merchantStops = []string{
	" за останні ", " за ", " ніж ", " чем ", " than ",
	" вчора", " сьогодні", " сегодня", " вчера",
}

// extractMerchant pulls the phrase after the last standalone "на",
// truncated at a connector. Purely numeric phrases ("на 20%") are
// rejected.
func extractMerchant(t string) string {
	padded := " " + t
	idx := strings.LastIndex(padded, " на ")
	if idx < 0 {
		return ""
	}
	candidate := padded[idx+len(" на "):]
	for _, stop := range merchantStops {
		if i := strings.Index(candidate+" ", stop); i >= 0 {
			candidate = candidate[:i]
		}
	}
	candidate = strings.Trim(candidate, " .,!?:;\"'()[]{}")
	if candidate == "" || purelyNumericRe.MatchString(candidate) {
		return ""
	}
	return candidate
}

func matchRecipient(t string) string {
	for _, term := range recipientVocabulary {
		if strings.Contains(t, term) {
			return term
		}
	}
	return ""
}

func matchCategory(t string) string {
	for _, ck := range categoryKeywords {
		if strings.Contains(t, ck.keyword) {
			return ck.category
		}
	}
	return ""
}

// Route classifies the text into an intent. The discriminator is ordered:
// income, outgoing transfer, incoming transfer, baseline comparison,
// count, sum, unsupported.
func Route(text string, nowTS int64) Intent {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Intent{Name: IntentUnsupported}
	}

	// "скільки ... було ..." is a how-many question even when the marker
	// words are not adjacent
	isCount := containsAny(t, countMarkers) ||
		(strings.Contains(t, "скільки") && strings.Contains(t, "було"))
	suffix := func(sum, count string) string {
		if isCount {
			return count
		}
		return sum
	}

	var name string
	switch {
	case containsAny(t, incomeMarkers):
		name = suffix(IntentIncomeSum, IntentIncomeCount)
	case containsAny(t, transferOutMarkers):
		name = suffix(IntentTransferOutSum, IntentTransferOutCount)
	case containsAny(t, transferInMarkers):
		name = suffix(IntentTransferInSum, IntentTransferInCount)
	case containsAny(t, comparativeMarkers) && containsAny(t, baselineMarkers):
		name = IntentCompareToBaseline
	case isCount:
		name = IntentSpendCount
	case containsAny(t, spendMarkers):
		name = IntentSpendSum
	default:
		return Intent{Name: IntentUnsupported}
	}

	intent := Intent{Name: name}

	// "last N days" stays relative; named periods get an explicit range
	if m := daysRe.FindStringSubmatch(t); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			intent.Days = clampDays(n)
		}
	} else if rng := ParsePeriodRange(t, nowTS); rng != nil {
		intent.StartTS = rng.Start
		intent.EndTS = rng.End
		intent.PeriodLabel = rng.Label
		if days := int((rng.End - rng.Start + clock.SecondsPerDay - 1) / clock.SecondsPerDay); days >= 1 {
			intent.Days = clampDays(days)
		} else {
			intent.Days = 1
		}
	} else {
		switch {
		case strings.Contains(t, "тиж") || strings.Contains(t, "week"):
			intent.Days = 7
		case strings.Contains(t, "місяц") || strings.Contains(t, "месяц") || strings.Contains(t, "month"):
			intent.Days = 30
		}
	}

	if alias := matchRecipient(t); alias != "" && strings.HasPrefix(name, "transfer_") {
		intent.RecipientAlias = alias
	} else if merchant := extractMerchant(t); merchant != "" {
		intent.MerchantContains = merchant
	}

	intent.Category = matchCategory(t)

	return intent
}
