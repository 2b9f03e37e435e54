package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monobudget/internal/analytics"
	"monobudget/internal/llm"
	"monobudget/internal/reportstore"
)

func TestMdEscape(t *testing.T) {
	assert.Equal(t, `a\*b\_c\[d\`+"\\`"+`e`, mdEscape("a*b_c[d`e"))
	assert.Equal(t, "сільпо 1.50", mdEscape("сільпо 1.50"))
}

func TestFmtMoney(t *testing.T) {
	assert.Equal(t, "0.00 ₴", fmtMoney(0))
	assert.Equal(t, "1 234.50 ₴", fmtMoney(1234.5))
	assert.Equal(t, "-1 234 567.89 ₴", fmtMoney(-1234567.89))
	assert.Equal(t, "999.99 ₴", fmtMoney(999.99))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "—", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abcd"))
	assert.Equal(t, "abcd****", maskSecret("abcdefgh"))
}

func TestSectionAndBullets(t *testing.T) {
	s := section("Заголовок", []string{"перший", "", "другий"})
	assert.Equal(t, "*Заголовок*\nперший\nдругий", s)

	assert.Equal(t, "• a\n• b", bullets([]string{"a", "", "b"}))
}

func TestReportLayoutBlockOrder(t *testing.T) {
	out := reportLayout("Звіт", "факти", "тренди", "аномалії", "аі")

	idxFacts := strings.Index(out, "факти")
	idxTrends := strings.Index(out, "тренди")
	idxAnoms := strings.Index(out, "аномалії")
	idxAI := strings.Index(out, "аі")
	require.True(t, idxFacts >= 0 && idxTrends >= 0 && idxAnoms >= 0 && idxAI >= 0)
	assert.Less(t, idxFacts, idxTrends)
	assert.Less(t, idxTrends, idxAnoms)
	assert.Less(t, idxAnoms, idxAI)

	// dividers separate every optional block after the facts
	assert.Equal(t, 3, strings.Count(out, divider()))
	assert.True(t, strings.HasPrefix(out, "*Звіт*"))
}

func TestReportLayoutSkipsEmptyBlocks(t *testing.T) {
	out := reportLayout("Звіт", "факти", "", "", "")
	assert.NotContains(t, out, divider())
}

func demoFacts() *analytics.Facts {
	rows := []analytics.Row{
		{AccountID: "a", Time: 100, Amount: -12550, Description: "silpo", MCC: 5411, Kind: analytics.KindSpend},
		{AccountID: "a", Time: 200, Amount: -4000, Description: "uber", MCC: 4121, Kind: analytics.KindSpend},
		{AccountID: "a", Time: 300, Amount: 500000, Description: "зарплата", Kind: analytics.KindIncome},
	}
	return analytics.ComputeFacts(rows)
}

func TestRenderReport(t *testing.T) {
	facts := demoFacts()
	out := renderReport(reportstore.PeriodWeek, facts, "")

	assert.Contains(t, out, "Останні 7 днів")
	assert.Contains(t, out, "Реальні витрати")
	assert.Contains(t, out, "165.50 ₴")
	assert.Contains(t, out, "5 000.00 ₴")
	assert.Contains(t, out, "Топ мерчантів")
	// no trends/anomalies attached: facts end the message
	assert.NotContains(t, out, divider())
}

func TestRenderReportWithCompare(t *testing.T) {
	facts := demoFacts()
	prev := analytics.ComputeFacts(nil)
	facts.Compare = &analytics.CompareBlock{
		Totals:              analytics.CompareTotals(facts, prev),
		CategoriesRealSpend: analytics.CompareCategories(facts.CategoriesRealSpend, prev.CategoriesRealSpend),
		PreviousTotals:      prev.Totals,
	}

	out := renderReport(reportstore.PeriodWeek, facts, "")
	assert.Contains(t, out, "Порівняння з попереднім періодом")
	assert.Contains(t, out, "+165.50 ₴")
	// prev is zero: pct change renders as the absent dash
	assert.Contains(t, out, "—")
}

func TestRenderReportWithTrendsAndAnomalies(t *testing.T) {
	facts := demoFacts()
	facts.Trends = &analytics.Trends{
		WindowDays: 7,
		TopGrowing: []analytics.TrendItem{
			{Label: "uber", LastCents: 8000, PrevCents: 4000, DeltaCents: 4000, DeltaPct: 1},
		},
	}
	facts.Anomalies = []analytics.Anomaly{
		{Label: "mcd", LastDayCents: 30000, BaselineMedianCents: 0, Reason: "first_time_large"},
	}

	out := renderReport(reportstore.PeriodToday, facts, "")
	assert.Contains(t, out, "Тренди")
	assert.Contains(t, out, "↑ uber: 40.00 ₴ → 80.00 ₴")
	assert.Contains(t, out, "Аномалії")
	assert.Contains(t, out, "великий перший платіж")
	assert.Equal(t, 2, strings.Count(out, divider()))
}

func TestBuildAIBlock(t *testing.T) {
	out := buildAIBlock(&llm.Result{
		Summary:  "Витрати стабільні.",
		Insights: []string{"Кафе: 35%", "Таксі: 120 грн"},
		NextStep: "Скороти доставку.",
	})
	assert.Contains(t, out, "AI інсайти")
	assert.Contains(t, out, "• Кафе: 35%")
	assert.Contains(t, out, "Наступний крок")
	assert.Contains(t, out, "Скороти доставку.")
}

func TestStaticMessages(t *testing.T) {
	assert.Contains(t, startMessage(), "/connect")
	assert.Contains(t, helpMessage(), "/refresh")
	assert.Contains(t, connectInstructions(), "api.monobank.ua")
	assert.Contains(t, connectSavedMessage(), "/accounts")
	assert.Contains(t, invalidTokenMessage(), "недійсний")
	assert.Contains(t, rateLimitMessage(), "429")
}
