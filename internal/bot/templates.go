package bot

import (
	"fmt"
	"sort"
	"strings"

	"monobudget/internal/analytics"
	"monobudget/internal/llm"
	"monobudget/internal/money"
	"monobudget/internal/reportstore"
)

const mdSpecial = "_*`["

// mdEscape protects interpolated text from being read as Markdown markup.
// Messages go out in legacy Markdown mode, so only four runes are special.
func mdEscape(text string) string {
	var b strings.Builder
	for _, ch := range text {
		if strings.ContainsRune(mdSpecial, ch) {
			b.WriteByte('\\')
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func fmtMoney(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	// thousands separated by thin spaces, money never uses commas here
	intPart := s[:len(s)-3]
	frac := s[len(s)-3:]
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)
	out := strings.Join(groups, " ") + frac + " ₴"
	if neg {
		out = "-" + out
	}
	return out
}

func section(title string, lines []string) string {
	var kept []string
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.TrimSpace("*" + title + "*\n" + strings.Join(kept, "\n"))
}

func divider() string {
	return "──────────────────"
}

func bullets(items []string) string {
	var out []string
	for _, x := range items {
		if x != "" {
			out = append(out, "• "+x)
		}
	}
	return strings.Join(out, "\n")
}

func infoMsg(m string) string    { return "ℹ️ " + m }
func successMsg(m string) string { return "✅ " + m }
func warningMsg(m string) string { return "⚠️ " + m }
func errorMsg(m string) string   { return "❌ " + m }

var periodTitles = map[string]string{
	reportstore.PeriodToday: "Сьогодні",
	reportstore.PeriodWeek:  "Останні 7 днів",
	reportstore.PeriodMonth: "Останні 30 днів",
}

// reportLayout assembles the blocks in their fixed order, separated by
// dividers: header, facts, trends, anomalies, AI.
func reportLayout(header, factsBlock, trendsBlock, anomaliesBlock, insightBlock string) string {
	parts := []string{"*" + header + "*"}
	if factsBlock != "" {
		parts = append(parts, factsBlock)
	}
	for _, block := range []string{trendsBlock, anomaliesBlock, insightBlock} {
		if block != "" {
			parts = append(parts, divider(), block)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func renderFactsBlock(facts *analytics.Facts) string {
	t := facts.Totals

	var lines []string
	lines = append(lines,
		fmt.Sprintf("💸 Реальні витрати (без переказів): *%s*", mdEscape(fmtMoney(t.RealSpendTotalUAH))),
		fmt.Sprintf("🧾 Всі списання (cash out): %s", mdEscape(fmtMoney(t.SpendTotalUAH))),
		fmt.Sprintf("💰 Надходження (cash in): %s", mdEscape(fmtMoney(t.IncomeTotalUAH))),
		fmt.Sprintf("🔁 Перекази: +%s / -%s", mdEscape(fmtMoney(t.TransferInTotalUAH)), mdEscape(fmtMoney(t.TransferOutTotalUAH))),
	)

	if len(facts.TopCategoriesNamedRealSpend) > 0 {
		lines = append(lines, "", "*Топ категорій (реальні витрати):*")
		for i, row := range facts.TopCategoriesNamedRealSpend {
			if i == 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, mdEscape(row.Label), mdEscape(fmtMoney(row.AmountUAH))))
		}
	}

	if len(facts.TopMerchantsRealSpend) > 0 {
		lines = append(lines, "", "*Топ мерчантів (реальні витрати):*")
		for i, row := range facts.TopMerchantsRealSpend {
			if i == 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, mdEscape(row.Label), mdEscape(fmtMoney(row.AmountUAH))))
		}
	}

	if cmp := facts.Compare; cmp != nil {
		dReal, ok := cmp.Totals.Delta["real_spend_total_uah"]
		if ok {
			sign := ""
			if dReal >= 0 {
				sign = "+"
			}
			pctTxt := "—"
			if p := cmp.Totals.PctChange["real_spend_total_uah"]; p != nil {
				pctTxt = fmt.Sprintf("%+.2f%%", *p)
			}
			lines = append(lines, "", "*Порівняння з попереднім періодом:*",
				fmt.Sprintf("• Реальні витрати: %s (%s)", mdEscape(sign+fmtMoney(dReal)), mdEscape(pctTxt)))

			if len(cmp.CategoriesRealSpend) > 0 {
				type catDelta struct {
					name string
					cc   analytics.CategoryCompare
				}
				items := make([]catDelta, 0, len(cmp.CategoriesRealSpend))
				for name, cc := range cmp.CategoriesRealSpend {
					items = append(items, catDelta{name, cc})
				}
				sort.Slice(items, func(i, j int) bool {
					ai, aj := items[i].cc.DeltaUAH, items[j].cc.DeltaUAH
					if ai < 0 {
						ai = -ai
					}
					if aj < 0 {
						aj = -aj
					}
					if ai != aj {
						return ai > aj
					}
					return items[i].name < items[j].name
				})

				lines = append(lines, "", "*Найбільші зміни по категоріях:*")
				for i, it := range items {
					if i == 5 {
						break
					}
					sign2 := ""
					if it.cc.DeltaUAH >= 0 {
						sign2 = "+"
					}
					pctTxt2 := "—"
					if it.cc.PctChange != nil {
						pctTxt2 = fmt.Sprintf("%+.2f%%", *it.cc.PctChange)
					}
					lines = append(lines, fmt.Sprintf("• %s: %s (%s)",
						mdEscape(it.name), mdEscape(sign2+fmtMoney(it.cc.DeltaUAH)), mdEscape(pctTxt2)))
				}
			}
		}
	}

	return strings.Join(lines, "\n")
}

func renderTrendsBlock(tr *analytics.Trends) string {
	if tr == nil || (len(tr.TopGrowing) == 0 && len(tr.TopDeclining) == 0) {
		return ""
	}
	var lines []string
	lines = append(lines, "📈 *Тренди (7 днів проти попередніх 7):*")
	for _, it := range tr.TopGrowing {
		lines = append(lines, fmt.Sprintf("• ↑ %s: %s → %s",
			mdEscape(it.Label), mdEscape(fmtMoney(money.ToUAH(it.PrevCents))), mdEscape(fmtMoney(money.ToUAH(it.LastCents)))))
	}
	for _, it := range tr.TopDeclining {
		lines = append(lines, fmt.Sprintf("• ↓ %s: %s → %s",
			mdEscape(it.Label), mdEscape(fmtMoney(money.ToUAH(it.PrevCents))), mdEscape(fmtMoney(money.ToUAH(it.LastCents)))))
	}
	return strings.Join(lines, "\n")
}

func renderAnomaliesBlock(items []analytics.Anomaly) string {
	if len(items) == 0 {
		return ""
	}
	var lines []string
	lines = append(lines, "🚨 *Аномалії за останню добу:*")
	for _, a := range items {
		reason := "різкий стрибок проти медіани"
		if a.Reason == "first_time_large" {
			reason = "великий перший платіж"
		}
		lines = append(lines, fmt.Sprintf("• %s: %s (%s)",
			mdEscape(a.Label), mdEscape(fmtMoney(money.ToUAH(a.LastDayCents))), reason))
	}
	return strings.Join(lines, "\n")
}

// renderReport is the full chat message for a cached period report.
func renderReport(period string, facts *analytics.Facts, aiBlock string) string {
	title, ok := periodTitles[period]
	if !ok {
		title = period
	}
	return reportLayout(
		"📊 "+mdEscape(title),
		renderFactsBlock(facts),
		renderTrendsBlock(facts.Trends),
		renderAnomaliesBlock(facts.Anomalies),
		aiBlock,
	)
}

func buildAIBlock(res *llm.Result) string {
	var lines []string
	lines = append(lines, "🤖 *AI інсайти:*", "• "+mdEscape(res.Summary), "", "*Рекомендації:*")
	for i, s := range res.Insights {
		if i == 7 {
			break
		}
		lines = append(lines, "• "+mdEscape(s))
	}
	lines = append(lines, "", "*Наступний крок (7 днів):*", "• "+mdEscape(res.NextStep))
	return strings.Join(lines, "\n")
}

func startMessage() string {
	parts := []string{
		"👋 *Monobudget*",
		"",
		"Я допоможу аналізувати витрати Monobank: звіти, тренди, аномалії та відповіді на питання природною мовою.",
		"",
		section("Що важливо", []string{
			"Я не даю фінансових порад — тільки факти й загальні підказки з фінграмотності.",
			"Токен і дані зберігаються локально на твоєму хості (папка .cache).",
		}),
		"",
		section("Швидкий старт", []string{
			"/connect — додати токен",
			"/accounts — вибрати картки",
			"/refresh week — завантажити дані",
			"/week — звіт за 7 днів",
		}),
		"",
		section("Приклади запитів", []string{bullets([]string{
			"Скільки я витратив на Мак за останні 5 днів?",
			"Скільки було поповнень вчора?",
			"На скільки більше я вчора витратив на бари ніж зазвичай?",
		})}),
		"",
		"Команди й підказки: /help",
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func helpMessage() string {
	parts := []string{
		"📘 *Довідка*",
		"",
		section("Підключення", []string{
			"/connect <token> — зберегти токен Monobank",
			"/status — перевірити підключення і кеш",
			"/accounts — вибрати картки для аналізу",
			"/refresh today|week|month|all — синхронізувати локальну виписку",
		}),
		"",
		section("Звіти", []string{
			"/today — сьогодні",
			"/week — останні 7 днів",
			"/month — останні 30 днів",
			"/week ai — те саме + AI інсайти (якщо є OPENAI_API_KEY)",
		}),
		"",
		section("Питання природною мовою", []string{
			"Можна просто писати повідомлення без /команди.",
			"Якщо чогось не вистачає (період/отримувач/мерчант), я уточню.",
		}),
		"",
		section("Privacy & wipe", []string{
			"Дані зберігаються локально у .cache.",
			"Щоб видалити все — видали папку .cache.",
		}),
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func connectInstructions() string {
	return strings.TrimSpace(strings.Join([]string{
		"🔐 *Підключення Monobank*",
		"",
		"1) Відкрий сторінку Personal API:",
		"https://api.monobank.ua/index.html",
		"2) Створи Personal API token",
		"3) Надішли його так:",
		"`/connect YOUR_TOKEN`",
		"",
		"Токен зберігається локально та не публікується.",
	}, "\n"))
}

func connectSavedMessage() string {
	return strings.TrimSpace(strings.Join([]string{
		successMsg("Monobank token збережено."),
		"",
		section("Далі", []string{
			"/accounts — вибір карток",
			"/refresh month — завантажити історію витрат",
		}),
	}, "\n"))
}

func invalidTokenMessage() string {
	return errorMsg("Токен Monobank недійсний або прострочений. Зроби /connect і додай актуальний токен.")
}

func rateLimitMessage() string {
	return warningMsg("Забагато запитів до Monobank (429). Спробуй ще раз через ~1 хвилину.")
}

func monoGenericErrorMessage() string {
	return warningMsg("Monobank тимчасово недоступний або повернув помилку. Спробуй пізніше.")
}

func llmUnavailableMessage() string {
	return warningMsg("AI зараз недоступний. Надішлю звіт без AI-інсайтів.")
}

func maskSecret(s string) string {
	const show = 4
	if s == "" {
		return "—"
	}
	if len(s) <= show {
		return strings.Repeat("*", len(s))
	}
	return s[:show] + strings.Repeat("*", len(s)-show)
}
