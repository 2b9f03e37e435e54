package nlq

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"monobudget/internal/analytics"
	"monobudget/internal/ledger"
	"monobudget/internal/money"
	"monobudget/internal/userstore"
	"monobudget/pkg/clock"
)

// User-facing messages. The bot speaks Ukrainian.
const (
	msgUnsupported = "Я можу відповідати лише на питання про твої витрати."
	msgNoToken     = "Спочатку підключи Monobank через /connect."
	msgNoAccounts  = "Обери картки для аналізу через /accounts."
	msgCancelled   = "Добре, скасовано."
)

const (
	defaultQueryDays     = 30
	baselineLookbackDays = 28
	maxRecipientOptions  = 7
)

var cancelTokens = map[string]struct{}{
	"cancel":    {},
	"скасувати": {},
	"відміна":   {},
	"отмена":    {},
}

// Executor answers routed intents against the user's ledger.
type Executor struct {
	users  *userstore.Store
	ledger *ledger.Store
	memory *MemoryStore
	clock  clock.Clock
	log    zerolog.Logger
}

func NewExecutor(users *userstore.Store, led *ledger.Store, mem *MemoryStore, clk clock.Clock, log zerolog.Logger) *Executor {
	return &Executor{
		users:  users,
		ledger: led,
		memory: mem,
		clock:  clk,
		log:    log.With().Str("component", "nlq").Logger(),
	}
}

// Handle is the chat entry point: it settles any pending clarification
// first, then routes and executes the text as a fresh query.
func (e *Executor) Handle(userID int64, text string) string {
	trimmed := strings.TrimSpace(text)

	if pending, options, ok := e.memory.PopPending(userID); ok {
		if _, cancelled := cancelTokens[strings.ToLower(trimmed)]; cancelled {
			return msgCancelled
		}
		value := followUpValue(trimmed, options)
		if pending.RecipientAlias != "" && value != "" {
			if err := e.memory.SaveRecipientAlias(userID, pending.RecipientAlias, value); err != nil {
				e.log.Warn().Int64("user", userID).Err(err).Msg("recipient alias save failed")
			}
			return e.Execute(userID, pending)
		}
		// not a usable answer: fall through and treat it as a new query
	}

	intent := Route(trimmed, e.clock.Now().Unix())
	return e.Execute(userID, intent)
}

// followUpValue interprets the user's reply to a clarification: a number in
// option range picks that option, anything else is taken as a literal
// canonical substring (an out-of-range number included).
func followUpValue(text string, options []string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	if idx, err := strconv.Atoi(s); err == nil && idx >= 1 && idx <= len(options) {
		return strings.ToLower(strings.TrimSpace(options[idx-1]))
	}
	return strings.ToLower(s)
}

// Execute runs one intent and returns the localized answer.
func (e *Executor) Execute(userID int64, intent Intent) string {
	if intent.Name == IntentUnsupported || intent.Name == "" {
		return msgUnsupported
	}

	cfg, err := e.users.Load(userID)
	if err != nil || cfg.MonoToken == "" {
		return msgNoToken
	}
	if len(cfg.SelectedAccountIDs) == 0 {
		return msgNoAccounts
	}

	// baseline comparison always looks back a full lookback window,
	// whatever period the question mentioned
	if intent.Name == IntentCompareToBaseline {
		nowTS := e.clock.Now().Unix()
		start := clock.DayStart(nowTS) - int64(baselineLookbackDays)*clock.SecondsPerDay
		records, err := e.ledger.LoadRange(userID, cfg.SelectedAccountIDs, start, nowTS)
		if err != nil {
			e.log.Error().Int64("user", userID).Err(err).Msg("ledger read failed")
			return "Не вдалося прочитати виписку, спробуй ще раз."
		}
		return e.answerBaseline(userID, intent, analytics.FromLedger(records), nowTS)
	}

	endTS := intent.EndTS
	if endTS == 0 {
		endTS = e.clock.Now().Unix()
	}
	days := intent.Days
	if days == 0 {
		days = defaultQueryDays
	}
	days = clampDays(days)

	// explicit timestamps win over relative days
	startTS := intent.StartTS
	if startTS == 0 {
		startTS = endTS - int64(days)*clock.SecondsPerDay
	}

	records, err := e.ledger.LoadRange(userID, cfg.SelectedAccountIDs, startTS, endTS)
	if err != nil {
		e.log.Error().Int64("user", userID).Err(err).Msg("ledger read failed")
		return "Не вдалося прочитати виписку, спробуй ще раз."
	}
	rows := analytics.FromLedger(records)

	if strings.HasPrefix(intent.Name, "transfer_") && intent.RecipientAlias != "" {
		if _, ok := e.memory.RecipientMatch(userID, intent.RecipientAlias); !ok {
			return e.askRecipient(userID, intent, rows)
		}
	}

	filtered := e.filterRows(userID, intent, rows)
	return e.answer(intent, filtered, days)
}

func (e *Executor) answerBaseline(userID int64, intent Intent, rows []analytics.Row, nowTS int64) string {
	merchant := ""
	if intent.MerchantContains != "" {
		merchant = e.memory.ResolveMerchant(userID, intent.MerchantContains)
	}
	r := analytics.CompareYesterdayToBaseline(rows, nowTS, merchant, intent.Category, baselineLookbackDays)

	sign := ""
	if r.DeltaCents >= 0 {
		sign = "+"
	}
	return fmt.Sprintf(
		"Вчора: %.2f грн. Зазвичай (медіана): %.2f грн. Різниця: %s%.2f грн.",
		money.ToUAH(r.YesterdayCents), money.ToUAH(r.BaselineMedianCents),
		sign, money.ToUAH(r.DeltaCents),
	)
}

// askRecipient stores the pending intent and asks the user which
// counterparty the alias means, offering the top transfer descriptions
// from the current window.
func (e *Executor) askRecipient(userID int64, intent Intent, rows []analytics.Row) string {
	kind := analytics.KindTransferOut
	if strings.HasPrefix(intent.Name, "transfer_in_") {
		kind = analytics.KindTransferIn
	}
	options := topRecipientCandidates(rows, kind, maxRecipientOptions)

	if err := e.memory.SetPending(userID, intent, "recipient", options); err != nil {
		e.log.Warn().Int64("user", userID).Err(err).Msg("pending intent save failed")
	}

	if len(options) == 0 {
		return fmt.Sprintf(
			"Кого саме маєш на увазі під '%s'? Напиши точне ім'я отримувача як у виписці.",
			intent.RecipientAlias,
		)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Кого саме маєш на увазі під '%s'?\n", intent.RecipientAlias)
	b.WriteString("Вибери номер або напиши точне ім'я як у виписці:")
	for i, opt := range options {
		fmt.Fprintf(&b, "\n%d) %s", i+1, opt)
	}
	return b.String()
}

func topRecipientCandidates(rows []analytics.Row, kind analytics.Kind, limit int) []string {
	byDesc := map[string]int64{}
	for _, r := range rows {
		if r.Kind != kind || r.Description == "" {
			continue
		}
		amt := r.Amount
		if amt < 0 {
			amt = -amt
		}
		byDesc[r.Description] += amt
	}

	descs := make([]string, 0, len(byDesc))
	for d := range byDesc {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool {
		if byDesc[descs[i]] != byDesc[descs[j]] {
			return byDesc[descs[i]] > byDesc[descs[j]]
		}
		return descs[i] < descs[j]
	})
	if len(descs) > limit {
		descs = descs[:limit]
	}
	return descs
}

func (e *Executor) filterRows(userID int64, intent Intent, rows []analytics.Row) []analytics.Row {
	var wantKind analytics.Kind
	switch {
	case strings.HasPrefix(intent.Name, "spend_"):
		wantKind = analytics.KindSpend
	case strings.HasPrefix(intent.Name, "income_"):
		wantKind = analytics.KindIncome
	case strings.HasPrefix(intent.Name, "transfer_out_"):
		wantKind = analytics.KindTransferOut
	case strings.HasPrefix(intent.Name, "transfer_in_"):
		wantKind = analytics.KindTransferIn
	default:
		return nil
	}

	merchant := ""
	if intent.MerchantContains != "" {
		merchant = e.memory.ResolveMerchant(userID, intent.MerchantContains)
	}
	recipient := ""
	if intent.RecipientAlias != "" {
		recipient, _ = e.memory.RecipientMatch(userID, intent.RecipientAlias)
	}

	var out []analytics.Row
	for _, r := range rows {
		if r.Kind != wantKind {
			continue
		}
		if merchant != "" && !strings.Contains(Norm(r.Description), Norm(merchant)) {
			continue
		}
		if merchant == "" && intent.Category != "" && wantKind == analytics.KindSpend {
			if analytics.CategoryFromMCC(r.MCC) != intent.Category {
				continue
			}
		}
		if recipient != "" && !strings.Contains(strings.ToLower(r.Description), recipient) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func periodPrefix(label string, days int) string {
	switch label {
	case "сьогодні":
		return "Сьогодні"
	case "вчора":
		return "Вчора"
	case "":
		return fmt.Sprintf("За останні %d днів", days)
	default:
		return "За " + label
	}
}

func (e *Executor) answer(intent Intent, rows []analytics.Row, days int) string {
	prefix := periodPrefix(intent.PeriodLabel, days)

	sum := func() float64 {
		var total int64
		for _, r := range rows {
			amt := r.Amount
			if amt < 0 {
				amt = -amt
			}
			total += amt
		}
		return money.ToUAH(total)
	}

	switch intent.Name {
	case IntentSpendSum:
		return fmt.Sprintf("%s ти витратив %.2f грн.", prefix, sum())
	case IntentSpendCount:
		return fmt.Sprintf("%s було %d витрат.", prefix, len(rows))
	case IntentIncomeSum:
		return fmt.Sprintf("%s було поповнень на %.2f грн.", prefix, sum())
	case IntentIncomeCount:
		return fmt.Sprintf("%s було %d поповнень.", prefix, len(rows))
	case IntentTransferOutSum:
		return fmt.Sprintf("%s ти переказав %.2f грн.", prefix, sum())
	case IntentTransferOutCount:
		return fmt.Sprintf("%s було %d вихідних переказів.", prefix, len(rows))
	case IntentTransferInSum:
		return fmt.Sprintf("%s ти отримав %.2f грн.", prefix, sum())
	case IntentTransferInCount:
		return fmt.Sprintf("%s було %d вхідних переказів.", prefix, len(rows))
	}
	return "Поки що цей тип запиту не реалізовано."
}
