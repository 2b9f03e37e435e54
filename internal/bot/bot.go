// Package bot is the Telegram surface: command handlers, the accounts
// keyboard, report rendering and the free-text NLQ entry point.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"monobudget/internal/mono"
	"monobudget/internal/nlq"
	"monobudget/internal/ops"
	"monobudget/internal/ratelimit"
	"monobudget/internal/reportstore"
)

// refreshTimeout bounds one user-triggered sync; statement pagination with
// the 60s per-account throttle can legitimately take minutes.
const refreshTimeout = 10 * time.Minute

var (
	btnAccToggle = tele.Btn{Unique: "acc_toggle"}
	btnAccClear  = tele.Btn{Unique: "acc_clear"}
	btnAccDone   = tele.Btn{Unique: "acc_done"}
)

// Bot wires telebot handlers to the service and the NLQ executor.
type Bot struct {
	tb      *tele.Bot
	svc     *Service
	nlq     *nlq.Executor
	metrics *ops.Metrics
	log     zerolog.Logger
}

func NewBot(token string, svc *Service, exec *nlq.Executor, metrics *ops.Metrics, log zerolog.Logger) (*Bot, error) {
	tb, err := tele.NewBot(tele.Settings{
		Token:     token,
		Poller:    &tele.LongPoller{Timeout: 10 * time.Second},
		ParseMode: tele.ModeMarkdown,
	})
	if err != nil {
		return nil, fmt.Errorf("bot: telegram init: %w", err)
	}

	b := &Bot{
		tb:      tb,
		svc:     svc,
		nlq:     exec,
		metrics: metrics,
		log:     log.With().Str("component", "bot").Logger(),
	}
	b.register()
	return b, nil
}

func (b *Bot) register() {
	b.tb.Handle("/start", b.onStart)
	b.tb.Handle("/help", b.onHelp)
	b.tb.Handle("/connect", b.onConnect)
	b.tb.Handle("/status", b.onStatus)
	b.tb.Handle("/accounts", b.onAccounts)
	b.tb.Handle("/refresh", b.onRefresh)
	b.tb.Handle("/today", b.reportHandler(reportstore.PeriodToday))
	b.tb.Handle("/week", b.reportHandler(reportstore.PeriodWeek))
	b.tb.Handle("/month", b.reportHandler(reportstore.PeriodMonth))
	b.tb.Handle("/autojobs", b.onAutojobs)
	b.tb.Handle(&btnAccToggle, b.onAccountToggle)
	b.tb.Handle(&btnAccClear, b.onAccountsClear)
	b.tb.Handle(&btnAccDone, b.onAccountsDone)
	b.tb.Handle(tele.OnText, b.onText)
}

// Start blocks polling for updates until Stop is called.
func (b *Bot) Start() {
	b.log.Info().Msg("telegram bot polling")
	b.tb.Start()
}

func (b *Bot) Stop() {
	b.tb.Stop()
}

// Send posts a message to a chat. The scheduler uses this for its weekly
// and monthly digests.
func (b *Bot) Send(chatID int64, text string) error {
	_, err := b.tb.Send(tele.ChatID(chatID), text)
	return err
}

// Refresh runs a sync sweep for one user on behalf of the scheduler.
func (b *Bot) Refresh(ctx context.Context, userID int64, daysBack int) error {
	_, err := b.svc.Refresh(ctx, userID, daysBack)
	return err
}

// PostReport renders the cached period report and sends it to chatID. The
// AI block is best effort: a failing enrichment never blocks the digest.
func (b *Bot) PostReport(ctx context.Context, userID, chatID int64, period string) error {
	stored, err := b.svc.Report(ctx, userID, period)
	if err != nil {
		return err
	}

	aiBlock := ""
	if res, err := b.svc.AIBlock(ctx, stored.Facts, period); err == nil {
		aiBlock = buildAIBlock(res)
	} else if !errors.Is(err, ErrLLMDisabled) {
		b.log.Warn().Int64("user", userID).Err(err).Msg("digest llm enrichment failed")
	}

	return b.Send(chatID, renderReport(period, stored.Facts, aiBlock))
}

func (b *Bot) remember(c tele.Context) int64 {
	userID := c.Sender().ID
	if c.Chat() != nil {
		b.svc.RememberChat(userID, c.Chat().ID)
	}
	return userID
}

func (b *Bot) onStart(c tele.Context) error {
	b.remember(c)
	return c.Send(startMessage())
}

func (b *Bot) onHelp(c tele.Context) error {
	b.remember(c)
	return c.Send(helpMessage())
}

func (b *Bot) onConnect(c tele.Context) error {
	userID := b.remember(c)
	token := strings.TrimSpace(c.Message().Payload)
	if token == "" {
		return c.Send(connectInstructions())
	}

	// the message carries a live secret; best effort to take it off screen
	_ = c.Delete()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := b.svc.Connect(ctx, userID, c.Chat().ID, token); err != nil {
		b.log.Warn().Int64("user", userID).Err(err).Msg("connect failed")
		return c.Send(errorReply(err))
	}
	return c.Send(connectSavedMessage())
}

func (b *Bot) onStatus(c tele.Context) error {
	userID := b.remember(c)
	return c.Send(renderStatus(b.svc.StatusFor(userID)))
}

func (b *Bot) onAccounts(c tele.Context) error {
	userID := b.remember(c)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	info, selected, err := b.svc.Accounts(ctx, userID)
	if err != nil {
		return c.Send(errorReply(err))
	}
	text, markup := renderAccountsScreen(info, selected)
	return c.Send(text, markup)
}

func (b *Bot) onAccountToggle(c tele.Context) error {
	userID := c.Sender().ID
	accountID := strings.TrimSpace(c.Data())

	if err := b.svc.ToggleAccount(userID, accountID); err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "Не вдалося зберегти вибір"})
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	info, selected, err := b.svc.Accounts(ctx, userID)
	if err != nil {
		_ = c.Respond(&tele.CallbackResponse{})
		return c.Send(errorReply(err))
	}
	text, markup := renderAccountsScreen(info, selected)
	if err := c.Edit(text, markup); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{})
}

func (b *Bot) onAccountsClear(c tele.Context) error {
	userID := c.Sender().ID
	if err := b.svc.ClearAccounts(userID); err != nil {
		_ = c.Respond(&tele.CallbackResponse{})
		return c.Send(errorReply(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	info, selected, err := b.svc.Accounts(ctx, userID)
	if err != nil {
		_ = c.Respond(&tele.CallbackResponse{})
		return c.Send(errorReply(err))
	}
	text, markup := renderAccountsScreen(info, selected)
	if err := c.Edit(text, markup); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: "Вибір очищено"})
}

func (b *Bot) onAccountsDone(c tele.Context) error {
	st := b.svc.StatusFor(c.Sender().ID)
	if err := c.Edit(successMsg(fmt.Sprintf("Збережено: %d карток для аналізу.", st.AccountsTotal))); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{})
}

func (b *Bot) onRefresh(c tele.Context) error {
	userID := b.remember(c)

	scope := strings.ToLower(strings.TrimSpace(c.Message().Payload))
	daysBack := map[string]int{
		"":      refreshDaysBack[reportstore.PeriodMonth],
		"all":   refreshDaysBack[reportstore.PeriodMonth],
		"today": refreshDaysBack[reportstore.PeriodToday],
		"week":  refreshDaysBack[reportstore.PeriodWeek],
		"month": refreshDaysBack[reportstore.PeriodMonth],
	}[scope]
	if daysBack == 0 {
		return c.Send(warningMsg("Не знаю такого періоду. Спробуй /refresh today|week|month|all"))
	}

	if err := c.Send(infoMsg("Синхронізую виписку, це може тривати до кількох хвилин…")); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	res, err := b.svc.Refresh(ctx, userID, daysBack)
	if err != nil {
		b.log.Warn().Int64("user", userID).Err(err).Msg("refresh failed")
		return c.Send(errorReply(err))
	}
	return c.Send(successMsg(fmt.Sprintf(
		"Готово: %d рахунків, %d нових транзакцій. Звіти оновлено.",
		res.Accounts, res.Appended)))
}

func (b *Bot) reportHandler(period string) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := b.remember(c)
		withAI := strings.EqualFold(strings.TrimSpace(c.Message().Payload), "ai")

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		stored, err := b.svc.Report(ctx, userID, period)
		if err != nil {
			b.log.Warn().Int64("user", userID).Str("period", period).Err(err).Msg("report failed")
			return c.Send(errorReply(err))
		}

		aiBlock := ""
		if withAI {
			res, err := b.svc.AIBlock(ctx, stored.Facts, period)
			switch {
			case err == nil:
				aiBlock = buildAIBlock(res)
			case errors.Is(err, ErrLLMDisabled):
				aiBlock = ""
			default:
				b.log.Warn().Int64("user", userID).Err(err).Msg("llm enrichment failed")
				if err := c.Send(llmUnavailableMessage()); err != nil {
					return err
				}
			}
		}

		return c.Send(renderReport(period, stored.Facts, aiBlock))
	}
}

func (b *Bot) onAutojobs(c tele.Context) error {
	userID := b.remember(c)
	arg := strings.ToLower(strings.TrimSpace(c.Message().Payload))

	switch arg {
	case "on", "off":
		if err := b.svc.SetAutojobs(userID, arg == "on"); err != nil {
			return c.Send(errorReply(err))
		}
		if arg == "on" {
			return c.Send(successMsg("Автозвіти увімкнено: щотижневий і щомісячний дайджести."))
		}
		return c.Send(successMsg("Автозвіти вимкнено."))
	case "", "status":
		st := b.svc.StatusFor(userID)
		if st.AutojobsEnabled {
			return c.Send(infoMsg("Автозвіти увімкнено. /autojobs off — вимкнути."))
		}
		return c.Send(infoMsg("Автозвіти вимкнено. /autojobs on — увімкнути."))
	default:
		return c.Send(warningMsg("Спробуй /autojobs on|off|status"))
	}
}

func (b *Bot) onText(c tele.Context) error {
	userID := b.remember(c)
	text := c.Text()

	if b.metrics != nil {
		intent := nlq.Route(text, b.svc.clock.Now().Unix())
		b.metrics.NLQQueries.WithLabelValues(intent.Name).Inc()
	}

	answer := b.nlq.Handle(userID, text)
	return c.Send(answer)
}

// errorReply maps service and upstream failures to user-facing messages.
func errorReply(err error) string {
	var apiErr *mono.APIError
	var retry *ratelimit.ErrRetryLater

	switch {
	case errors.Is(err, ErrNoToken):
		return warningMsg("Спочатку підключи Monobank через /connect.")
	case errors.Is(err, ErrNoAccounts):
		return warningMsg("Обери картки для аналізу через /accounts.")
	case errors.Is(err, mono.ErrAuth):
		return invalidTokenMessage()
	case errors.As(err, &retry):
		return rateLimitMessage()
	case errors.As(err, &apiErr):
		if apiErr.Status == 429 {
			return rateLimitMessage()
		}
		return monoGenericErrorMessage()
	case errors.Is(err, context.DeadlineExceeded):
		return warningMsg("Синхронізація тривала надто довго і була перервана. Спробуй ще раз.")
	default:
		return errorMsg("Щось пішло не так. Спробуй ще раз трохи пізніше.")
	}
}

// renderAccountsScreen builds the selection message and inline keyboard.
func renderAccountsScreen(info *mono.ClientInfo, selected map[string]bool) (string, *tele.ReplyMarkup) {
	accounts := make([]mono.Account, len(info.Accounts))
	copy(accounts, info.Accounts)
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(accounts)+1)
	for _, acc := range accounts {
		rows = append(rows, markup.Row(markup.Data(accountButtonLabel(acc, selected[acc.ID]), btnAccToggle.Unique, acc.ID)))
	}
	rows = append(rows, markup.Row(
		markup.Data("🧹 Очистити", btnAccClear.Unique),
		markup.Data("✅ Готово", btnAccDone.Unique),
	))
	markup.Inline(rows...)

	n := 0
	for _, acc := range accounts {
		if selected[acc.ID] {
			n++
		}
	}
	text := strings.Join([]string{
		"💳 *Вибір карток*",
		"",
		fmt.Sprintf("Вибрано %d з %d. Натискай, щоб увімкнути/вимкнути.", n, len(accounts)),
		"Аналізуються лише вибрані картки.",
	}, "\n")
	return text, markup
}

func accountButtonLabel(acc mono.Account, on bool) string {
	mark := "▫️"
	if on {
		mark = "✅"
	}
	name := acc.Type
	if name == "" {
		name = "card"
	}
	pan := ""
	if len(acc.MaskedPan) > 0 {
		p := acc.MaskedPan[0]
		if len(p) >= 4 {
			pan = " •" + p[len(p)-4:]
		}
	}
	return fmt.Sprintf("%s %s%s — %s", mark, name, pan, fmtMoney(float64(acc.Balance)/100))
}

func renderStatus(st *Status) string {
	if !st.Connected {
		return warningMsg("Monobank не підключено. Зроби /connect, щоб почати.")
	}

	lines := []string{
		"🩺 *Статус*",
		"",
		"Monobank: підключено (" + st.MaskedToken + ")",
		fmt.Sprintf("Вибрано карток: %d", st.AccountsTotal),
	}
	if st.AutojobsEnabled {
		lines = append(lines, "Автозвіти: увімкнено")
	} else {
		lines = append(lines, "Автозвіти: вимкнено")
	}

	periods := []string{reportstore.PeriodToday, reportstore.PeriodWeek, reportstore.PeriodMonth}
	lines = append(lines, "", "*Кеш звітів:*")
	for _, p := range periods {
		ts, ok := st.LastGenerated[p]
		if !ok {
			lines = append(lines, fmt.Sprintf("• %s: ще не згенеровано", periodTitles[p]))
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s: %s", periodTitles[p],
			time.Unix(ts, 0).UTC().Format("2006-01-02 15:04 UTC")))
	}
	return strings.Join(lines, "\n")
}
