package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"monobudget/internal/analytics"
	"monobudget/internal/cache"
	"monobudget/internal/ledger"
	"monobudget/internal/llm"
	"monobudget/internal/mono"
	"monobudget/internal/ops"
	"monobudget/internal/ratelimit"
	"monobudget/internal/reportstore"
	"monobudget/internal/syncer"
	"monobudget/internal/userstore"
	"monobudget/pkg/clock"
)

// Errors the chat layer turns into user-facing messages.
var (
	ErrNoToken     = errors.New("bot: monobank token is not connected")
	ErrNoAccounts  = errors.New("bot: no accounts selected")
	ErrLLMDisabled = errors.New("bot: llm enrichment is not configured")
)

// refreshDaysBack maps a report period to how far a sync for that period
// reaches back. The extra days cover the previous comparison window.
var refreshDaysBack = map[string]int{
	reportstore.PeriodToday: 2,
	reportstore.PeriodWeek:  8,
	reportstore.PeriodMonth: 32,
}

// periodDays is the report window length per cached period.
var periodDays = map[string]int{
	reportstore.PeriodToday: 1,
	reportstore.PeriodWeek:  7,
	reportstore.PeriodMonth: 30,
}

const profileLookbackDays = 90

// Service ties the stores, the upstream client and the analytics pipeline
// together. Both the chat handlers and the scheduler drive it; a per-user
// mutex keeps one user's sync/recompute runs serial.
type Service struct {
	users   *userstore.Store
	ledger  *ledger.Store
	reports *reportstore.Store
	syncer  *syncer.Syncer
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	clock   clock.Clock
	metrics *ops.Metrics
	enrich  *llm.Enricher
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	// monoOpts lets tests point clients at a fake upstream.
	monoOpts mono.Options
}

// ServiceDeps are the collaborators a Service needs. Enrich may be nil when
// no OpenAI key is configured.
type ServiceDeps struct {
	Users   *userstore.Store
	Ledger  *ledger.Store
	Reports *reportstore.Store
	Syncer  *syncer.Syncer
	Cache   *cache.Cache
	Limiter *ratelimit.Limiter
	Clock   clock.Clock
	Metrics *ops.Metrics
	Enrich  *llm.Enricher
	Logger  zerolog.Logger

	MonoOptions mono.Options
}

func NewService(d ServiceDeps) *Service {
	if d.Clock == nil {
		d.Clock = clock.NewReal()
	}
	return &Service{
		users:    d.Users,
		ledger:   d.Ledger,
		reports:  d.Reports,
		syncer:   d.Syncer,
		cache:    d.Cache,
		limiter:  d.Limiter,
		clock:    d.Clock,
		metrics:  d.Metrics,
		enrich:   d.Enrich,
		log:      d.Logger.With().Str("component", "bot").Logger(),
		locks:    map[int64]*sync.Mutex{},
		monoOpts: d.MonoOptions,
	}
}

// userLock returns the per-user mutex, creating it on first use.
func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *Service) client(token string) *mono.Client {
	opts := s.monoOpts
	if opts.Clock == nil {
		opts.Clock = s.clock
	}
	opts.Logger = s.log
	return mono.NewClient(token, s.cache, s.limiter, opts)
}

// Connect validates the token against /personal/client-info before storing
// it, and selects every discovered account by default.
func (s *Service) Connect(ctx context.Context, userID, chatID int64, token string) (*mono.ClientInfo, error) {
	info, err := s.client(token).ClientInfo(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(info.Accounts))
	for _, a := range info.Accounts {
		ids = append(ids, a.ID)
	}
	_, err = s.users.Save(userID, userstore.Patch{
		MonoToken:          &token,
		SelectedAccountIDs: &ids,
		ChatID:             &chatID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("user", userID).Int("accounts", len(ids)).Msg("monobank token connected")
	return info, nil
}

// Accounts returns the upstream account list with the stored selection.
// An empty selection is fine here: this is the screen that fixes it.
func (s *Service) Accounts(ctx context.Context, userID int64) (*mono.ClientInfo, map[string]bool, error) {
	cfg, err := s.connected(userID)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.client(cfg.MonoToken).ClientInfo(ctx)
	if err != nil {
		return nil, nil, err
	}
	selected := make(map[string]bool, len(cfg.SelectedAccountIDs))
	for _, id := range cfg.SelectedAccountIDs {
		selected[id] = true
	}
	return info, selected, nil
}

// ToggleAccount flips one account in or out of the selection.
func (s *Service) ToggleAccount(userID int64, accountID string) error {
	cfg, err := s.connected(userID)
	if err != nil {
		return err
	}
	var ids []string
	found := false
	for _, id := range cfg.SelectedAccountIDs {
		if id == accountID {
			found = true
			continue
		}
		ids = append(ids, id)
	}
	if !found {
		ids = append(ids, accountID)
	}
	if ids == nil {
		ids = []string{}
	}
	_, err = s.users.Save(userID, userstore.Patch{SelectedAccountIDs: &ids})
	return err
}

// ClearAccounts empties the selection.
func (s *Service) ClearAccounts(userID int64) error {
	if _, err := s.connected(userID); err != nil {
		return err
	}
	empty := []string{}
	_, err := s.users.Save(userID, userstore.Patch{SelectedAccountIDs: &empty})
	return err
}

// SetAutojobs turns the scheduled jobs on or off for one user.
func (s *Service) SetAutojobs(userID int64, enabled bool) error {
	_, err := s.users.Save(userID, userstore.Patch{AutojobsEnabled: &enabled})
	return err
}

// RememberChat records the chat the user talks from, so scheduled posts have
// a destination.
func (s *Service) RememberChat(userID, chatID int64) {
	cfg, err := s.users.Load(userID)
	if err != nil || cfg.ChatID == chatID {
		return
	}
	if _, err := s.users.Save(userID, userstore.Patch{ChatID: &chatID}); err != nil {
		s.log.Warn().Int64("user", userID).Err(err).Msg("saving chat id failed")
	}
}

// connected loads the user record and requires a stored token.
func (s *Service) connected(userID int64) (*userstore.Config, error) {
	cfg, err := s.users.Load(userID)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	if cfg.MonoToken == "" {
		return nil, ErrNoToken
	}
	return cfg, nil
}

// config additionally requires a non-empty account selection.
func (s *Service) config(userID int64) (*userstore.Config, error) {
	cfg, err := s.connected(userID)
	if err != nil {
		return nil, err
	}
	if len(cfg.SelectedAccountIDs) == 0 {
		return nil, ErrNoAccounts
	}
	return cfg, nil
}

// Refresh syncs the user's selected accounts daysBack into the past, then
// recomputes every cached period report and the long-term profile. One
// refresh per user runs at a time.
func (s *Service) Refresh(ctx context.Context, userID int64, daysBack int) (syncer.Result, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	cfg, err := s.config(userID)
	if err != nil {
		return syncer.Result{}, err
	}

	res, err := s.syncer.Sync(ctx, s.client(cfg.MonoToken), userID, cfg.SelectedAccountIDs, daysBack)
	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.SyncRuns.WithLabelValues(outcome).Inc()
		s.metrics.UpstreamRequests.Add(float64(res.FetchedRequests))
		s.metrics.RowsAppended.Add(float64(res.Appended))
	}
	if err != nil {
		return res, err
	}

	if err := s.recomputeLocked(userID, cfg.SelectedAccountIDs); err != nil {
		return res, err
	}
	return res, nil
}

// recomputeLocked rebuilds the today/week/month caches and the profile from
// the ledger. Caller holds the user lock.
func (s *Service) recomputeLocked(userID int64, accountIDs []string) error {
	now := s.clock.Now().Unix()

	// one read covers the widest period plus its comparison window
	records, err := s.ledger.LoadRange(userID, accountIDs, now-2*30*clock.SecondsPerDay, now)
	if err != nil {
		return fmt.Errorf("bot: loading ledger for reports: %w", err)
	}

	for _, period := range []string{reportstore.PeriodToday, reportstore.PeriodWeek, reportstore.PeriodMonth} {
		rep := analytics.BuildPeriodReport(records, periodDays[period], now)
		if err := s.reports.Save(userID, period, rep.Current); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.ReportsGenerated.WithLabelValues(period).Inc()
		}
	}

	longRecords, err := s.ledger.LoadRange(userID, accountIDs, now-profileLookbackDays*clock.SecondsPerDay, now)
	if err != nil {
		return err
	}
	if profile := analytics.BuildProfile(longRecords); profile != nil {
		if err := s.reports.SaveProfile(userID, profile); err != nil {
			return err
		}
	}
	return nil
}

// Report returns the cached report for period, refreshing first when the
// cache is empty.
func (s *Service) Report(ctx context.Context, userID int64, period string) (*reportstore.StoredReport, error) {
	if _, ok := periodDays[period]; !ok {
		return nil, fmt.Errorf("bot: unknown period %q", period)
	}

	stored, err := s.reports.Load(userID, period)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		if _, err := s.Refresh(ctx, userID, refreshDaysBack[period]); err != nil {
			return nil, err
		}
		stored, err = s.reports.Load(userID, period)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, fmt.Errorf("bot: report cache still empty after refresh")
		}
	}
	return stored, nil
}

// AIBlock asks the enricher for the narrative block of a report.
func (s *Service) AIBlock(ctx context.Context, facts *analytics.Facts, period string) (*llm.Result, error) {
	if s.enrich == nil {
		return nil, ErrLLMDisabled
	}
	label, ok := periodTitles[period]
	if !ok {
		label = period
	}
	return s.enrich.GenerateReport(ctx, facts, label)
}

// Status is the /status summary.
type Status struct {
	Connected       bool
	MaskedToken     string
	AccountsTotal   int
	AutojobsEnabled bool
	LastGenerated   map[string]int64
}

// StatusFor assembles the connection/cache summary for one user.
func (s *Service) StatusFor(userID int64) *Status {
	st := &Status{LastGenerated: map[string]int64{}}

	cfg, err := s.users.Load(userID)
	if err != nil {
		return st
	}
	st.Connected = cfg.MonoToken != ""
	st.MaskedToken = maskSecret(cfg.MonoToken)
	st.AccountsTotal = len(cfg.SelectedAccountIDs)
	st.AutojobsEnabled = cfg.AutojobsEnabled

	for period := range periodDays {
		if ts, err := s.reports.LastGeneratedAt(userID, period); err == nil && ts > 0 {
			st.LastGenerated[period] = ts
		}
	}
	return st
}
