// Package syncer walks upstream statements forward from each account's
// watermark and appends the results to the ledger.
package syncer

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"monobudget/internal/ledger"
	"monobudget/internal/mono"
	"monobudget/pkg/clock"
)

const (
	// watermarkOverlap re-reads the last hour before the watermark so
	// late-arriving authorizations are not lost. Dedup by id makes the
	// overlap harmless.
	watermarkOverlap = 3600

	// maxWindow is the upstream statement limit: 31 days plus one hour.
	maxWindow = 31*clock.SecondsPerDay + 3600
)

// Upstream is the slice of the Monobank client the syncer needs.
type Upstream interface {
	Statement(ctx context.Context, account string, from, to int64) ([]mono.StatementItem, error)
	Requests() int64
}

// Result summarizes one sync run.
type Result struct {
	Accounts        int   `json:"accounts"`
	FetchedRequests int64 `json:"fetched_requests"`
	Appended        int   `json:"appended"`
}

type Syncer struct {
	ledger *ledger.Store
	clock  clock.Clock
	log    zerolog.Logger
}

func New(led *ledger.Store, clk clock.Clock, log zerolog.Logger) *Syncer {
	return &Syncer{ledger: led, clock: clk, log: log.With().Str("component", "syncer").Logger()}
}

func toRecords(accountID string, items []mono.StatementItem) []ledger.Record {
	out := make([]ledger.Record, 0, len(items))
	for _, it := range items {
		out = append(out, ledger.Record{
			ID:           it.ID,
			Time:         it.Time,
			AccountID:    accountID,
			Amount:       it.Amount,
			Description:  it.Description,
			MCC:          it.MCC,
			CurrencyCode: it.CurrencyCode,
		})
	}
	return out
}

// Sync catches up every account: resume from the watermark minus the
// overlap, or daysBack when the account has no history, in windows the
// upstream accepts. Accounts are fetched concurrently; the shared rate
// limiter keys keep the upstream call rate bounded.
func (s *Syncer) Sync(ctx context.Context, up Upstream, userID int64, accountIDs []string, daysBack int) (Result, error) {
	now := s.clock.Now().Unix()
	before := up.Requests()

	var appended atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for _, accountID := range accountIDs {
		accountID := accountID
		g.Go(func() error {
			n, err := s.syncAccount(ctx, up, userID, accountID, daysBack, now)
			if err != nil {
				return err
			}
			appended.Add(int64(n))
			return nil
		})
	}
	err := g.Wait()

	res := Result{
		Accounts:        len(accountIDs),
		FetchedRequests: up.Requests() - before,
		Appended:        int(appended.Load()),
	}
	if err != nil {
		return res, err
	}
	s.log.Info().
		Int64("user", userID).
		Int("accounts", res.Accounts).
		Int64("requests", res.FetchedRequests).
		Int("appended", res.Appended).
		Msg("sync done")
	return res, nil
}

func (s *Syncer) syncAccount(ctx context.Context, up Upstream, userID int64, accountID string, daysBack int, now int64) (int, error) {
	watermark, known, err := s.ledger.LastTS(userID, accountID)
	if err != nil {
		return 0, err
	}

	start := now - int64(daysBack)*clock.SecondsPerDay
	if known {
		start = watermark - watermarkOverlap
	}

	appended := 0
	for start < now {
		end := start + maxWindow
		if end > now {
			end = now
		}
		items, err := up.Statement(ctx, accountID, start, end)
		if err != nil {
			return appended, err
		}
		n, err := s.ledger.AppendMany(userID, accountID, toRecords(accountID, items))
		if err != nil {
			return appended, err
		}
		appended += n
		start = end
	}
	return appended, nil
}
