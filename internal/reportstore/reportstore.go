// Package reportstore caches rendered report facts per user and period so
// chat commands can answer instantly between syncs.
//
// Layout:
//
//	<root>/<telegram_user_id>/facts_<period>.json
//	<root>/<telegram_user_id>/profile.json
//
// Writes go through a temp file and rename, so readers never observe a
// partially written report.
package reportstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"monobudget/internal/analytics"
	"monobudget/pkg/clock"
)

// Known periods. Anything else is rejected so stray keys cannot grow the
// cache directory unbounded.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// StoredReport is the on-disk envelope around a facts object.
type StoredReport struct {
	Period      string           `json:"period"`
	GeneratedAt int64            `json:"generated_at"`
	Facts       *analytics.Facts `json:"facts"`
}

// Store persists report envelopes and long-term profiles.
type Store struct {
	mu    sync.Mutex
	root  string
	clock clock.Clock
	log   zerolog.Logger
}

func New(root string, clk clock.Clock, log zerolog.Logger) *Store {
	return &Store{root: root, clock: clk, log: log.With().Str("component", "reportstore").Logger()}
}

func validPeriod(period string) bool {
	switch period {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

func (s *Store) userDir(userID int64) string {
	return filepath.Join(s.root, fmt.Sprintf("%d", userID))
}

func (s *Store) reportPath(userID int64, period string) string {
	return filepath.Join(s.userDir(userID), "facts_"+period+".json")
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Save stamps the facts with the current time and replaces the cached
// report for (user, period).
func (s *Store) Save(userID int64, period string, facts *analytics.Facts) error {
	if !validPeriod(period) {
		return fmt.Errorf("reportstore: unknown period %q", period)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := StoredReport{
		Period:      period,
		GeneratedAt: s.clock.Now().Unix(),
		Facts:       facts,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("reportstore: marshal %s: %w", period, err)
	}
	if err := writeAtomic(s.reportPath(userID, period), data); err != nil {
		return fmt.Errorf("reportstore: save %s: %w", period, err)
	}
	s.log.Debug().Int64("user", userID).Str("period", period).Msg("report cached")
	return nil
}

// Load returns the cached report, or (nil, nil) when absent or unreadable.
// A corrupt cache entry is never an error: the caller just regenerates.
func (s *Store) Load(userID int64, period string) (*StoredReport, error) {
	if !validPeriod(period) {
		return nil, fmt.Errorf("reportstore: unknown period %q", period)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.reportPath(userID, period))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reportstore: load %s: %w", period, err)
	}
	var stored StoredReport
	if err := json.Unmarshal(data, &stored); err != nil {
		s.log.Warn().Int64("user", userID).Str("period", period).Err(err).Msg("corrupt report cache entry ignored")
		return nil, nil
	}
	return &stored, nil
}

// LastGeneratedAt returns the envelope timestamp, or 0 when no cache entry
// exists.
func (s *Store) LastGeneratedAt(userID int64, period string) (int64, error) {
	stored, err := s.Load(userID, period)
	if err != nil || stored == nil {
		return 0, err
	}
	return stored.GeneratedAt, nil
}

// SaveProfile replaces the user's long-term profile.
func (s *Store) SaveProfile(userID int64, profile *analytics.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("reportstore: marshal profile: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.userDir(userID), "profile.json"), data); err != nil {
		return fmt.Errorf("reportstore: save profile: %w", err)
	}
	return nil
}

// LoadProfile returns the stored profile, or nil when absent or unreadable.
func (s *Store) LoadProfile(userID int64) *analytics.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.userDir(userID), "profile.json"))
	if err != nil {
		return nil
	}
	var p analytics.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}
