// Package ledger is the per-user, per-account append-only transaction log.
//
// Layout:
//
//	<root>/<user_id>/<account_id>.jsonl   one JSON object per line
//	<root>/<user_id>/_meta.json           account_id -> {last_ts, last_sync_at}
//
// CRITICAL: rows are immutable once appended and ids are never reused.
// Appends are single line writes; the watermark meta is updated afterwards
// with an atomic rename. A crash between the two is safe because LastTS can
// rebuild the watermark from the log itself.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"monobudget/pkg/clock"
)

// Record is one normalized ledger row. Amount is signed minor units,
// negative = money out. MCC and CurrencyCode use 0 for absent.
type Record struct {
	ID           string `json:"id"`
	Time         int64  `json:"time"`
	AccountID    string `json:"account_id"`
	Amount       int64  `json:"amount"`
	Description  string `json:"description"`
	MCC          int    `json:"mcc,omitempty"`
	CurrencyCode int    `json:"currencyCode,omitempty"`
}

// AccountMeta is the per-account watermark block.
type AccountMeta struct {
	LastTS     int64 `json:"last_ts,omitempty"`
	LastSyncAt int64 `json:"last_sync_at,omitempty"`
}

// Store owns the ledger files. All operations are synchronous; a single
// mutex serializes writers, which matches the per-user lock held by callers.
// ids caches the seen-id set per (user, account) so appends only scan each
// log once per process lifetime.
type Store struct {
	mu    sync.Mutex
	root  string
	clock clock.Clock
	log   zerolog.Logger
	ids   map[string]map[string]struct{}
}

// NewStore creates a ledger store rooted at dir.
func NewStore(dir string, clk clock.Clock, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Store{
		root:  dir,
		clock: clk,
		log:   log.With().Str("component", "ledger").Logger(),
		ids:   make(map[string]map[string]struct{}),
	}, nil
}

func (s *Store) userDir(userID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(userID, 10))
}

func (s *Store) accountPath(userID int64, accountID string) string {
	return filepath.Join(s.userDir(userID), accountID+".jsonl")
}

func (s *Store) metaPath(userID int64) string {
	return filepath.Join(s.userDir(userID), "_meta.json")
}

func (s *Store) loadMeta(userID int64) map[string]AccountMeta {
	raw, err := os.ReadFile(s.metaPath(userID))
	if err != nil {
		return map[string]AccountMeta{}
	}
	meta := map[string]AccountMeta{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		s.log.Warn().Int64("user", userID).Err(err).Msg("meta file corrupt, rebuilding lazily")
		return map[string]AccountMeta{}
	}
	return meta
}

func (s *Store) saveMeta(userID int64, meta map[string]AccountMeta) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	path := s.metaPath(userID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// scan streams every parseable row of one account log. Corrupt lines are
// skipped, not fatal.
func (s *Store) scan(userID int64, accountID string, fn func(Record)) error {
	file, err := os.Open(s.accountPath(userID, accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.log.Warn().Int64("user", userID).Str("account", accountID).Msg("skipping corrupt ledger line")
			continue
		}
		fn(rec)
	}
	return scanner.Err()
}

// LastTS returns the account watermark. Fast path reads meta; the cold path
// rebuilds it with one pass over the log and persists the result.
func (s *Store) LastTS(userID int64, accountID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTSLocked(userID, accountID)
}

func (s *Store) lastTSLocked(userID int64, accountID string) (int64, bool, error) {
	meta := s.loadMeta(userID)
	if m, ok := meta[accountID]; ok && m.LastTS > 0 {
		return m.LastTS, true, nil
	}

	var last int64
	found := false
	if err := s.scan(userID, accountID, func(rec Record) {
		if rec.Time > last {
			last = rec.Time
		}
		found = true
	}); err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}

	m := meta[accountID]
	m.LastTS = last
	meta[accountID] = m
	if err := s.saveMeta(userID, meta); err != nil {
		return 0, false, err
	}
	return last, true, nil
}

// idSetLocked returns the cached seen-id set for one account, scanning the
// log on first touch.
func (s *Store) idSetLocked(userID int64, accountID string) (map[string]struct{}, error) {
	key := strconv.FormatInt(userID, 10) + "/" + accountID
	if set, ok := s.ids[key]; ok {
		return set, nil
	}
	set := make(map[string]struct{})
	if err := s.scan(userID, accountID, func(rec Record) {
		set[rec.ID] = struct{}{}
	}); err != nil {
		return nil, err
	}
	s.ids[key] = set
	return set, nil
}

// AppendMany appends rows whose id has not been seen before and returns the
// number actually appended. On success the watermark advances monotonically
// to the max appended timestamp.
func (s *Store) AppendMany(userID int64, accountID string, rows []Record) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.userDir(userID), 0o700); err != nil {
		return 0, err
	}

	seen, err := s.idSetLocked(userID, accountID)
	if err != nil {
		return 0, err
	}

	file, err := os.OpenFile(s.accountPath(userID, accountID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	appended := 0
	var maxTS int64
	for _, rec := range rows {
		if rec.ID == "" {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		rec.AccountID = accountID
		line, err := json.Marshal(rec)
		if err != nil {
			return appended, err
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			return appended, fmt.Errorf("ledger append: %w", err)
		}
		seen[rec.ID] = struct{}{}
		appended++
		if rec.Time > maxTS {
			maxTS = rec.Time
		}
	}

	if err := file.Sync(); err != nil {
		return appended, err
	}

	meta := s.loadMeta(userID)
	m := meta[accountID]
	if maxTS > m.LastTS {
		m.LastTS = maxTS
	}
	m.LastSyncAt = s.clock.Now().Unix()
	meta[accountID] = m
	if err := s.saveMeta(userID, meta); err != nil {
		return appended, err
	}
	return appended, nil
}

// LoadRange returns rows of the given accounts with Time in [from, to],
// sorted by timestamp ascending.
func (s *Store) LoadRange(userID int64, accountIDs []string, from, to int64) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, accountID := range accountIDs {
		if err := s.scan(userID, accountID, func(rec Record) {
			if rec.Time < from || rec.Time > to {
				return
			}
			out = append(out, rec)
		}); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}
