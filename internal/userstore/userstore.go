// Package userstore persists the per-user configuration record.
//
// One JSON file per user under <root>/<user_id>.json. The store exclusively
// owns the token bytes: tokens are sealed with the secrets codec before they
// touch disk and returned decrypted from Load. Writes are atomic
// (temp file + rename).
package userstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"monobudget/internal/secrets"
	"monobudget/pkg/clock"
)

// Config is the decrypted view of one user's record.
type Config struct {
	TelegramUserID     int64    `json:"telegram_user_id"`
	MonoToken          string   `json:"mono_token"`
	SelectedAccountIDs []string `json:"selected_account_ids"`
	ChatID             int64    `json:"chat_id,omitempty"`
	AutojobsEnabled    bool     `json:"autojobs_enabled"`
	UpdatedAt          int64    `json:"updated_at"`
}

// Patch updates only the fields that are non-nil; everything else is
// preserved. SelectedAccountIDs replaces the whole list atomically.
type Patch struct {
	MonoToken          *string
	SelectedAccountIDs *[]string
	ChatID             *int64
	AutojobsEnabled    *bool
}

// ErrNotFound is returned by Load for unknown users.
var ErrNotFound = errors.New("userstore: user not found")

// Store is the file-backed user config store.
type Store struct {
	mu    sync.Mutex
	root  string
	codec *secrets.Codec
	clock clock.Clock
	log   zerolog.Logger
}

// NewStore creates the store rooted at dir.
func NewStore(dir string, codec *secrets.Codec, clk clock.Clock, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Store{
		root:  dir,
		codec: codec,
		clock: clk,
		log:   log.With().Str("component", "userstore").Logger(),
	}, nil
}

func (s *Store) path(userID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(userID, 10)+".json")
}

func (s *Store) write(cfg *Config) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(cfg.TelegramUserID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) read(userID int64) (*Config, error) {
	raw, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("userstore: corrupt record for user %d: %w", userID, err)
	}
	return &cfg, nil
}

// Load returns the user's config with the token decrypted. A stored token
// without the codec signature is treated as legacy plaintext and re-sealed
// in place on this read.
func (s *Store) Load(userID int64) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(userID)
}

func (s *Store) loadLocked(userID int64) (*Config, error) {
	cfg, err := s.read(userID)
	if err != nil {
		return nil, err
	}
	if cfg.MonoToken == "" {
		return cfg, nil
	}

	if !secrets.IsSealed(cfg.MonoToken) {
		plain := cfg.MonoToken
		sealed, err := s.codec.Seal(plain)
		if err != nil {
			return nil, err
		}
		cfg.MonoToken = sealed
		if err := s.write(cfg); err != nil {
			return nil, err
		}
		s.log.Info().Int64("user", userID).Msg("migrated plaintext token to sealed form")
		cfg.MonoToken = plain
		return cfg, nil
	}

	plain, err := s.codec.Open(cfg.MonoToken)
	if err != nil {
		return nil, fmt.Errorf("userstore: unsealing token for user %d: %w", userID, err)
	}
	cfg.MonoToken = plain
	return cfg, nil
}

// Save applies a patch, creating the record if it does not exist.
func (s *Store) Save(userID int64, patch Patch) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.read(userID)
	if errors.Is(err, ErrNotFound) {
		cfg = &Config{TelegramUserID: userID, AutojobsEnabled: true}
	} else if err != nil {
		return nil, err
	}

	if patch.MonoToken != nil {
		sealed, err := s.codec.Seal(*patch.MonoToken)
		if err != nil {
			return nil, err
		}
		cfg.MonoToken = sealed
	}
	if patch.SelectedAccountIDs != nil {
		ids := make([]string, len(*patch.SelectedAccountIDs))
		copy(ids, *patch.SelectedAccountIDs)
		cfg.SelectedAccountIDs = ids
	}
	if patch.ChatID != nil {
		cfg.ChatID = *patch.ChatID
	}
	if patch.AutojobsEnabled != nil {
		cfg.AutojobsEnabled = *patch.AutojobsEnabled
	}
	cfg.UpdatedAt = s.clock.Now().Unix()

	if err := s.write(cfg); err != nil {
		return nil, err
	}
	return s.loadLocked(userID)
}

// IterAll yields every stored config in arbitrary order. Unreadable records
// are logged and skipped; the sweep never aborts.
//
// Records are snapshotted under the lock and the callback runs after it is
// released, so fn may call back into the store (the scheduler sweeps drive
// refreshes that Load the very user being visited).
func (s *Store) IterAll(fn func(*Config)) error {
	s.mu.Lock()
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	var cfgs []*Config
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		userID, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		cfg, err := s.loadLocked(userID)
		if err != nil {
			s.log.Warn().Int64("user", userID).Err(err).Msg("skipping unreadable user record")
			continue
		}
		cfgs = append(cfgs, cfg)
	}
	s.mu.Unlock()

	for _, cfg := range cfgs {
		fn(cfg)
	}
	return nil
}
