package nlq

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// memory is the per-user on-disk state: learned aliases plus at most one
// pending clarification. Pending state references the paused intent only;
// it never carries transaction data.
type memory struct {
	MerchantAliases  map[string]string `json:"merchant_aliases"`
	RecipientAliases map[string]string `json:"recipient_aliases"`
	PendingIntent    *Intent           `json:"pending_intent"`
	PendingKind      string            `json:"pending_kind,omitempty"`
	PendingOptions   []string          `json:"pending_options,omitempty"`
}

// seededMerchantAliases bootstrap common shorthands so the first query
// works without teaching.
var seededMerchantAliases = map[string]string{
	"мак":     "mcdonalds",
	"макдак":  "mcdonalds",
	"сільпо":  "silpo",
	"сильпо":  "silpo",
}

func defaultMemory() *memory {
	m := &memory{
		MerchantAliases:  map[string]string{},
		RecipientAliases: map[string]string{},
	}
	for k, v := range seededMerchantAliases {
		m.MerchantAliases[k] = v
	}
	return m
}

// MemoryStore persists NLQ memory, one JSON file per user.
type MemoryStore struct {
	mu   sync.Mutex
	root string
	log  zerolog.Logger
}

func NewMemoryStore(root string, log zerolog.Logger) *MemoryStore {
	return &MemoryStore{root: root, log: log.With().Str("component", "nlq-memory").Logger()}
}

func (s *MemoryStore) path(userID int64) string {
	return filepath.Join(s.root, fmt.Sprintf("%d.json", userID))
}

// load reads the user's memory, healing absent or corrupt files. Callers
// hold s.mu.
func (s *MemoryStore) load(userID int64) *memory {
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		return defaultMemory()
	}
	var m memory
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.Warn().Int64("user", userID).Err(err).Msg("corrupt nlq memory reset")
		return defaultMemory()
	}
	if m.MerchantAliases == nil {
		m.MerchantAliases = map[string]string{}
	}
	for k, v := range seededMerchantAliases {
		if _, ok := m.MerchantAliases[k]; !ok {
			m.MerchantAliases[k] = v
		}
	}
	if m.RecipientAliases == nil {
		m.RecipientAliases = map[string]string{}
	}
	return &m
}

func (s *MemoryStore) save(userID int64, m *memory) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	path := s.path(userID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ResolveMerchant maps raw user text to a canonical substring: exact alias
// first, then the longest alias that prefixes or is contained in the raw
// text. New indirect resolutions are written back so the next lookup is
// exact.
func (s *MemoryStore) ResolveMerchant(userID int64, raw string) string {
	key := Norm(raw)
	if key == "" {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load(userID)
	if v, ok := m.MerchantAliases[key]; ok && v != "" {
		return v
	}

	// longest alias wins; ties broken by alias order for determinism
	aliases := make([]string, 0, len(m.MerchantAliases))
	for a := range m.MerchantAliases {
		aliases = append(aliases, a)
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})
	for _, a := range aliases {
		if strings.HasPrefix(key, a) || strings.Contains(key, a) {
			canonical := m.MerchantAliases[a]
			m.MerchantAliases[key] = canonical
			if err := s.save(userID, m); err != nil {
				s.log.Warn().Int64("user", userID).Err(err).Msg("alias write-back failed")
			}
			return canonical
		}
	}
	return key
}

// SaveMerchantAlias records raw -> canonical.
func (s *MemoryStore) SaveMerchantAlias(userID int64, raw, canonical string) error {
	key := Norm(raw)
	canonical = Norm(canonical)
	if key == "" || canonical == "" {
		return fmt.Errorf("nlq: empty alias")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load(userID)
	m.MerchantAliases[key] = canonical
	return s.save(userID, m)
}

// RecipientMatch returns the canonical substring for a recipient alias.
func (s *MemoryStore) RecipientMatch(userID int64, alias string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load(userID)
	v, ok := m.RecipientAliases[Norm(alias)]
	return v, ok && v != ""
}

// SaveRecipientAlias records alias -> canonical substring.
func (s *MemoryStore) SaveRecipientAlias(userID int64, alias, canonical string) error {
	key := Norm(alias)
	canonical = strings.ToLower(strings.TrimSpace(canonical))
	if key == "" || canonical == "" {
		return fmt.Errorf("nlq: empty recipient alias")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load(userID)
	m.RecipientAliases[key] = canonical
	return s.save(userID, m)
}

// SetPending stores the paused intent, replacing any previous one.
func (s *MemoryStore) SetPending(userID int64, intent Intent, kind string, options []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load(userID)
	m.PendingIntent = &intent
	m.PendingKind = kind
	m.PendingOptions = options
	return s.save(userID, m)
}

// PopPending removes and returns the pending intent, if any.
func (s *MemoryStore) PopPending(userID int64) (Intent, []string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.load(userID)
	if m.PendingIntent == nil {
		return Intent{}, nil, false
	}
	intent := *m.PendingIntent
	options := m.PendingOptions
	m.PendingIntent = nil
	m.PendingKind = ""
	m.PendingOptions = nil
	if err := s.save(userID, m); err != nil {
		s.log.Warn().Int64("user", userID).Err(err).Msg("pending clear failed")
	}
	return intent, options, true
}
