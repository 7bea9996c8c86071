// Package policy loads and serves the externally managed decision policy:
// the rule configuration and the message catalog.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// LoadRules reads and validates a rule configuration document. Any defect
// (unreadable file, malformed JSON, threshold inversion, bad CEL) is a load
// error; callers at startup must treat it as fatal.
func LoadRules(path string) (*domain.RuleConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules document %s: %w", path, err)
	}

	var cfg domain.RuleConfiguration
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse rules document %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules document %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadCatalog reads and validates a message catalog document.
func LoadCatalog(path string) (*domain.MessageCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages document %s: %w", path, err)
	}

	var cat domain.MessageCatalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse messages document %s: %w", path, err)
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid messages document %s: %w", path, err)
	}

	return &cat, nil
}

// Store holds the active policy and swaps it atomically on reload.
// The rule configuration, catalog, and compiled screener always come from
// the same load, so readers never observe a mixed policy.
type Store struct {
	mu        sync.RWMutex
	rulesPath string
	msgsPath  string

	rules    *domain.RuleConfiguration
	catalog  *domain.MessageCatalog
	screener *Screener
}

// NewStore loads the policy documents and returns a serving store.
// A load failure here means the process must not serve.
func NewStore(rulesPath, messagesPath string) (*Store, error) {
	s := &Store{
		rulesPath: rulesPath,
		msgsPath:  messagesPath,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads both documents, validates them, and swaps the active
// policy. On any failure the prior policy keeps serving and the error is
// returned to the caller.
func (s *Store) Reload() error {
	rules, err := LoadRules(s.rulesPath)
	if err != nil {
		return err
	}

	catalog, err := LoadCatalog(s.msgsPath)
	if err != nil {
		return err
	}

	screener, err := NewScreener(rules.ScreeningRules)
	if err != nil {
		return fmt.Errorf("invalid rules document %s: %w", s.rulesPath, err)
	}

	s.mu.Lock()
	s.rules = rules
	s.catalog = catalog
	s.screener = screener
	s.mu.Unlock()

	return nil
}

// Rules returns the active rule configuration.
func (s *Store) Rules() domain.RuleConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.rules
}

// Catalog returns the active message catalog.
func (s *Store) Catalog() *domain.MessageCatalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Screener returns the active compiled screener.
func (s *Store) Screener() *Screener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screener
}
