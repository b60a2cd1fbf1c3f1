// Package settings persists provider credentials in a small JSON file.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Provider names accepted for Credentials.AIProvider.
const (
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"
)

// Credentials is the persisted provider configuration. The JSON keys match
// the keys the browser extension stores.
type Credentials struct {
	AIProvider       string `json:"aiProvider,omitempty"`
	DeepSeekAPIKey   string `json:"deepseekApiKey,omitempty"`
	OpenRouterAPIKey string `json:"openrouterApiKey,omitempty"`
	OpenRouterModel  string `json:"openrouterModel,omitempty"`
}

// Masked returns a copy safe to show to users: API keys keep only their
// last four characters.
func (c Credentials) Masked() Credentials {
	c.DeepSeekAPIKey = maskKey(c.DeepSeekAPIKey)
	c.OpenRouterAPIKey = maskKey(c.OpenRouterAPIKey)
	return c
}

func maskKey(k string) string {
	if k == "" {
		return ""
	}
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", len(k)-4) + k[len(k)-4:]
}

// Update is a partial change to Credentials. Nil fields are left alone.
//
// The two default flags mirror the options page checkboxes: a checked
// default flag selects its provider and wins over Provider.
type Update struct {
	Provider          *string `json:"aiProvider,omitempty"`
	DeepSeekAPIKey    *string `json:"deepseekApiKey,omitempty"`
	OpenRouterAPIKey  *string `json:"openrouterApiKey,omitempty"`
	OpenRouterModel   *string `json:"openrouterModel,omitempty"`
	DeepSeekDefault   bool    `json:"deepseekDefaultProvider,omitempty"`
	OpenRouterDefault bool    `json:"openrouterDefaultProvider,omitempty"`
}

// Apply returns c with u applied.
func (u Update) Apply(c Credentials) Credentials {
	if u.Provider != nil {
		c.AIProvider = strings.TrimSpace(*u.Provider)
	}
	if u.DeepSeekAPIKey != nil {
		c.DeepSeekAPIKey = strings.TrimSpace(*u.DeepSeekAPIKey)
	}
	if u.OpenRouterAPIKey != nil {
		c.OpenRouterAPIKey = strings.TrimSpace(*u.OpenRouterAPIKey)
	}
	if u.OpenRouterModel != nil {
		c.OpenRouterModel = strings.TrimSpace(*u.OpenRouterModel)
	}
	switch {
	case u.DeepSeekDefault:
		c.AIProvider = ProviderDeepSeek
	case u.OpenRouterDefault:
		c.AIProvider = ProviderOpenRouter
	}
	return c
}

// Store reads and writes Credentials to a JSON file. Every Load goes to disk.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a Store and ensures the parent directory exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("settings store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("settings store: mkdir %s: %w", filepath.Dir(path), err)
	}
	return &Store{path: path}, nil
}

// DefaultPath returns ~/.tab_grouper/settings.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tab_grouper", "settings.json")
	}
	return filepath.Join(home, ".tab_grouper", "settings.json")
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the credentials file. A missing file yields empty Credentials.
func (s *Store) Load(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked()
}

func (s *Store) readLocked() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("settings store: read: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("settings store: unmarshal: %w", err)
	}
	return c, nil
}

// Save replaces the stored credentials.
func (s *Store) Save(ctx context.Context, c Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(c)
}

// Apply loads, applies u, saves and returns the result.
func (s *Store) Apply(ctx context.Context, u Update) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.readLocked()
	if err != nil {
		return Credentials{}, err
	}
	next := u.Apply(cur)
	if err := s.writeLocked(next); err != nil {
		return Credentials{}, err
	}
	slog.Info("settings saved", "path", s.path, "ai_provider", next.AIProvider)
	return next, nil
}

func (s *Store) writeLocked(c Credentials) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("settings store: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("settings store: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			slog.Debug("settings temp cleanup failed", "path", tmp, "error", rmErr)
		}
		return fmt.Errorf("settings store: rename: %w", err)
	}
	return nil
}

// Value returns the credential stored under its extension storage key, or ""
// for an unknown key.
func (c Credentials) Value(key string) string {
	switch key {
	case "aiProvider":
		return c.AIProvider
	case "deepseekApiKey":
		return c.DeepSeekAPIKey
	case "openrouterApiKey":
		return c.OpenRouterAPIKey
	case "openrouterModel":
		return c.OpenRouterModel
	}
	return ""
}
