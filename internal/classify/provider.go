package classify

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"gopkg.in/yaml.v3"
)

// Provider describes one chat-completion backend. Providers share request
// and response handling and differ only in these fields.
type Provider struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	// Model is sent as-is when ModelKey is empty, and is the fallback when
	// the credential under ModelKey is blank.
	Model string `yaml:"model,omitempty"`
	// KeyKey and ModelKey name credentials by their storage key.
	KeyKey   string `yaml:"-"`
	ModelKey string `yaml:"-"`
}

// Target is a fully resolved provider for a single call.
type Target struct {
	Provider string
	Endpoint string
	Model    string
	APIKey   string
}

// ProviderTable maps provider names to their configuration.
type ProviderTable map[string]Provider

// DefaultProviders returns the built-in DeepSeek and OpenRouter entries.
func DefaultProviders() ProviderTable {
	return ProviderTable{
		settings.ProviderDeepSeek: {
			Name:     settings.ProviderDeepSeek,
			Endpoint: "https://api.deepseek.com/v1/chat/completions",
			Model:    "deepseek-chat",
			KeyKey:   "deepseekApiKey",
		},
		settings.ProviderOpenRouter: {
			Name:     settings.ProviderOpenRouter,
			Endpoint: "https://openrouter.ai/api/v1/chat/completions",
			KeyKey:   "openrouterApiKey",
			ModelKey: "openrouterModel",
		},
	}
}

type providerFile struct {
	Providers []Provider `yaml:"providers"`
}

// LoadProviderTable reads endpoint and model overrides from a YAML file:
//
//	providers:
//	  - name: deepseek
//	    endpoint: http://localhost:8080/v1/chat/completions
//
// Only built-in provider names are accepted.
func LoadProviderTable(path string) (ProviderTable, error) {
	table := DefaultProviders()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("provider table: %w", err)
	}
	var f providerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("provider table: %w", err)
	}
	for i, p := range f.Providers {
		base, ok := table[p.Name]
		if !ok {
			return nil, fmt.Errorf("provider table: providers[%d]: unknown provider %q", i, p.Name)
		}
		if p.Endpoint != "" {
			base.Endpoint = p.Endpoint
		}
		if p.Model != "" {
			base.Model = p.Model
		}
		table[p.Name] = base
	}
	return table, nil
}

// Names returns the sorted provider names.
func (t ProviderTable) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve picks the active provider from c and fills in its key and model.
func (t ProviderTable) Resolve(c settings.Credentials) (Target, error) {
	name := strings.TrimSpace(c.AIProvider)
	if name == "" {
		return Target{}, &ConfigurationError{Missing: "aiProvider"}
	}
	p, ok := t[name]
	if !ok {
		return Target{}, &ConfigurationError{
			Missing: "aiProvider",
			Cause:   fmt.Errorf("unsupported provider %q (want one of %s)", name, strings.Join(t.Names(), ", ")),
		}
	}

	key := strings.TrimSpace(c.Value(p.KeyKey))
	if key == "" {
		return Target{}, &ConfigurationError{Missing: p.KeyKey}
	}

	model := p.Model
	if p.ModelKey != "" {
		if m := strings.TrimSpace(c.Value(p.ModelKey)); m != "" {
			model = m
		}
	}
	if model == "" {
		return Target{}, &ConfigurationError{Missing: p.ModelKey}
	}

	return Target{Provider: p.Name, Endpoint: p.Endpoint, Model: model, APIKey: key}, nil
}
