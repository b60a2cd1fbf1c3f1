package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/classify"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

func newProvider(t *testing.T, content string, hits *atomic.Int32) classify.ProviderTable {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	table := classify.DefaultProviders()
	p := table[settings.ProviderDeepSeek]
	p.Endpoint = srv.URL
	table[settings.ProviderDeepSeek] = p
	return table
}

func newStore(t *testing.T, c settings.Credentials) *settings.Store {
	t.Helper()
	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Save(context.Background(), c); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return store
}

func TestGroupTabsThroughProvider(t *testing.T) {
	var hits atomic.Int32
	providers := newProvider(t, "```json\n{\"newGroups\":{\"开发\":[0,1],\"美食\":[2]},\"existingGroups\":{}}\n```", &hits)
	store := newStore(t, settings.Credentials{AIProvider: settings.ProviderDeepSeek, DeepSeekAPIKey: "sk-test"})
	b := browser.NewMemory([]tabs.Window{{ID: 1, Type: tabs.WindowNormal}}, []tabs.Tab{
		{ID: 1, Title: "GitHub PR #1", GroupID: tabs.NoGroup, WindowID: 1},
		{ID: 2, Title: "GitHub PR #2", GroupID: tabs.NoGroup, WindowID: 1},
		{ID: 3, Title: "Recipe: Pasta", GroupID: tabs.NoGroup, WindowID: 1},
	}, nil)

	svc := NewService(b, store, providers, Options{})
	report, err := svc.GroupTabs(context.Background())
	if err != nil {
		t.Fatalf("GroupTabs() error = %v", err)
	}
	if len(report.Created) != 2 {
		t.Fatalf("report.Created = %+v; want 2 groups", report.Created)
	}
	if hits.Load() != 1 {
		t.Fatalf("provider hits = %d; want 1", hits.Load())
	}

	groups, err := svc.ExistingGroups(context.Background())
	if err != nil {
		t.Fatalf("ExistingGroups() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("ExistingGroups() = %+v; want 2", groups)
	}
}

func TestGroupTabsMissingKeyMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	providers := newProvider(t, `{"newGroups":{}}`, &hits)
	store := newStore(t, settings.Credentials{AIProvider: settings.ProviderDeepSeek})
	b := browser.NewMemory([]tabs.Window{{ID: 1, Type: tabs.WindowNormal}}, []tabs.Tab{
		{ID: 1, Title: "a", GroupID: tabs.NoGroup, WindowID: 1},
	}, nil)

	_, err := NewService(b, store, providers, Options{}).GroupTabs(context.Background())
	if err == nil {
		t.Fatal("GroupTabs() error = nil; want configuration error")
	}
	if hits.Load() != 0 {
		t.Fatalf("provider hits = %d; want 0", hits.Load())
	}
	if len(b.Calls()) != 0 {
		t.Fatalf("mutations = %v; want none", b.Calls())
	}
}

func TestUpdateSettingsPersists(t *testing.T) {
	store := newStore(t, settings.Credentials{})
	svc := NewService(browser.NewMemory(nil, nil, nil), store, classify.DefaultProviders(), Options{})

	key := "sk-new"
	if _, err := svc.UpdateSettings(context.Background(), settings.Update{DeepSeekAPIKey: &key, DeepSeekDefault: true}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	got, err := svc.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if got.AIProvider != settings.ProviderDeepSeek || got.DeepSeekAPIKey != key {
		t.Fatalf("LoadSettings() = %+v", got)
	}
	if names := svc.ProviderNames(); len(names) != 2 {
		t.Fatalf("ProviderNames() = %v", names)
	}
}

func TestLoadProvidersDefault(t *testing.T) {
	table, err := LoadProviders("")
	if err != nil {
		t.Fatalf("LoadProviders() error = %v", err)
	}
	if _, ok := table[settings.ProviderOpenRouter]; !ok {
		t.Fatalf("LoadProviders() = %v; want built-ins", table)
	}
}
