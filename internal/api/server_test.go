package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/events"
	"github.com/dgnsrekt/tabgrouper/internal/grouping"
	"github.com/dgnsrekt/tabgrouper/internal/inventory"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

type stubService struct {
	report    grouping.Report
	groupErr  error
	runs      int
	runCtxErr error
	snapErr   error
	creds     settings.Credentials
	lastApply *settings.Update
}

func (s *stubService) GroupTabs(ctx context.Context) (grouping.Report, error) {
	s.runs++
	s.runCtxErr = ctx.Err()
	return s.report, s.groupErr
}

func (s *stubService) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	if s.snapErr != nil {
		return inventory.Snapshot{}, s.snapErr
	}
	return inventory.Snapshot{
		Tabs: []tabs.Tab{
			{ID: 1, Title: "a", GroupID: tabs.NoGroup, WindowID: 1},
			{ID: 2, Title: "b", GroupID: 3, WindowID: 1},
		},
		Excluded: 4,
	}, nil
}

func (s *stubService) ExistingGroups(ctx context.Context) ([]tabs.TabGroup, error) {
	return []tabs.TabGroup{{ID: 3, Title: "开发", Color: tabs.Blue, WindowID: 1, TabIDs: []int{2}}}, nil
}

func (s *stubService) LoadSettings(ctx context.Context) (settings.Credentials, error) {
	return s.creds, nil
}

func (s *stubService) UpdateSettings(ctx context.Context, u settings.Update) (settings.Credentials, error) {
	s.lastApply = &u
	s.creds = u.Apply(s.creds)
	return s.creds, nil
}

func (s *stubService) ProviderNames() []string {
	return []string{settings.ProviderDeepSeek, settings.ProviderOpenRouter}
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, out
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	w, _ := do(t, h, http.MethodGet, "/docs", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
}

func TestMessageGroupTabs(t *testing.T) {
	svc := &stubService{report: grouping.Report{RunID: "r1", Created: []grouping.GroupOutcome{{Name: "开发", Phase: grouping.PhaseCreate}}}}
	h := NewServer(svc, nil)

	w, body := do(t, h, http.MethodPost, "/api/v1/message", `{"action":"groupTabs"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["success"] != true {
		t.Fatalf("success = %v; want true", body["success"])
	}
	report, _ := body["report"].(map[string]any)
	if report["run_id"] != "r1" {
		t.Fatalf("report = %v", body["report"])
	}
	if svc.runs != 1 {
		t.Fatalf("runs = %d; want 1", svc.runs)
	}
}

func TestMessageGroupTabsOutlivesCaller(t *testing.T) {
	svc := &stubService{report: grouping.Report{RunID: "r2"}}
	h := NewServer(svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/message", strings.NewReader(`{"action":"groupTabs"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if svc.runs != 1 {
		t.Fatalf("runs = %d; want 1 (status %d: %s)", svc.runs, w.Code, w.Body.String())
	}
	if svc.runCtxErr != nil {
		t.Fatalf("run context error = %v; want the run detached from the request", svc.runCtxErr)
	}
}

func TestMessageGroupTabsFailure(t *testing.T) {
	svc := &stubService{groupErr: errors.New("classify: configuration: missing deepseekApiKey")}
	h := NewServer(svc, nil)

	w, body := do(t, h, http.MethodPost, "/api/v1/message", `{"action":"groupTabs"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["success"] != false || !strings.Contains(body["error"].(string), "deepseekApiKey") {
		t.Fatalf("body = %v; want success false with error text", body)
	}
}

func TestMessageUnknownAction(t *testing.T) {
	svc := &stubService{}
	h := NewServer(svc, nil)

	w, _ := do(t, h, http.MethodPost, "/api/v1/message", `{"action":"closeTabs"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	if svc.runs != 0 {
		t.Fatalf("runs = %d; want 0", svc.runs)
	}
}

func TestContextMenu(t *testing.T) {
	svc := &stubService{}
	h := NewServer(svc, nil)

	for _, id := range []string{"ai-group-tabs", "ai-group-tabs-action"} {
		w, body := do(t, h, http.MethodPost, "/api/v1/context-menu/"+id, "")
		if w.Code != http.StatusOK || body["success"] != true {
			t.Fatalf("%s: status %d body %v", id, w.Code, body)
		}
	}
	w, body := do(t, h, http.MethodPost, "/api/v1/context-menu/open-options", "")
	if w.Code != http.StatusOK || body["ignored"] != true {
		t.Fatalf("other menu item: status %d body %v; want ignored", w.Code, body)
	}
	if svc.runs != 2 {
		t.Fatalf("runs = %d; want 2", svc.runs)
	}
}

func TestListTabs(t *testing.T) {
	h := NewServer(&stubService{}, nil)

	w, body := do(t, h, http.MethodGet, "/api/v1/tabs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["ungrouped"] != float64(1) || body["excluded"] != float64(4) {
		t.Fatalf("body = %v", body)
	}
	if groups := body["groups"].([]any); len(groups) != 1 {
		t.Fatalf("groups = %v", groups)
	}
}

func TestListTabsMapsBrowserErrors(t *testing.T) {
	h := NewServer(&stubService{snapErr: &browser.CodedError{Code: browser.CodeCDPUnavailable, Message: "connect to CDP failed"}}, nil)

	w, _ := do(t, h, http.MethodGet, "/api/v1/tabs", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d; want 502", w.Code)
	}
}

func TestSettingsMaskedAndUpdate(t *testing.T) {
	svc := &stubService{creds: settings.Credentials{AIProvider: "deepseek", DeepSeekAPIKey: "sk-abcdef1234"}}
	h := NewServer(svc, nil)

	_, body := do(t, h, http.MethodGet, "/api/v1/settings", "")
	if body["deepseekApiKey"] != "*********1234" {
		t.Fatalf("deepseekApiKey = %v; want masked", body["deepseekApiKey"])
	}

	w, body := do(t, h, http.MethodPut, "/api/v1/settings", `{"openrouterApiKey":"or-key-9876","openrouterModel":"openai/gpt-4o-mini","openrouterDefaultProvider":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["aiProvider"] != "openrouter" || body["openrouterApiKey"] != "*******9876" {
		t.Fatalf("body = %v", body)
	}
	if svc.creds.OpenRouterAPIKey != "or-key-9876" {
		t.Fatalf("stored key = %q; want unmasked value stored", svc.creds.OpenRouterAPIKey)
	}
}

func TestSettingsRejectsUnknownProvider(t *testing.T) {
	svc := &stubService{}
	h := NewServer(svc, nil)

	w, _ := do(t, h, http.MethodPut, "/api/v1/settings", `{"aiProvider":"anthropic"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	if svc.lastApply != nil {
		t.Fatal("UpdateSettings called for unknown provider")
	}
}

func TestHealth(t *testing.T) {
	w, body := do(t, NewServer(&stubService{}, nil), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", w.Code, body)
	}
}

func TestHealthReportsEventSubscribers(t *testing.T) {
	broker := events.NewBroker()
	id, _ := broker.Subscribe()
	defer broker.Unsubscribe(id)

	_, body := do(t, NewServer(&stubService{}, broker), http.MethodGet, "/health", "")
	if body["event_subscribers"] != float64(1) {
		t.Fatalf("event_subscribers = %v; want 1", body["event_subscribers"])
	}
}
