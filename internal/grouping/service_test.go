package grouping

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/classify"
	"github.com/dgnsrekt/tabgrouper/internal/events"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
	"github.com/google/uuid"
)

type stubClassifier struct {
	result *classify.Result
	err    error
	before func()

	calls    int
	titles   []string
	existing []classify.ExistingGroup
}

func (s *stubClassifier) Classify(_ context.Context, titles []string, existing []classify.ExistingGroup) (*classify.Result, error) {
	s.calls++
	s.titles = titles
	s.existing = existing
	if s.before != nil {
		s.before()
	}
	return s.result, s.err
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var normalWindow = []tabs.Window{{ID: 1, Type: tabs.WindowNormal}}

func ungroupedTab(id int, title string) tabs.Tab {
	return tabs.Tab{ID: id, Title: title, GroupID: tabs.NoGroup, WindowID: 1}
}

func groupByTitle(t *testing.T, m *browser.Memory, title string) tabs.TabGroup {
	t.Helper()
	groups, err := m.TabGroups(context.Background())
	if err != nil {
		t.Fatalf("TabGroups() error = %v", err)
	}
	for _, g := range groups {
		if g.Title == title {
			full, _ := m.Group(g.ID)
			return full
		}
	}
	t.Fatalf("no group titled %q in %+v", title, groups)
	return tabs.TabGroup{}
}

func TestGroupTabsEndToEnd(t *testing.T) {
	m := browser.NewMemory(normalWindow, []tabs.Tab{
		ungroupedTab(101, "GitHub PR #1"),
		ungroupedTab(102, "GitHub PR #2"),
		ungroupedTab(103, "Recipe: Pasta"),
	}, nil)
	c := &stubClassifier{result: &classify.Result{
		NewGroups:      map[string][]int{"开发": {0, 1}, "美食": {2}},
		ExistingGroups: map[string][]int{},
	}}
	rec := &recorder{}
	svc := NewService(m, c, WithPublisher(rec))

	report, err := svc.GroupTabs(context.Background())
	if err != nil {
		t.Fatalf("GroupTabs() error = %v", err)
	}

	if _, err := uuid.Parse(report.RunID); err != nil {
		t.Fatalf("RunID = %q; want uuid", report.RunID)
	}
	if c.calls != 1 {
		t.Fatalf("classifier calls = %d; want 1", c.calls)
	}
	if want := []string{"GitHub PR #1", "GitHub PR #2", "Recipe: Pasta"}; !reflect.DeepEqual(c.titles, want) {
		t.Fatalf("classifier titles = %v; want %v", c.titles, want)
	}
	if len(report.Created) != 2 || len(report.Merged) != 0 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v; want two created groups only", report)
	}

	dev := groupByTitle(t, m, "开发")
	if !reflect.DeepEqual(dev.TabIDs, []int{101, 102}) {
		t.Fatalf("开发 members = %v; want [101 102]", dev.TabIDs)
	}
	food := groupByTitle(t, m, "美食")
	if !reflect.DeepEqual(food.TabIDs, []int{103}) {
		t.Fatalf("美食 members = %v; want [103]", food.TabIDs)
	}
	for _, g := range []tabs.TabGroup{dev, food} {
		if !slices.Contains(tabs.Palette, g.Color) {
			t.Fatalf("group %q colour %q not in palette", g.Title, g.Color)
		}
	}

	wantEvents := []string{events.RunStarted, events.RunClassified, events.GroupCreated, events.GroupCreated, events.RunCompleted}
	if got := rec.types(); !reflect.DeepEqual(got, wantEvents) {
		t.Fatalf("events = %v; want %v", got, wantEvents)
	}
}

func TestGroupTabsNoUngroupedIsNoOp(t *testing.T) {
	m := browser.NewMemory(normalWindow, []tabs.Tab{
		{ID: 1, Title: "a", GroupID: 3, WindowID: 1},
		{ID: 2, Title: "popup", GroupID: tabs.NoGroup, WindowID: 9},
	}, []tabs.TabGroup{{ID: 3, Title: "x", Color: tabs.Red, WindowID: 1}})
	c := &stubClassifier{result: &classify.Result{NewGroups: map[string][]int{"x": {0}}}}
	svc := NewService(m, c)

	report, err := svc.GroupTabs(context.Background())
	if err != nil {
		t.Fatalf("GroupTabs() error = %v", err)
	}
	if !report.Skipped {
		t.Fatalf("report.Skipped = false; want true")
	}
	if c.calls != 0 {
		t.Fatalf("classifier calls = %d; want 0", c.calls)
	}
	if calls := m.Calls(); len(calls) != 0 {
		t.Fatalf("mutations = %v; want none", calls)
	}
}

func TestGroupTabsClassifyErrorMutatesNothing(t *testing.T) {
	m := browser.NewMemory(normalWindow, []tabs.Tab{ungroupedTab(1, "a")}, nil)
	c := &stubClassifier{err: &classify.ConfigurationError{Missing: "deepseekApiKey"}}
	rec := &recorder{}
	svc := NewService(m, c, WithPublisher(rec))

	_, err := svc.GroupTabs(context.Background())
	var cfgErr *classify.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("GroupTabs() error = %v; want ConfigurationError", err)
	}
	if calls := m.Calls(); len(calls) != 0 {
		t.Fatalf("mutations = %v; want none", calls)
	}
	if got := rec.types(); got[len(got)-1] != events.RunFailed {
		t.Fatalf("last event = %s; want %s", got[len(got)-1], events.RunFailed)
	}
}

func TestGroupTabsPassesExistingGroupsToClassifier(t *testing.T) {
	m := browser.NewMemory(normalWindow, []tabs.Tab{
		{ID: 11, Title: "Go docs", GroupID: 7, WindowID: 1},
		ungroupedTab(20, "pkg.go.dev"),
	}, []tabs.TabGroup{{ID: 7, Title: "文档", Color: tabs.Cyan, WindowID: 1}})
	c := &stubClassifier{result: &classify.Result{ExistingGroups: map[string][]int{"文档": {0}}}}
	svc := NewService(m, c, WithColorPicker(func() tabs.Color { return tabs.Purple }))

	report, err := svc.GroupTabs(context.Background())
	if err != nil {
		t.Fatalf("GroupTabs() error = %v", err)
	}
	want := []classify.ExistingGroup{{Title: "文档", MemberTitles: []string{"Go docs"}}}
	if !reflect.DeepEqual(c.existing, want) {
		t.Fatalf("classifier existing = %+v; want %+v", c.existing, want)
	}
	if len(report.Merged) != 1 || report.Merged[0].GroupID != 7 {
		t.Fatalf("report.Merged = %+v; want merge into group 7", report.Merged)
	}
	wantCalls := []string{"group [11 20] -> 7", `update 7 "文档" purple`}
	if got := m.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Fatalf("Calls() = %v; want %v", got, wantCalls)
	}
}

func TestGroupTabsResidencyRecheck(t *testing.T) {
	m := browser.NewMemory(normalWindow, []tabs.Tab{
		ungroupedTab(1, "a"),
		ungroupedTab(2, "b"),
		ungroupedTab(3, "c"),
	}, nil)
	c := &stubClassifier{
		result: &classify.Result{NewGroups: map[string][]int{"A": {0, 1}, "B": {2}}},
		before: func() { m.CloseTab(2); m.CloseTab(3) },
	}
	svc := NewService(m, c)

	report, err := svc.GroupTabs(context.Background())
	if err != nil {
		t.Fatalf("GroupTabs() error = %v", err)
	}
	if len(report.Created) != 1 || !reflect.DeepEqual(report.Created[0].TabIDs, []int{1}) {
		t.Fatalf("report.Created = %+v; want A with tab 1", report.Created)
	}
	if len(report.SkippedGroups) != 1 || report.SkippedGroups[0].Name != "B" {
		t.Fatalf("report.SkippedGroups = %+v; want B", report.SkippedGroups)
	}
}

func TestServiceWithDryRunLeavesBrowserUntouched(t *testing.T) {
	m := browser.NewMemory(normalWindow, []tabs.Tab{ungroupedTab(1, "a"), ungroupedTab(2, "b")}, nil)
	dry := browser.NewDryRun(m)
	c := &stubClassifier{result: &classify.Result{NewGroups: map[string][]int{"A": {0, 1}}}}

	report, err := NewService(dry, c).GroupTabs(context.Background())
	if err != nil {
		t.Fatalf("GroupTabs() error = %v", err)
	}
	if len(report.Created) != 1 {
		t.Fatalf("report.Created = %+v; want one planned group", report.Created)
	}
	if len(m.Calls()) != 0 {
		t.Fatalf("browser mutated in dry run: %v", m.Calls())
	}
	if planned := dry.Planned(); len(planned) != 2 || !strings.HasPrefix(planned[0], "group [1 2]") {
		t.Fatalf("Planned() = %v", planned)
	}
}
