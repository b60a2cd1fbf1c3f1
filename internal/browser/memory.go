package browser

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

// Memory is an in-process Browser with the same grouping semantics as the
// extension APIs: grouping merges into the first listed tab's group, moves
// tabs into that group's window, and groups left empty disappear.
type Memory struct {
	mu        sync.Mutex
	windows   []tabs.Window
	tabs      []tabs.Tab
	groups    map[int]*tabs.TabGroup
	nextGroup int

	// Fail, when set, is consulted before every mutation. A non-nil error
	// aborts the mutation.
	Fail func(op string, ids []int) error

	calls []string
}

// NewMemory creates a Memory browser holding copies of ws, ts and gs.
func NewMemory(ws []tabs.Window, ts []tabs.Tab, gs []tabs.TabGroup) *Memory {
	m := &Memory{
		windows:   append([]tabs.Window(nil), ws...),
		tabs:      append([]tabs.Tab(nil), ts...),
		groups:    make(map[int]*tabs.TabGroup),
		nextGroup: 1,
	}
	for _, g := range gs {
		g := g
		g.TabIDs, g.TabTitles = nil, nil
		m.groups[g.ID] = &g
		if g.ID >= m.nextGroup {
			m.nextGroup = g.ID + 1
		}
	}
	return m
}

// Calls returns the mutation log, e.g. "group [1 2] -> 7".
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Group returns a group by id with its members filled in.
func (m *Memory) Group(id int) (tabs.TabGroup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return tabs.TabGroup{}, false
	}
	return m.withMembersLocked(*g), true
}

// CloseTab removes a tab, as if the user closed it.
func (m *Memory) CloseTab(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tabs {
		if t.ID == id {
			m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
			break
		}
	}
	m.pruneLocked()
}

func (m *Memory) Windows(ctx context.Context) ([]tabs.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tabs.Window(nil), m.windows...), nil
}

func (m *Memory) Tabs(ctx context.Context) ([]tabs.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tabs.Tab(nil), m.tabs...), nil
}

func (m *Memory) TabGroups(ctx context.Context) ([]tabs.TabGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.groups))
	for id := range m.groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]tabs.TabGroup, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.groups[id])
	}
	return out, nil
}

func (m *Memory) TabsInGroup(ctx context.Context, groupID int) ([]tabs.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tabs.Tab
	for _, t := range m.tabs {
		if t.GroupID == groupID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) GroupTabs(ctx context.Context, tabIDs []int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(tabIDs) == 0 {
		return 0, newError(CodeValidation, "at least one tab id is required", nil)
	}
	if m.Fail != nil {
		if err := m.Fail("group", tabIDs); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := make([]int, len(tabIDs))
	for i, id := range tabIDs {
		j := m.indexLocked(id)
		if j < 0 {
			return 0, newError(CodeTabNotFound, fmt.Sprintf("no tab with id: %d", id), nil)
		}
		idx[i] = j
	}

	first := m.tabs[idx[0]]
	groupID := first.GroupID
	if groupID == tabs.NoGroup {
		groupID = m.nextGroup
		m.nextGroup++
		m.groups[groupID] = &tabs.TabGroup{ID: groupID, Color: tabs.Grey, WindowID: first.WindowID}
	}
	windowID := m.groups[groupID].WindowID
	for _, j := range idx {
		m.tabs[j].GroupID = groupID
		m.tabs[j].WindowID = windowID
	}
	m.pruneLocked()
	m.calls = append(m.calls, fmt.Sprintf("group %v -> %d", tabIDs, groupID))
	return groupID, nil
}

func (m *Memory) UpdateGroup(ctx context.Context, groupID int, title string, color tabs.Color) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !color.Valid() {
		return newError(CodeValidation, "unsupported group color: "+string(color), nil)
	}
	if m.Fail != nil {
		if err := m.Fail("update", []int{groupID}); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return newError(CodeGroupNotFound, fmt.Sprintf("no group with id: %d", groupID), nil)
	}
	g.Title = title
	g.Color = color
	m.calls = append(m.calls, fmt.Sprintf("update %d %q %s", groupID, title, color))
	return nil
}

func (m *Memory) indexLocked(id int) int {
	for i, t := range m.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (m *Memory) pruneLocked() {
	used := make(map[int]bool)
	for _, t := range m.tabs {
		used[t.GroupID] = true
	}
	for id := range m.groups {
		if !used[id] {
			delete(m.groups, id)
		}
	}
}

func (m *Memory) withMembersLocked(g tabs.TabGroup) tabs.TabGroup {
	g.TabIDs, g.TabTitles = nil, nil
	for _, t := range m.tabs {
		if t.GroupID == g.ID {
			g.TabIDs = append(g.TabIDs, t.ID)
			g.TabTitles = append(g.TabTitles, t.Title)
		}
	}
	return g
}
