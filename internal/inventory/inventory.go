// Package inventory reads the tab and tab group state a grouping run works
// from. Only tabs in standard windows are assignable.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

// Inventory queries a Browser.
type Inventory struct {
	browser browser.Browser
	logger  *slog.Logger
}

// Snapshot is the assignable tab set plus how many tabs were left out
// because they live in popup, app, panel or devtools windows.
type Snapshot struct {
	Tabs     []tabs.Tab `json:"tabs"`
	Excluded int        `json:"excluded"`
}

// New returns an Inventory over b. A nil logger uses slog.Default().
func New(b browser.Browser, logger *slog.Logger) *Inventory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inventory{browser: b, logger: logger}
}

// Snapshot lists tabs in standard windows.
func (i *Inventory) Snapshot(ctx context.Context) (Snapshot, error) {
	standard, err := i.standardWindows(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	all, err := i.browser.Tabs(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list tabs: %w", err)
	}

	snap := Snapshot{Tabs: make([]tabs.Tab, 0, len(all))}
	for _, t := range all {
		if standard[t.WindowID] {
			snap.Tabs = append(snap.Tabs, t)
			continue
		}
		snap.Excluded++
	}
	if snap.Excluded > 0 {
		i.logger.Debug("inventory excluded tabs outside standard windows", "excluded", snap.Excluded)
	}
	return snap, nil
}

// ListAssignableTabs returns the tabs of Snapshot.
func (i *Inventory) ListAssignableTabs(ctx context.Context) ([]tabs.Tab, error) {
	snap, err := i.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Tabs, nil
}

// ListUngrouped keeps tabs that belong to no group, preserving order. The
// order is the index space of a classification request.
func ListUngrouped(ts []tabs.Tab) []tabs.Tab {
	out := make([]tabs.Tab, 0, len(ts))
	for _, t := range ts {
		if !t.Grouped() {
			out = append(out, t)
		}
	}
	return out
}

// ListExistingGroups returns every group in every window with its members
// resolved, one TabsInGroup query per group.
func (i *Inventory) ListExistingGroups(ctx context.Context) ([]tabs.TabGroup, error) {
	groups, err := i.browser.TabGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tab groups: %w", err)
	}
	for n := range groups {
		members, err := i.browser.TabsInGroup(ctx, groups[n].ID)
		if err != nil {
			return nil, fmt.Errorf("list members of group %d: %w", groups[n].ID, err)
		}
		groups[n].TabIDs = tabs.IDs(members)
		groups[n].TabTitles = tabs.Titles(members)
	}
	return groups, nil
}

// StandardResidents returns the subset of ids that are still open in a
// standard window, in input order.
func (i *Inventory) StandardResidents(ctx context.Context, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	snap, err := i.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[int]bool, len(snap.Tabs))
	for _, t := range snap.Tabs {
		present[t.ID] = true
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if present[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (i *Inventory) standardWindows(ctx context.Context) (map[int]bool, error) {
	windows, err := i.browser.Windows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	out := make(map[int]bool, len(windows))
	for _, w := range windows {
		if w.Standard() {
			out[w.ID] = true
		}
	}
	return out, nil
}
