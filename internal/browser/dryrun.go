package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

// dryRunGroupBase is the first synthetic id handed out for planned groups.
const dryRunGroupBase = 1 << 20

// DryRun reads from an underlying Browser but only records mutations.
type DryRun struct {
	inner Browser

	mu      sync.Mutex
	next    int
	planned []string
}

// NewDryRun wraps b.
func NewDryRun(b Browser) *DryRun {
	return &DryRun{inner: b, next: dryRunGroupBase}
}

// Planned returns the mutations that would have been applied.
func (d *DryRun) Planned() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.planned...)
}

func (d *DryRun) Windows(ctx context.Context) ([]tabs.Window, error) { return d.inner.Windows(ctx) }
func (d *DryRun) Tabs(ctx context.Context) ([]tabs.Tab, error)       { return d.inner.Tabs(ctx) }
func (d *DryRun) TabGroups(ctx context.Context) ([]tabs.TabGroup, error) {
	return d.inner.TabGroups(ctx)
}
func (d *DryRun) TabsInGroup(ctx context.Context, groupID int) ([]tabs.Tab, error) {
	return d.inner.TabsInGroup(ctx, groupID)
}

// GroupTabs reports the group the tabs would join without changing anything.
func (d *DryRun) GroupTabs(ctx context.Context, tabIDs []int) (int, error) {
	if len(tabIDs) == 0 {
		return 0, newError(CodeValidation, "at least one tab id is required", nil)
	}
	all, err := d.inner.Tabs(ctx)
	if err != nil {
		return 0, err
	}
	groupID := tabs.NoGroup
	for _, t := range all {
		if t.ID == tabIDs[0] {
			groupID = t.GroupID
			break
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if groupID == tabs.NoGroup {
		groupID = d.next
		d.next++
	}
	d.planned = append(d.planned, fmt.Sprintf("group %v -> %d", tabIDs, groupID))
	slog.Info("dry run: group tabs", "tab_ids", tabIDs, "group_id", groupID)
	return groupID, nil
}

func (d *DryRun) UpdateGroup(ctx context.Context, groupID int, title string, color tabs.Color) error {
	if !color.Valid() {
		return newError(CodeValidation, "unsupported group color: "+string(color), nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.planned = append(d.planned, fmt.Sprintf("update %d %q %s", groupID, title, color))
	slog.Info("dry run: update group", "group_id", groupID, "title", title, "color", color)
	return nil
}
