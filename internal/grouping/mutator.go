package grouping

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/classify"
	"github.com/dgnsrekt/tabgrouper/internal/events"
	"github.com/dgnsrekt/tabgrouper/internal/inventory"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

// Mutator applies a classification result to the browser. Phase 1 merges
// tabs into existing groups, phase 2 creates new groups.
type Mutator struct {
	browser   browser.Browser
	inventory *inventory.Inventory
	logger    *slog.Logger
	events    events.Publisher
	pickColor func() tabs.Color
}

// NewMutator returns a Mutator with random colours and no event sink.
func NewMutator(b browser.Browser, inv *inventory.Inventory, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		browser:   b,
		inventory: inv,
		logger:    logger,
		events:    events.Discard,
		pickColor: tabs.RandomColor,
	}
}

// Apply runs both phases. Index i in result refers to ungrouped[i]. A failed
// group is recorded in the report and the next group is still processed.
func (m *Mutator) Apply(ctx context.Context, runID string, ungrouped []tabs.Tab, existing []tabs.TabGroup, result *classify.Result) Report {
	report := Report{RunID: runID, Ungrouped: len(ungrouped)}
	if result == nil {
		return report
	}

	for _, name := range sortedNames(result.ExistingGroups) {
		m.record(&report, m.merge(ctx, runID, name, result.ExistingGroups[name], ungrouped, existing))
	}

	// Ids claimed by any existing-group entry never go to a new group, even
	// when the merge itself was skipped or failed.
	claimed := make(map[int]bool)
	for _, indices := range result.ExistingGroups {
		for _, i := range indices {
			if i >= 0 && i < len(ungrouped) {
				claimed[ungrouped[i].ID] = true
			}
		}
	}
	for _, name := range sortedNames(result.NewGroups) {
		m.record(&report, m.create(ctx, runID, name, result.NewGroups[name], ungrouped, claimed))
	}
	return report
}

func (m *Mutator) merge(ctx context.Context, runID, name string, indices []int, ungrouped []tabs.Tab, existing []tabs.TabGroup) GroupOutcome {
	out := GroupOutcome{Name: name, Phase: PhaseMerge}

	idx := slices.IndexFunc(existing, func(g tabs.TabGroup) bool { return g.Title == name })
	if idx < 0 {
		out.Reason = "no existing group with this title"
		return out
	}
	group := existing[idx]
	out.GroupID = group.ID

	added := m.resolve(runID, name, indices, ungrouped)
	if len(added) == 0 {
		out.Reason = "no tabs assigned"
		return out
	}

	added, err := m.inventory.StandardResidents(ctx, added)
	if err != nil {
		return m.failed(out, err)
	}
	if len(added) == 0 {
		out.Reason = "assigned tabs are no longer open"
		return out
	}

	members, err := m.browser.TabsInGroup(ctx, group.ID)
	if err != nil {
		return m.failed(out, fmt.Errorf("list members: %w", err))
	}
	kept, err := m.inventory.StandardResidents(ctx, tabs.IDs(members))
	if err != nil {
		return m.failed(out, err)
	}

	// Existing members go first so the union joins this group rather than
	// forming a new one.
	union := kept
	for _, id := range added {
		if !slices.Contains(union, id) {
			union = append(union, id)
		}
	}
	return m.groupAndStyle(ctx, out, union, group.Title)
}

func (m *Mutator) create(ctx context.Context, runID, name string, indices []int, ungrouped []tabs.Tab, claimed map[int]bool) GroupOutcome {
	out := GroupOutcome{Name: name, Phase: PhaseCreate}

	var ids []int
	for _, id := range m.resolve(runID, name, indices, ungrouped) {
		if claimed[id] {
			m.logger.Debug("grouping drop tab already assigned", "run_id", runID, "group", name, "tab_id", id)
			continue
		}
		ids = append(ids, id)
		claimed[id] = true
	}
	if len(ids) == 0 {
		out.Reason = "no unassigned tabs"
		return out
	}

	ids, err := m.inventory.StandardResidents(ctx, ids)
	if err != nil {
		return m.failed(out, err)
	}
	if len(ids) == 0 {
		out.Reason = "assigned tabs are no longer open"
		return out
	}
	return m.groupAndStyle(ctx, out, ids, name)
}

func (m *Mutator) groupAndStyle(ctx context.Context, out GroupOutcome, ids []int, title string) GroupOutcome {
	out.TabIDs = ids
	groupID, err := m.browser.GroupTabs(ctx, ids)
	if err != nil {
		return m.failed(out, fmt.Errorf("group tabs: %w", err))
	}
	out.GroupID = groupID

	color := m.pickColor()
	out.Color = string(color)
	if err := m.browser.UpdateGroup(ctx, groupID, title, color); err != nil {
		return m.failed(out, fmt.Errorf("update group: %w", err))
	}
	return out
}

// resolve maps indices to tab ids. Out-of-range indices are skipped with a
// warning and repeats are collapsed.
func (m *Mutator) resolve(runID, name string, indices []int, ungrouped []tabs.Tab) []int {
	seen := make(map[int]bool, len(indices))
	ids := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(ungrouped) {
			m.logger.Warn("grouping skip out-of-range index", "run_id", runID, "group", name, "index", i, "tabs", len(ungrouped))
			continue
		}
		if seen[i] {
			continue
		}
		seen[i] = true
		ids = append(ids, ungrouped[i].ID)
	}
	return ids
}

func (m *Mutator) failed(out GroupOutcome, err error) GroupOutcome {
	out.Err = &MutationError{Group: out.Name, Phase: out.Phase, Cause: err}
	out.Error = out.Err.Error()
	return out
}

func (m *Mutator) record(report *Report, out GroupOutcome) {
	evt := events.Event{RunID: report.RunID, Data: map[string]any{
		"name":     out.Name,
		"phase":    out.Phase,
		"group_id": out.GroupID,
		"tab_ids":  out.TabIDs,
	}}
	switch {
	case out.Err != nil:
		report.Failed = append(report.Failed, out)
		evt.Type = events.GroupFailed
		evt.Data["error"] = out.Error
		m.logger.Error("grouping group failed", "run_id", report.RunID, "phase", out.Phase, "group", out.Name, "error", out.Err.Cause)
	case out.Reason != "":
		report.SkippedGroups = append(report.SkippedGroups, out)
		evt.Type = events.GroupSkipped
		evt.Data["reason"] = out.Reason
		m.logger.Info("grouping group skipped", "run_id", report.RunID, "phase", out.Phase, "group", out.Name, "reason", out.Reason)
	case out.Phase == PhaseMerge:
		report.Merged = append(report.Merged, out)
		evt.Type = events.GroupMerged
		evt.Data["color"] = out.Color
		m.logger.Info("grouping merged into existing group", "run_id", report.RunID, "group", out.Name, "group_id", out.GroupID, "tabs", len(out.TabIDs), "color", out.Color)
	default:
		report.Created = append(report.Created, out)
		evt.Type = events.GroupCreated
		evt.Data["color"] = out.Color
		m.logger.Info("grouping created group", "run_id", report.RunID, "group", out.Name, "group_id", out.GroupID, "tabs", len(out.TabIDs), "color", out.Color)
	}
	m.events.Publish(evt)
}

func sortedNames(m map[string][]int) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
