package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/tabgrouper/internal/grouping"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
	"github.com/fatih/color"
)

var (
	heading = color.New(color.Bold)
	faint   = color.New(color.Faint)
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed)
)

// groupColors maps tab group colours to the closest terminal colour.
var groupColors = map[tabs.Color]color.Attribute{
	tabs.Grey:   color.FgHiBlack,
	tabs.Blue:   color.FgBlue,
	tabs.Red:    color.FgRed,
	tabs.Yellow: color.FgYellow,
	tabs.Green:  color.FgGreen,
	tabs.Pink:   color.FgHiMagenta,
	tabs.Purple: color.FgMagenta,
	tabs.Cyan:   color.FgCyan,
}

// Swatch renders a group title in its group colour.
func Swatch(title string, c tabs.Color) string {
	attr, ok := groupColors[c]
	if !ok {
		return title
	}
	return color.New(attr, color.Bold).Sprint(title)
}

// PrintReport writes a human readable run summary.
func PrintReport(w io.Writer, r grouping.Report) {
	if r.Skipped {
		faint.Fprintln(w, "No ungrouped tabs; nothing to do.")
		return
	}
	heading.Fprintf(w, "Run %s: %d ungrouped tabs\n", r.RunID, r.Ungrouped)
	for _, o := range r.Merged {
		green.Fprint(w, "  merged  ")
		fmt.Fprintf(w, "%s (group %d) +%s\n", Swatch(o.Name, tabs.Color(o.Color)), o.GroupID, joinIDs(o.TabIDs))
	}
	for _, o := range r.Created {
		green.Fprint(w, "  created ")
		fmt.Fprintf(w, "%s (group %d) %s\n", Swatch(o.Name, tabs.Color(o.Color)), o.GroupID, joinIDs(o.TabIDs))
	}
	for _, o := range r.SkippedGroups {
		yellow.Fprint(w, "  skipped ")
		fmt.Fprintf(w, "%s: %s\n", o.Name, o.Reason)
	}
	for _, o := range r.Failed {
		red.Fprint(w, "  failed  ")
		fmt.Fprintf(w, "%s: %s\n", o.Name, o.Error)
	}
}

// PrintTabs lists tabs, with ungrouped tabs numbered in classification
// order.
func PrintTabs(w io.Writer, ts []tabs.Tab, groups []tabs.TabGroup, excluded int) {
	titles := make(map[int]tabs.TabGroup, len(groups))
	for _, g := range groups {
		titles[g.ID] = g
	}
	n := 0
	for _, t := range ts {
		if g, ok := titles[t.GroupID]; ok && t.Grouped() {
			fmt.Fprintf(w, "     [%s] %s\n", Swatch(g.Title, g.Color), t.Title)
			continue
		}
		fmt.Fprintf(w, "%4d %s\n", n, t.Title)
		n++
	}
	if excluded > 0 {
		faint.Fprintf(w, "(%d tabs in non-standard windows not shown)\n", excluded)
	}
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
