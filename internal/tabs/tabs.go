// Package tabs holds the browser tab and tab group model shared by the
// inventory, classification and mutation layers.
package tabs

import "math/rand"

// NoGroup is the group id reported for a tab that belongs to no group.
const NoGroup = -1

// Window types reported by the browser. Only WindowNormal is a standard window.
const (
	WindowNormal   = "normal"
	WindowPopup    = "popup"
	WindowPanel    = "panel"
	WindowApp      = "app"
	WindowDevtools = "devtools"
)

// Window describes a browser window.
type Window struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// Standard reports whether the window is a normal browsing window.
func (w Window) Standard() bool { return w.Type == WindowNormal }

// Tab is a read-only snapshot of one browser tab.
type Tab struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	GroupID  int    `json:"group_id"`
	WindowID int    `json:"window_id"`
}

// Grouped reports whether the tab is a member of a tab group.
func (t Tab) Grouped() bool { return t.GroupID != NoGroup }

// TabGroup is a named, coloured cluster of tabs.
type TabGroup struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	Color     Color    `json:"color"`
	WindowID  int      `json:"window_id"`
	TabIDs    []int    `json:"tab_ids,omitempty"`
	TabTitles []string `json:"tab_titles,omitempty"`
}

// Color is a tab group colour tag.
type Color string

const (
	Grey   Color = "grey"
	Blue   Color = "blue"
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
	Pink   Color = "pink"
	Purple Color = "purple"
	Cyan   Color = "cyan"
)

// Palette is the fixed set of colours assigned to groups.
var Palette = []Color{Grey, Blue, Red, Yellow, Green, Pink, Purple, Cyan}

// Valid reports whether c is one of the palette colours.
func (c Color) Valid() bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

// RandomColor picks a palette colour uniformly at random.
func RandomColor() Color {
	return Palette[rand.Intn(len(Palette))]
}

// IDs returns the ids of ts in order.
func IDs(ts []Tab) []int {
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

// Titles returns the titles of ts in order.
func Titles(ts []Tab) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title
	}
	return out
}
