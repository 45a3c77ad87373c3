// Package theme holds the bar's color palettes and turns them into
// lipgloss styles.
package theme

import (
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is a named palette. Colors are "#rrggbb" hex strings.
type Theme struct {
	Name       string
	Background string
	Foreground string
	Dim        string // separators, idle segments
	Accent     string // popup border and titles
	Warn       string
	Urgent     string
}

var registry = map[string]Theme{}

func init() {
	for _, t := range builtins() {
		registry[strings.ToLower(t.Name)] = t
	}
}

// Get returns a named theme. Unknown names fall back to the default.
func Get(name string) Theme {
	if t, ok := registry[strings.ToLower(name)]; ok {
		return t
	}
	return registry["default"]
}

// Exists reports whether name is a built-in theme.
func Exists(name string) bool {
	_, ok := registry[strings.ToLower(name)]
	return ok
}

// Names returns the built-in theme names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidHex reports whether s is a "#rrggbb" color.
func ValidHex(s string) bool { return hexColor.MatchString(s) }

// Styles are the rendered pieces of the bar.
type Styles struct {
	Bar       lipgloss.Style
	Segment   lipgloss.Style
	Urgent    lipgloss.Style
	Separator lipgloss.Style
	Popup     lipgloss.Style
	Title     lipgloss.Style
}

// Styles builds lipgloss styles from the palette.
func (t Theme) Styles() Styles {
	segment := lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color(t.Foreground))
	return Styles{
		Bar:       lipgloss.NewStyle().Padding(0, 1),
		Segment:   segment,
		Urgent:    segment.Foreground(lipgloss.Color(t.Urgent)).Bold(true),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Dim)),
		Popup: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Accent)).
			Padding(0, 1),
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Accent)),
	}
}
