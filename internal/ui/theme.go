package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is a named palette.
type Theme struct {
	Name string

	Background string
	Surface    string
	Border     string
	Focus      string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Tag     string
	Active  string
	Warning string
	Danger  string
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Header      lipgloss.Style
	Footer      lipgloss.Style
	Card        lipgloss.Style
	Placeholder lipgloss.Style
	Title       lipgloss.Style
	Summary     lipgloss.Style
	Tag         lipgloss.Style
	ActiveTag   lipgloss.Style
	Muted       lipgloss.Style
	Warning     lipgloss.Style
	Danger      lipgloss.Style
	Picker      lipgloss.Style
	Selected    lipgloss.Style
}

// Styles builds the styles for t.
func (t Theme) Styles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		Placeholder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Faint)).
			Foreground(lipgloss.Color(t.Faint)).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),
		Summary: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),
		Tag: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Tag)),
		ActiveTag: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Background)).
			Background(lipgloss.Color(t.Active)),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),
		Danger: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),
		Picker: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Focus)).
			Background(lipgloss.Color(t.Surface)).
			Padding(0, 1),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Background)).
			Background(lipgloss.Color(t.Focus)),
	}
}

var themes = map[string]Theme{
	"Nightfox": {
		Name:       "Nightfox",
		Background: "#131a24",
		Surface:    "#192330",
		Border:     "#39506d",
		Focus:      "#719cd6",
		Text:       "#cdcecf",
		Muted:      "#738091",
		Faint:      "#71839b",
		Accent:     "#719cd6",
		Tag:        "#63cdcf",
		Active:     "#81b29a",
		Warning:    "#dbc074",
		Danger:     "#c94f6d",
	},
	"Kanagawa": {
		Name:       "Kanagawa",
		Background: "#16161D",
		Surface:    "#1F1F28",
		Border:     "#54546D",
		Focus:      "#7E9CD8",
		Text:       "#DCD7BA",
		Muted:      "#C8C093",
		Faint:      "#727169",
		Accent:     "#7E9CD8",
		Tag:        "#7FB4CA",
		Active:     "#98BB6C",
		Warning:    "#E6C384",
		Danger:     "#E46876",
	},
	"Slate": {
		Name:       "Slate",
		Background: "#020617",
		Surface:    "#0f172a",
		Border:     "#334155",
		Focus:      "#38bdf8",
		Text:       "#f1f5f9",
		Muted:      "#94a3b8",
		Faint:      "#64748b",
		Accent:     "#38bdf8",
		Tag:        "#06b6d4",
		Active:     "#22c55e",
		Warning:    "#f59e0b",
		Danger:     "#ef4444",
	},
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

// GetTheme returns a theme by name, Nightfox when unknown.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["Nightfox"]
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}
