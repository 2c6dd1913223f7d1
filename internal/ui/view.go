package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/contentstream/internal/filters"
)

// renderGrid draws the rows visible at the snapshot's scroll offset. The
// result is exactly snap.Height lines.
func renderGrid(snap Snapshot, styles Styles, spin string) string {
	if snap.Height <= 0 {
		return ""
	}
	if len(snap.Slots) == 0 {
		return lipgloss.Place(snap.Width, snap.Height, lipgloss.Center, lipgloss.Center,
			styles.Muted.Render("nothing to show"))
	}

	perRow := snap.PerRow()
	first := snap.ScrollTop / snap.CardHeight
	skip := snap.ScrollTop % snap.CardHeight
	visibleRows := snap.Height/snap.CardHeight + 2

	var lines []string
	for row := first; row < first+visibleRows; row++ {
		from := row * perRow
		if from >= len(snap.Slots) {
			break
		}
		to := min(from+perRow, len(snap.Slots))
		cards := make([]string, 0, to-from)
		for _, slot := range snap.Slots[from:to] {
			cards = append(cards, renderCard(slot, snap, styles, spin))
		}
		lines = append(lines, strings.Split(lipgloss.JoinHorizontal(lipgloss.Top, cards...), "\n")...)
	}

	if skip < len(lines) {
		lines = lines[skip:]
	} else {
		lines = nil
	}
	if len(lines) > snap.Height {
		lines = lines[:snap.Height]
	}
	for len(lines) < snap.Height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func renderCard(slot Slot, snap Snapshot, styles Styles, spin string) string {
	// Border takes two cells each way, padding two columns.
	innerW := max(snap.CardWidth-4, 1)
	innerH := max(snap.CardHeight-2, 1)

	if slot.Placeholder() {
		return styles.Placeholder.
			Width(snap.CardWidth - 2).
			Height(innerH).
			Render(spin + " loading")
	}

	a := slot.Article
	var parts []string
	parts = append(parts, styles.Title.Render(truncate(a.Title, innerW)))
	if a.Summary != "" && innerH > 2 {
		parts = append(parts, styles.Summary.Render(truncate(a.Summary, innerW)))
	}
	if tags := renderTags(a.Tags, snap.Active, styles, innerW); tags != "" {
		parts = append(parts, tags)
	}
	if len(parts) > innerH {
		parts = parts[:innerH]
	}
	return styles.Card.
		Width(snap.CardWidth - 2).
		Height(innerH).
		MaxHeight(snap.CardHeight).
		Render(strings.Join(parts, "\n"))
}

func renderTags(tags filters.Set, active filters.Set, styles Styles, width int) string {
	var b strings.Builder
	used := 0
	for _, t := range tags {
		label := t.Tag
		w := lipgloss.Width(label) + 1
		if used+w > width {
			break
		}
		if used > 0 {
			b.WriteString(" ")
		}
		if active.Contains(t.Property, t.Tag) {
			b.WriteString(styles.ActiveTag.Render(label))
		} else {
			b.WriteString(styles.Tag.Render(label))
		}
		used += w
	}
	return b.String()
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}
