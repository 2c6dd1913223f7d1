package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/sahilm/fuzzy"

	"github.com/five82/contentstream/internal/filters"
	"github.com/five82/contentstream/internal/stream"
)

const pickerRows = 10

// pickerItem is one selectable tag.
type pickerItem struct {
	Criterion filters.Criterion
	Label     string
	Count     int
}

// picker is the fuzzy tag selector overlay.
type picker struct {
	input    textinput.Model
	all      []pickerItem
	filtered []pickerItem
	selected int
}

func newPicker() picker {
	ti := textinput.New()
	ti.Placeholder = "type to search tags"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	return picker{input: ti}
}

// load replaces the candidates with the tags of groups and focuses the input.
// Groups of exclusive properties lead with an "all" item that clears the
// property.
func (p *picker) load(groups []stream.FilterGroup, policy filters.Policy) {
	p.all = p.all[:0]
	for _, g := range groups {
		label := g.Label
		if label == "" {
			label = g.Property
		}
		if policy.Exclusive(g.Property) && len(g.Tags) > 0 {
			p.all = append(p.all, pickerItem{
				Criterion: filters.Criterion{Property: g.Property},
				Label:     label + ": all",
			})
		}
		for _, t := range g.Tags {
			p.all = append(p.all, pickerItem{
				Criterion: filters.Criterion{Property: g.Property, Tag: t.Tag},
				Label:     label + ": " + t.Tag,
				Count:     t.Count,
			})
		}
	}
	p.input.SetValue("")
	p.input.Focus()
	p.filter()
}

// all reports whether the item clears its property.
func (i pickerItem) all() bool {
	return i.Criterion.Tag == ""
}

func (i pickerItem) line(active filters.Set) string {
	c := i.Criterion
	if i.all() {
		mark := "  "
		if len(active.Tags(c.Property)) == 0 {
			mark = "* "
		}
		return mark + i.Label
	}
	mark := "  "
	if active.Contains(c.Property, c.Tag) {
		mark = "* "
	}
	return fmt.Sprintf("%s%s (%d)", mark, i.Label, i.Count)
}

func (p *picker) blur() {
	p.input.Blur()
}

func (p *picker) filter() {
	query := strings.TrimSpace(p.input.Value())
	if query == "" {
		p.filtered = append(p.filtered[:0], p.all...)
		p.selected = 0
		return
	}

	search := make([]string, len(p.all))
	for i, item := range p.all {
		search[i] = item.Label + " " + item.Criterion.String()
	}
	matches := fuzzy.Find(query, search)

	p.filtered = p.filtered[:0]
	for _, m := range matches {
		p.filtered = append(p.filtered, p.all[m.Index])
	}
	p.selected = 0
}

func (p *picker) move(delta int) {
	if len(p.filtered) == 0 {
		p.selected = 0
		return
	}
	p.selected = min(max(p.selected+delta, 0), len(p.filtered)-1)
}

// current returns the highlighted item.
func (p *picker) current() (pickerItem, bool) {
	if p.selected < 0 || p.selected >= len(p.filtered) {
		return pickerItem{}, false
	}
	return p.filtered[p.selected], true
}

func (p *picker) view(styles Styles, active filters.Set, width int) string {
	var b strings.Builder
	b.WriteString(p.input.View())
	b.WriteString("\n")

	if len(p.filtered) == 0 {
		b.WriteString(styles.Muted.Render("no matching tags"))
		return styles.Picker.Width(width).Render(b.String())
	}

	start := 0
	if p.selected >= pickerRows {
		start = p.selected - pickerRows + 1
	}
	end := min(start+pickerRows, len(p.filtered))
	for i := start; i < end; i++ {
		item := p.filtered[i]
		line := item.line(active)
		if i == p.selected {
			line = styles.Selected.Render(line)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	if len(p.filtered) > end {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render(fmt.Sprintf("… %d more", len(p.filtered)-end)))
	}
	return styles.Picker.Width(width).Render(b.String())
}
