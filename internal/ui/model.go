package ui

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/five82/contentstream/internal/coordinator"
	"github.com/five82/contentstream/internal/events"
	"github.com/five82/contentstream/internal/filters"
	"github.com/five82/contentstream/internal/prefs"
	"github.com/five82/contentstream/internal/viewport"
)

var (
	_ coordinator.Renderer = (*Board)(nil)
	_ viewport.Layout      = (*Board)(nil)
)

// Controller is the part of the update coordinator the UI drives.
type Controller interface {
	Bootstrap(ctx context.Context, spec string) error
	Toggle(ctx context.Context, property, tag string) error
	ClearFilters(ctx context.Context) error
	Reload(ctx context.Context) error
	Locked() bool
}

// Signals receives raw scroll and resize notifications.
type Signals interface {
	Scroll()
	Resize()
}

// Options configures the UI.
type Options struct {
	Context    context.Context
	Board      *Board
	Controller Controller
	Signals    Signals
	Events     <-chan events.Event
	// Hash is the location-style filter spec applied on start.
	Hash      string
	ThemeName string
	PrefsPath string
	// Policy marks the properties whose picker groups offer an "all" item.
	Policy filters.Policy
	Logger zerolog.Logger
}

type eventMsg struct{ event events.Event }

type actionMsg struct {
	action string
	err    error
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx       context.Context
	board     *Board
	ctrl      Controller
	signals   Signals
	events    <-chan events.Event
	hash      string
	prefsPath string
	policy    filters.Policy
	logger    zerolog.Logger

	theme   Theme
	styles  Styles
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	picker  picker

	width      int
	height     int
	showHelp   bool
	showPicker bool
	status     string
	statusErr  bool
}

// New creates the model. Board, Controller and Signals are required.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := GetTheme(opts.ThemeName)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:       ctx,
		board:     opts.Board,
		ctrl:      opts.Controller,
		signals:   opts.Signals,
		events:    opts.Events,
		hash:      opts.Hash,
		prefsPath: opts.PrefsPath,
		policy:    opts.Policy,
		logger:    opts.Logger,
		theme:     theme,
		styles:    theme.Styles(),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   sp,
		picker:    newPicker(),
		status:    "loading…",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.spinner.Tick,
		waitForEvent(m.events),
		m.run("load", func(ctx context.Context) error { return m.ctrl.Bootstrap(ctx, m.hash) }),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.board.SetSize(msg.Width, m.bodyHeight())
		m.signals.Resize()
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitForEvent(m.events)

	case actionMsg:
		m.handleAction(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showPicker {
		return m.handlePickerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.board.SetSize(m.width, m.bodyHeight())
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.styles = m.theme.Styles()
		if m.prefsPath != "" {
			if err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = m.theme.Name }); err != nil {
				m.logger.Warn().Err(err).Msg("save preferences")
			}
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.scroll(-1)
	case key.Matches(msg, m.keys.Down):
		m.scroll(1)
	case key.Matches(msg, m.keys.PageUp):
		m.scroll(-max(m.bodyHeight(), 1))
	case key.Matches(msg, m.keys.PageDown):
		m.scroll(max(m.bodyHeight(), 1))
	case key.Matches(msg, m.keys.Top):
		if m.board.ScrollTo(0) {
			m.signals.Scroll()
		}
	case key.Matches(msg, m.keys.Bottom):
		if m.board.ScrollTo(math.MaxInt32) {
			m.signals.Scroll()
		}
	case key.Matches(msg, m.keys.Filters):
		m.picker.load(m.board.Snapshot().Groups, m.policy)
		m.showPicker = true
	case key.Matches(msg, m.keys.Clear):
		m.setStatus("clearing filters…", false)
		return m, m.run("clear", m.ctrl.ClearFilters)
	case key.Matches(msg, m.keys.Reload):
		m.setStatus("reloading…", false)
		return m, m.run("reload", m.ctrl.Reload)
	}
	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		m.showPicker = false
		m.picker.blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		item, ok := m.picker.current()
		m.showPicker = false
		m.picker.blur()
		if !ok {
			return m, nil
		}
		c := item.Criterion
		if item.all() {
			m.setStatus("showing all "+c.Property+"…", false)
		} else {
			m.setStatus("applying "+c.String()+"…", false)
		}
		return m, m.run("filter", func(ctx context.Context) error { return m.ctrl.Toggle(ctx, c.Property, c.Tag) })
	case msg.Type == tea.KeyUp || msg.Type == tea.KeyCtrlP:
		m.picker.move(-1)
		return m, nil
	case msg.Type == tea.KeyDown || msg.Type == tea.KeyCtrlN:
		m.picker.move(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.picker.input, cmd = m.picker.input.Update(msg)
	m.picker.filter()
	return m, cmd
}

func (m *Model) handleEvent(ev events.Event) {
	switch e := ev.(type) {
	case *events.ContentUpdateEvent:
		m.setStatus(fmt.Sprintf("%d articles · %d filters", e.LastIndex+1, len(e.Filters)), false)
	case *events.PageLoadedEvent:
		m.setStatus(fmt.Sprintf("loaded %d–%d", e.Start, e.End), false)
	case *events.FetchFailedEvent:
		m.setStatus("fetch failed: "+e.Err.Error(), true)
	}
}

func (m *Model) handleAction(msg actionMsg) {
	switch {
	case msg.err == nil:
	case errors.Is(msg.err, coordinator.ErrLocked):
		m.setStatus("update in progress, try again", true)
	default:
		m.setStatus(msg.action+" failed: "+msg.err.Error(), true)
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) scroll(delta int) {
	if m.board.ScrollBy(delta) {
		m.signals.Scroll()
	}
}

func (m Model) bodyHeight() int {
	footer := 1
	if m.showHelp {
		footer = lipgloss.Height(m.help.FullHelpView(m.keys.FullHelp()))
	}
	return max(m.height-1-footer, 0)
}

// run wraps a blocking controller call as a command.
func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(ctx)}
	}
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading…"
	}
	snap := m.board.Snapshot()

	header := m.renderHeader(snap.Active)
	var body string
	if m.showPicker {
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center,
			m.picker.view(m.styles, snap.Active, min(m.width-4, 60)))
	} else {
		body = renderGrid(snap, m.styles, m.spinner.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderFooter())
}

func (m Model) renderHeader(active filters.Set) string {
	lock := ""
	if m.ctrl.Locked() {
		lock = " " + m.spinner.View()
	}
	spec := "no filters"
	if len(active) > 0 {
		spec = filters.FormatSpec(active)
	}
	left := "contentstream" + lock
	right := spec
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return m.styles.Header.Width(m.width).Render(left + spaces(gap) + right)
}

func (m Model) renderFooter() string {
	if m.showHelp {
		return m.help.FullHelpView(m.keys.FullHelp())
	}
	status := m.status
	if m.statusErr {
		status = m.styles.Danger.Render(status)
	}
	hints := m.help.ShortHelpView(m.keys.ShortHelp())
	gap := max(m.width-lipgloss.Width(status)-lipgloss.Width(hints)-2, 1)
	return m.styles.Footer.Width(m.width).Render(status + spaces(gap) + hints)
}
