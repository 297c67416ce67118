// Package tui provides the terminal dashboard for buildwatch.
// It renders the monitor's snapshots and turns key presses into engine
// actions; all state lives in the engine.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"buildwatch/src/broker"
	"buildwatch/src/contracts"
	"buildwatch/src/monitor"
	"buildwatch/src/provider"
)

const (
	// toastTTL is how long a transition toast stays on screen.
	toastTTL = 10 * time.Second

	// clockInterval refreshes relative times.
	clockInterval = time.Second
)

// Controller is the engine surface the dashboard drives.
type Controller interface {
	Snapshot() monitor.Snapshot
	Subscribe() (<-chan monitor.Snapshot, func())
	AddBuild(ctx context.Context, url string) (provider.Build, error)
	RemoveBuild(id string) bool
	ClearCompleted() int
	Poll(ctx context.Context) error
	StartMonitoring(ctx context.Context) error
	StopMonitoring()
}

// inputMode is what the text input is collecting, if anything.
type inputMode int

const (
	inputNone inputMode = iota
	inputAddURL
	inputSearch
)

// snapshotMsg carries a snapshot published by the engine.
type snapshotMsg monitor.Snapshot

// toastMsg carries a transition event from the broker.
type toastMsg contracts.TransitionEvent

// actionMsg reports the outcome of an engine action.
type actionMsg struct {
	text string
	err  error
}

// clockMsg re-renders relative times.
type clockMsg time.Time

// MainModel is the Bubble Tea model for the dashboard.
type MainModel struct {
	ctx         context.Context
	ctrl        Controller
	snapshots   <-chan monitor.Snapshot
	unsubscribe func()
	toasts      <-chan broker.Message

	snap monitor.Snapshot

	header         Header
	listView       View
	detailViewport viewport.Model
	progress       ProgressModel
	input          textinput.Model
	mode           inputMode
	searchQuery    string
	detailFocused  bool

	toast   string
	toastAt time.Time
	status  string
	isError bool

	width  int
	height int
	ready  bool
	styles *StyleConfig
	now    func() time.Time
}

// NewModel creates the dashboard over ctrl. toasts may be nil; when set it
// should carry TransitionEvent JSON from the transitions topic.
func NewModel(ctx context.Context, ctrl Controller, toasts <-chan broker.Message) MainModel {
	return NewModelWithStyles(ctx, ctrl, toasts, DefaultStyles())
}

// NewModelWithStyles creates the dashboard with custom styles.
func NewModelWithStyles(ctx context.Context, ctrl Controller, toasts <-chan broker.Message, styles *StyleConfig) MainModel {
	snapshots, unsubscribe := ctrl.Subscribe()

	input := textinput.New()
	input.CharLimit = 256

	m := MainModel{
		ctx:            ctx,
		ctrl:           ctrl,
		snapshots:      snapshots,
		unsubscribe:    unsubscribe,
		toasts:         toasts,
		header:         NewHeaderWithStyles(styles),
		listView:       NewView(styles),
		detailViewport: viewport.New(0, 0),
		progress:       NewProgressModel(),
		input:          input,
		styles:         styles,
		now:            time.Now,
	}
	m.applySnapshot(ctrl.Snapshot())
	return m
}

// Init starts listening for snapshots and toasts.
func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.snapshots),
		waitForToast(m.toasts),
		SpinnerTick(),
		clockTick(),
	)
}

func waitForSnapshot(ch <-chan monitor.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func waitForToast(ch <-chan broker.Message) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		for msg := range ch {
			var ev contracts.TransitionEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				continue
			}
			return toastMsg(ev)
		}
		return nil
	}
}

func clockTick() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

// applySnapshot stores a snapshot and refreshes everything derived from it.
func (m *MainModel) applySnapshot(snap monitor.Snapshot) {
	m.snap = snap
	m.header.SetSnapshot(snap)
	if snap.HasFetched {
		m.progress.Finish()
	} else if snap.IsMonitoring {
		m.progress.SetStage("Fetching builds...")
	}
	m.applyFilter()
}

// Update handles messages and updates the model state.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case snapshotMsg:
		m.applySnapshot(monitor.Snapshot(msg))
		return m, waitForSnapshot(m.snapshots)

	case toastMsg:
		m.toast = toastText(contracts.TransitionEvent(msg))
		m.toastAt = m.now()
		return m, waitForToast(m.toasts)

	case actionMsg:
		m.setStatus(msg.text, msg.err)
		return m, nil

	case clockMsg:
		if m.toast != "" && m.now().Sub(m.toastAt) > toastTTL {
			m.toast = ""
		}
		return m, clockTick()

	case SpinnerTickMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}
	}

	// Navigation falls through to the focused component.
	if m.detailFocused {
		var cmd tea.Cmd
		m.detailViewport, cmd = m.detailViewport.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		before, _ := m.listView.GetSelectedItem()
		var cmd tea.Cmd
		m.listView, cmd = m.listView.Update(msg)
		cmds = append(cmds, cmd)
		if after, ok := m.listView.GetSelectedItem(); ok && after.Build.ID != before.Build.ID {
			m.updateDetailContent(after)
			m.detailViewport.GotoTop()
		}
	}

	return m, tea.Batch(cmds...)
}

// handleKey runs the dashboard shortcuts. handled is false for keys that
// should reach the list or viewport.
func (m MainModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.unsubscribe()
		return m, tea.Quit, true

	case "esc":
		if m.detailFocused {
			m.detailFocused = false
		} else if m.searchQuery != "" {
			m.searchQuery = ""
			m.header.SetSearch("", false)
			m.applyFilter()
		}
		return m, nil, true

	case "enter":
		if _, ok := m.listView.GetSelectedItem(); ok {
			m.detailFocused = true
		}
		return m, nil, true

	case "a":
		m.beginInput(inputAddURL, "https://buildkite.com/org/pipeline/builds/123")
		return m, textinput.Blink, true

	case "/":
		m.beginInput(inputSearch, "pipeline, branch or message")
		m.input.SetValue(m.searchQuery)
		m.header.SetSearch(m.searchQuery, true)
		return m, textinput.Blink, true

	case "d":
		item, ok := m.listView.GetSelectedItem()
		if !ok {
			return m, nil, true
		}
		m.ctrl.RemoveBuild(item.Build.ID)
		m.setStatus(fmt.Sprintf("Removed %s", item.Title()), nil)
		return m, nil, true

	case "c":
		n := m.ctrl.ClearCompleted()
		m.setStatus(fmt.Sprintf("Cleared %d completed builds", n), nil)
		return m, nil, true

	case "r":
		m.setStatus("Refreshing...", nil)
		return m, m.pollCmd(), true

	case "s":
		if m.snap.IsMonitoring {
			m.ctrl.StopMonitoring()
			m.setStatus("Monitoring stopped", nil)
			return m, nil, true
		}
		m.setStatus("Starting monitoring...", nil)
		return m, m.startCmd(), true

	case "o":
		if item, ok := m.listView.GetSelectedItem(); ok {
			m.setStatus(item.URL(), nil)
		}
		return m, nil, true
	}
	return m, nil, false
}

func (m *MainModel) beginInput(mode inputMode, placeholder string) {
	m.mode = mode
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.Focus()
}

// updateInput feeds keys to the text input while adding a URL or searching.
func (m MainModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.unsubscribe()
		return m, tea.Quit

	case "esc":
		if m.mode == inputSearch {
			m.header.SetSearch(m.searchQuery, false)
		}
		m.mode = inputNone
		m.input.Blur()
		return m, nil

	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.mode = inputNone
		m.input.Blur()

		if mode == inputSearch {
			m.searchQuery = value
			m.header.SetSearch(value, false)
			m.applyFilter()
			return m, nil
		}
		if value == "" {
			return m, nil
		}
		m.setStatus("Adding "+value+"...", nil)
		return m, m.addCmd(value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == inputSearch {
		m.searchQuery = m.input.Value()
		m.header.SetSearch(m.searchQuery, true)
		m.applyFilter()
	}
	return m, cmd
}

func (m *MainModel) setStatus(text string, err error) {
	m.isError = err != nil
	if err != nil {
		m.status = describeError(err)
		return
	}
	m.status = text
}

func (m MainModel) addCmd(url string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		build, err := ctrl.AddBuild(ctx, url)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("Added %s #%d (%s)", Item{Build: build}.Pipeline(), build.Number, build.State.DisplayName())}
	}
}

func (m MainModel) pollCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		err := ctrl.Poll(ctx)
		switch {
		case errors.Is(err, monitor.ErrCycleInProgress):
			return actionMsg{text: "Refresh already running"}
		case err != nil:
			return actionMsg{err: err}
		}
		return actionMsg{text: "Refreshed"}
	}
}

func (m MainModel) startCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		if err := ctrl.StartMonitoring(ctx); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: "Monitoring started"}
	}
}

// describeError renders an action error for the status line.
func describeError(err error) string {
	if errors.Is(err, monitor.ErrNotConfigured) {
		return "Not configured: set BUILDKITE_API_TOKEN and an organization"
	}
	var userErr *provider.UserError
	if errors.As(provider.WrapError(err), &userErr) {
		return userErr.Message
	}
	return err.Error()
}

// toastText renders a transition event as one line.
func toastText(ev contracts.TransitionEvent) string {
	text := ev.Title
	if ev.Subtitle != "" {
		text += " (" + ev.Subtitle + ")"
	}
	return text + ": " + ev.Body
}
