package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/forro/internal/formatter"
	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/repositories"
	"github.com/desertthunder/forro/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PairListView ViewState = iota
	ConfirmView
	RunView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	store        repositories.PairStore
	engine       *tasks.PlaylistEngine
	opts         tasks.RunOpts
	width        int
	height       int
	pairList     list.Model
	pairs        []models.TrackPair
	dryRun       bool
	progressChan <-chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	summary      *tasks.RunSummary
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. opts supplies the playlist id and lookup delay;
// the mode and dry-run flag are chosen interactively.
func NewModel(ctx context.Context, store repositories.PairStore, engine *tasks.PlaylistEngine, opts tasks.RunOpts) *Model {
	m := &Model{
		ctx:    ctx,
		view:   PairListView,
		store:  store,
		engine: engine,
		opts:   opts,
		help:   help.New(),
		keys:   newKeyMap(),
	}
	m.pairList = m.newPairList(nil)
	return m
}

// Init loads the record store.
func (m *Model) Init() tea.Cmd {
	return m.loadPairs()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pairList.SetSize(listSize(msg.Width, msg.Height))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PairListView:
			return m.handlePairListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == PairListView {
		m.pairList, cmd = m.pairList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPairsLoaded:
		data := msg.data.(pairsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.pairs = data.pairs
		m.pairList = m.newPairList(data.pairs)
		return m, nil

	case MsgProgressUpdate:
		if m.progressChan == nil {
			return m, nil
		}
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan)

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.summary = data.summary
		m.err = data.err
		m.progressChan = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == PairListView {
		return styles.Err(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PairListView:
		return m.renderPairList()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Err returns the last error seen by the model.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) handlePairListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pairList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.pairList, cmd = m.pairList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case m.err != nil:
		return m, nil
	case key.Matches(msg, m.keys.build):
		m.opts.Mode = tasks.ModeBuild
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.check):
		m.opts.Mode = tasks.ModeCheck
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.dryRun):
		m.dryRun = !m.dryRun
		m.pairList.Title = m.listTitle()
		return m, nil
	}

	var cmd tea.Cmd
	m.pairList, cmd = m.pairList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PairListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = RunView
		m.progress = tasks.ProgressUpdate{Message: "Starting..."}
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PairListView
		m.summary = nil
		m.err = nil
		return m, m.loadPairs()
	}
	return m, nil
}

func (m *Model) loadPairs() tea.Cmd {
	return func() tea.Msg {
		if m.store == nil {
			return pairsLoadedMsg(nil, fmt.Errorf("record store not initialized"))
		}
		pairs, err := m.store.LoadAll(m.ctx)
		return pairsLoadedMsg(pairs, err)
	}
}

// startRun launches the engine and streams its progress. The run command closes
// the channel once the engine returns, which ends the progress loop.
func (m *Model) startRun() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	m.progressChan = progress

	engine, ctx := m.engine, m.ctx
	opts := m.opts
	opts.DryRun = m.dryRun

	run := func() tea.Msg {
		defer close(progress)
		if engine == nil {
			return runCompleteMsg(nil, fmt.Errorf("playlist engine not initialized"))
		}
		summary, err := engine.Run(ctx, opts, progress)
		return runCompleteMsg(summary, err)
	}
	return tea.Batch(run, waitForProgress(progress))
}

func waitForProgress(ch <-chan tasks.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) newPairList(pairs []models.TrackPair) list.Model {
	l := list.New(pairItems(pairs), list.NewDefaultDelegate(), 0, 0)
	l.SetSize(listSize(m.width, m.height))
	l.Title = m.listTitle()
	return l
}

func (m *Model) listTitle() string {
	title := fmt.Sprintf("Track pairs (%d)", len(m.pairs))
	if m.dryRun {
		title += " [dry run]"
	}
	return title
}

func listSize(width, height int) (int, int) {
	return max(width-4, 0), max(height-8, 0)
}

func (m *Model) pendingCount() int {
	n := 0
	for _, p := range m.pairs {
		if !p.Resolved() {
			n++
		}
	}
	return n
}

func (m *Model) renderPairList() string {
	helpKeys := []key.Binding{m.keys.build, m.keys.check, m.keys.dryRun, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.pairList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	title := styles.Title(fmt.Sprintf("Run playlist %s?", m.opts.Mode))

	var b strings.Builder
	fmt.Fprintf(&b, "\nPairs: %d (%d pending)\n", len(m.pairs), m.pendingCount())
	if m.opts.Mode == tasks.ModeBuild {
		playlist := m.opts.PlaylistID
		if playlist == "" {
			playlist = "(not configured)"
		}
		fmt.Fprintf(&b, "Playlist: %s\n", playlist)
	}
	if m.dryRun {
		b.WriteString(styles.Warn("Dry run: nothing will be added or saved") + "\n")
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderRun() string {
	title := styles.Title(fmt.Sprintf("Playlist %s", m.opts.Mode))

	var phase string
	switch m.progress.Phase {
	case tasks.LoadStore:
		phase = "Loading track pairs..."
	case tasks.ReconcilePair:
		phase = fmt.Sprintf("Reconciling pairs (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Complete:
		phase = "Finishing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.summary == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Run failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.Err(msg), helpView)
	}

	title := styles.OK("✓ Run complete")
	if m.err != nil {
		title = styles.Warn(fmt.Sprintf("Run stopped: %v", m.err))
	}
	return fmt.Sprintf("%s\n\n%s\n%s", title, string(formatter.SummaryToText(m.summary)), helpView)
}
