package main

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/daviddao/casedesk/internal/api"
	"github.com/daviddao/casedesk/internal/config"
	"github.com/daviddao/casedesk/internal/datasource"
	"github.com/daviddao/casedesk/internal/filter"
	"github.com/daviddao/casedesk/internal/logging"
	"github.com/daviddao/casedesk/internal/model"
	"github.com/daviddao/casedesk/internal/snapshot"
)

// backend is what the views need from the API client.
type backend interface {
	Classify(ctx context.Context, req model.ClassifyRequest) (model.Classification, error)
	ListCases(ctx context.Context) ([]model.Case, error)
	FilterCases(ctx context.Context, crit filter.Criteria) ([]model.Case, error)
	Do(ctx context.Context, action model.Action, id int64) (model.ActionResult, error)
	snapshot.Source
}

// retargeter is implemented by backends whose address can change at runtime.
type retargeter interface {
	SetBaseURL(raw string) error
	BaseURL() string
}

// timeoutSetter is implemented by backends whose request timeout can change
// at runtime.
type timeoutSetter interface {
	SetTimeout(d time.Duration)
}

// --- Messages ---

type classifiedMsg struct {
	result model.Classification
	err    error
}

type casesLoadedMsg struct {
	seq   uint64
	crit  filter.Criteria
	cases []model.Case
	err   error
}

type actionDoneMsg struct {
	id     int64
	action model.Action
	result model.ActionResult
	err    error
}

type statsLoadedMsg struct {
	seq  uint64
	snap *snapshot.DataSnapshot
	err  error
}

type configChangedMsg struct{}

type configReloadedMsg struct {
	cfg config.Config
	err error
}

// toastFadeMsg clears the status-bar notice if no newer one replaced it.
type toastFadeMsg struct {
	seq int
}

var toastFadeDelay = 3 * time.Second

// --- Key bindings ---

type keyMap struct {
	Quit     key.Binding
	NextView key.Binding
	PrevView key.Binding
	Submit   key.Binding
	Cases    key.Binding
	Stats    key.Binding
	Refresh  key.Binding
	Up       key.Binding
	Down     key.Binding
	Help     key.Binding
	Enter    key.Binding
	Esc      key.Binding

	// Submit form.
	NextField key.Binding
	PrevField key.Binding
	Send      key.Binding
	Cycle     key.Binding

	// Case list.
	Search         key.Binding
	StatusFilter   key.Binding
	PriorityFilter key.Binding
	CategoryFilter key.Binding
	ClearFilters   key.Binding
	Resolve        key.Binding
	Escalate       key.Binding
	Verify         key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextView: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	PrevView: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev view")),
	Submit:   key.NewBinding(key.WithKeys("f1", "1"), key.WithHelp("1/F1", "submit")),
	Cases:    key.NewBinding(key.WithKeys("f2", "2"), key.WithHelp("2/F2", "cases")),
	Stats:    key.NewBinding(key.WithKeys("f3", "3"), key.WithHelp("3/F3", "stats")),
	Refresh:  key.NewBinding(key.WithKeys("R", "f5"), key.WithHelp("R", "refresh")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Esc:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),

	NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
	Send:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "classify")),
	Cycle:     key.NewBinding(key.WithKeys("left", "right", " ", "h", "l"), key.WithHelp("←/→", "change priority")),

	Search:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	StatusFilter:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
	PriorityFilter: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority")),
	CategoryFilter: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "category")),
	ClearFilters:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")),
	Resolve:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resolve")),
	Escalate:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "escalate")),
	Verify:         key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "verify")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextView, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Cases, k.Stats, k.NextView, k.Refresh},
		{k.Send, k.NextField, k.Cycle},
		{k.Up, k.Down, k.Search, k.StatusFilter, k.PriorityFilter, k.CategoryFilter, k.ClearFilters},
		{k.Resolve, k.Escalate, k.Verify, k.Help, k.Quit},
	}
}

// contextHelp returns help text appropriate for the current view.
func (m uiModel) contextHelp() string {
	switch m.activeView {
	case viewSubmit:
		if m.submit.editing() {
			return "tab: next field | ctrl+s: classify | F2/F3: views | ctrl+c: quit"
		}
		return "tab: next field | ←/→: priority | enter: classify | 1/2/3: views | q: quit"
	case viewCases:
		if m.cases.searching {
			return "type to search | enter/esc: done | ctrl+c: quit"
		}
		return "j/k: select | s/p/c: filters | /: search | x: clear | r/e/v: resolve/escalate/verify | R: refresh | q: quit"
	default:
		return "R: reload | 1/2/3: views | tab: next | ?: help | q: quit"
	}
}

// --- Views ---

type viewID int

const (
	viewSubmit viewID = iota
	viewCases
	viewStats
	viewCount // sentinel
)

func (v viewID) String() string {
	switch v {
	case viewSubmit:
		return "Submit"
	case viewCases:
		return "Cases"
	case viewStats:
		return "Stats"
	}
	return "?"
}

// --- Model ---

type uiModel struct {
	api     backend
	log     *logrus.Entry
	watcher *datasource.Watcher

	// root is cancelled on quit so nothing in flight outlives the UI.
	root   context.Context
	cancel context.CancelFunc

	baseURL    string
	configPath string

	activeView viewID
	width      int
	height     int

	submit submitState
	cases  casesState
	stats  statsState

	spinner  spinner.Model
	help     help.Model
	showHelp bool

	toast      string
	toastIsErr bool
	toastSeq   int
}

func newModel(b backend, log *logrus.Entry, crit filter.Criteria) uiModel {
	if log == nil {
		log = discardLogger()
	}
	root, cancel := context.WithCancel(context.Background())
	m := uiModel{
		api:     b,
		log:     log,
		root:    root,
		cancel:  cancel,
		submit:  newSubmitState(),
		cases:   newCasesState(crit),
		stats:   newStatsState(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		help:    help.New(),
	}
	if r, ok := b.(retargeter); ok {
		m.baseURL = r.BaseURL()
	}
	return m
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.enterViewCmd(),
	)
}

// enterViewMsg asks Update to enter a view. Init cannot change the model,
// so the first view is entered through this message.
type enterViewMsg struct {
	view viewID
}

func (m uiModel) enterViewCmd() tea.Cmd {
	v := m.activeView
	return func() tea.Msg { return enterViewMsg{view: v} }
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.submit.setWidth(msg.Width)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case enterViewMsg:
		if msg.view != m.activeView {
			return m, nil
		}
		return m, m.enterView()

	case classifiedMsg:
		return m.handleClassified(msg)

	case casesLoadedMsg:
		return m.handleCasesLoaded(msg)

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case statsLoadedMsg:
		return m.handleStatsLoaded(msg)

	case configChangedMsg:
		path := m.configPath
		return m, func() tea.Msg {
			cfg, err := config.Load(path)
			return configReloadedMsg{cfg: cfg, err: err}
		}

	case configReloadedMsg:
		return m.handleConfigReloaded(msg)

	case toastFadeMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
			m.toastIsErr = false
		}
		return m, nil
	}

	// Cursor blink and other widget messages.
	return m.forwardToFocused(msg)
}

func (m uiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	// Text entry owns the keyboard except for a few control keys.
	if m.activeView == viewSubmit && m.submit.editing() {
		return m.handleSubmitKey(msg)
	}
	if m.activeView == viewCases && m.cases.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()
	case key.Matches(msg, keys.Submit):
		return m, m.switchView(viewSubmit)
	case key.Matches(msg, keys.Cases):
		return m, m.switchView(viewCases)
	case key.Matches(msg, keys.Stats):
		return m, m.switchView(viewStats)
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	// Tab moves between form fields on the submit view.
	if m.activeView != viewSubmit {
		switch {
		case key.Matches(msg, keys.NextView):
			return m, m.switchView((m.activeView + 1) % viewCount)
		case key.Matches(msg, keys.PrevView):
			return m, m.switchView((m.activeView + viewCount - 1) % viewCount)
		}
	}

	switch m.activeView {
	case viewSubmit:
		return m.handleSubmitKey(msg)
	case viewCases:
		return m.handleCasesKey(msg)
	case viewStats:
		return m.handleStatsKey(msg)
	}
	return m, nil
}

// quit cancels everything in flight and stops the program.
func (m uiModel) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
	return m, tea.Quit
}

// switchView leaves the current view and enters v. Leaving drops whatever
// the old view still has in flight; entering re-fetches.
func (m *uiModel) switchView(v viewID) tea.Cmd {
	if v == m.activeView {
		return nil
	}
	m.leaveView()
	m.activeView = v
	return m.enterView()
}

func (m *uiModel) leaveView() {
	switch m.activeView {
	case viewSubmit:
		m.submit.blur()
	case viewCases:
		m.cases.invalidate()
		m.cases.searching = false
		m.cases.search.Blur()
	case viewStats:
		m.stats.invalidate()
	}
}

func (m *uiModel) enterView() tea.Cmd {
	switch m.activeView {
	case viewSubmit:
		return m.submit.focusCmd()
	case viewCases:
		return m.fetchCases()
	case viewStats:
		return m.fetchStats()
	}
	return nil
}

// notify shows a transient status-bar message.
func (m *uiModel) notify(text string, isErr bool) tea.Cmd {
	m.toastSeq++
	m.toast = text
	m.toastIsErr = isErr
	seq := m.toastSeq
	return tea.Tick(toastFadeDelay, func(time.Time) tea.Msg {
		return toastFadeMsg{seq: seq}
	})
}

func (m uiModel) handleConfigReloaded(msg configReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.log.WithError(msg.err).Warn("config reload failed")
		return m, m.notify("config reload failed: "+msg.err.Error(), true)
	}
	m.applySettings(msg.cfg)

	r, ok := m.api.(retargeter)
	if !ok || msg.cfg.BaseURL == m.baseURL {
		return m, nil
	}
	if err := r.SetBaseURL(msg.cfg.BaseURL); err != nil {
		return m, m.notify(err.Error(), true)
	}
	m.baseURL = r.BaseURL()
	m.log.WithField("base_url", m.baseURL).Info("backend changed")

	// Everything on screen came from the old backend.
	m.leaveView()
	return m, tea.Batch(
		m.notify("backend: "+m.baseURL, false),
		m.enterView(),
	)
}

// applySettings applies the reloaded timeout and log level. Both take effect
// for requests and log lines from now on.
func (m *uiModel) applySettings(cfg config.Config) {
	if t, ok := m.api.(timeoutSetter); ok {
		t.SetTimeout(cfg.Timeout())
	}
	lvl, err := logging.Level(cfg.Env, cfg.LogLevel)
	if err != nil {
		m.log.WithError(err).Warn("keeping log level")
		return
	}
	if m.log.Logger.GetLevel() != lvl {
		m.log.Logger.SetLevel(lvl)
		m.log.WithField("level", lvl).Info("log level changed")
	}
}

// forwardToFocused passes non-key messages (cursor blink) to the focused
// text widget.
func (m uiModel) forwardToFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.activeView == viewSubmit:
		cmd = m.submit.updateFocused(msg)
	case m.activeView == viewCases && m.cases.searching:
		m.cases.search, cmd = m.cases.search.Update(msg)
	}
	return m, cmd
}

// errText is the user-facing text for a failed request.
func errText(err error) string {
	return api.Message(err)
}
