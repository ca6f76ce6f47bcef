package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/daviddao/casedesk/internal/api"
	"github.com/daviddao/casedesk/internal/filter"
	"github.com/daviddao/casedesk/internal/model"
)

type casesState struct {
	crit filter.Criteria
	seq  filter.Sequencer

	// cancelFetch aborts the list request in flight, if any.
	cancelFetch context.CancelFunc

	phase    model.Phase
	err      error
	rows     []model.Case
	loadedAt time.Time

	// served is the last successful server response, before the search
	// narrowed it, and servedCrit the criteria it was fetched with.
	served     []model.Case
	servedCrit filter.Criteria
	cursor   int

	// pending holds the action in flight per case id. It is replaced, never
	// mutated, so a copy of the model never shares it with another.
	pending map[int64]model.Action

	search    textinput.Model
	searching bool

	// categories offered by the category filter: the known ones plus any
	// the backend has returned.
	categories []string
}

func newCasesState(crit filter.Criteria) casesState {
	ti := textinput.New()
	ti.Placeholder = "search descriptions"
	ti.Prompt = "/ "
	ti.CharLimit = 200
	ti.Width = 40
	ti.SetValue(crit.Search)

	cats := append([]string(nil), model.Categories...)
	if crit.Category != "" && !slices.Contains(cats, crit.Category) {
		cats = append(cats, crit.Category)
	}
	return casesState{
		crit:       crit,
		search:     ti,
		categories: cats,
	}
}

// invalidate drops the request in flight. A response that still arrives
// carries a stale sequence number and is ignored.
func (c *casesState) invalidate() {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.seq.Next()
	if c.phase == model.PhaseLoading {
		c.phase = model.PhaseIdle
	}
}

func (c casesState) selected() (model.Case, bool) {
	if c.cursor < 0 || c.cursor >= len(c.rows) {
		return model.Case{}, false
	}
	return c.rows[c.cursor], true
}

func (c *casesState) learnCategories(cases []model.Case) {
	for _, cs := range cases {
		if cs.Category != "" && !slices.Contains(c.categories, cs.Category) {
			c.categories = append(c.categories, cs.Category)
		}
	}
}

func withPending(p map[int64]model.Action, id int64, a model.Action) map[int64]model.Action {
	out := make(map[int64]model.Action, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[id] = a
	return out
}

func withoutPending(p map[int64]model.Action, id int64) map[int64]model.Action {
	out := make(map[int64]model.Action, len(p))
	for k, v := range p {
		if k != id {
			out[k] = v
		}
	}
	return out
}

// fetchCases starts a list request for the current criteria, cancelling
// the previous one.
func (m *uiModel) fetchCases() tea.Cmd {
	c := &m.cases
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	ctx, cancel := context.WithCancel(m.root)
	c.cancelFetch = cancel
	seq := c.seq.Next()
	c.phase = model.PhaseLoading
	c.err = nil

	crit, b := c.crit, m.api
	return func() tea.Msg {
		cases, err := queryCases(ctx, b, crit)
		return casesLoadedMsg{seq: seq, crit: crit, cases: cases, err: err}
	}
}

// queryCases asks for the full list when no server-side criteria are set
// and for the filtered list otherwise.
func queryCases(ctx context.Context, b backend, crit filter.Criteria) ([]model.Case, error) {
	if len(crit.Query()) == 0 {
		return b.ListCases(ctx)
	}
	return b.FilterCases(ctx, crit)
}

func (m uiModel) handleCasesLoaded(msg casesLoadedMsg) (tea.Model, tea.Cmd) {
	c := &m.cases
	if !c.seq.Current(msg.seq) {
		m.log.WithField("seq", msg.seq).Debug("dropping stale case list")
		return m, nil
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}

	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		m.log.WithError(msg.err).Warn("case list fetch failed")
		c.phase = model.PhaseFailed
		c.err = msg.err
		return m, m.notify("load cases: "+errText(msg.err), true)
	}

	c.phase = model.PhaseSucceeded
	c.served, c.servedCrit = msg.cases, msg.crit
	c.rows = msg.crit.Apply(msg.cases)
	c.loadedAt = time.Now()
	c.learnCategories(msg.cases)
	if c.cursor >= len(c.rows) {
		c.cursor = max(0, len(c.rows)-1)
	}
	return m, nil
}

// startAction runs resolve/escalate/verify on the selected row. Only
// Pending rows accept actions, and each row has at most one in flight.
func (m uiModel) startAction(a model.Action) (tea.Model, tea.Cmd) {
	c := &m.cases
	row, ok := c.selected()
	if !ok {
		return m, nil
	}
	if !row.Status.Actionable() {
		return m, m.notify(fmt.Sprintf("case #%d is %s; only Pending cases can be changed", row.ID, row.Status), true)
	}
	if _, busy := c.pending[row.ID]; busy {
		return m, nil
	}
	c.pending = withPending(c.pending, row.ID, a)
	m.log.WithField("case_id", row.ID).WithField("action", a).Debug("case action")

	ctx, b, id := m.root, m.api, row.ID
	return m, func() tea.Msg {
		res, err := b.Do(ctx, a, id)
		return actionDoneMsg{id: id, action: a, result: res, err: err}
	}
}

// handleActionDone reports the outcome and refreshes the list once,
// whether the action succeeded or not.
func (m uiModel) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	m.cases.pending = withoutPending(m.cases.pending, msg.id)
	if errors.Is(msg.err, context.Canceled) {
		return m, nil
	}

	var note tea.Cmd
	if msg.err != nil {
		m.log.WithError(msg.err).WithField("case_id", msg.id).Warn("case action failed")
		note = m.notify(actionFailure(msg), true)
	} else {
		note = m.notify(actionSummary(msg), false)
	}
	if m.activeView != viewCases {
		// Entering the view fetches the list.
		return m, note
	}
	return m, tea.Batch(note, m.fetchCases())
}

func actionFailure(msg actionDoneMsg) string {
	switch {
	case api.IsNotFound(msg.err):
		return fmt.Sprintf("case #%d no longer exists", msg.id)
	case api.IsClientError(msg.err):
		return fmt.Sprintf("%s #%d rejected: %s", msg.action, msg.id, errText(msg.err))
	default:
		return fmt.Sprintf("%s #%d failed: %s", msg.action, msg.id, errText(msg.err))
	}
}

func actionSummary(msg actionDoneMsg) string {
	if msg.result.Message != "" {
		return msg.result.Message
	}
	verb := map[model.Action]string{
		model.ActionResolve:  "resolved",
		model.ActionEscalate: "escalated",
		model.ActionVerify:   "sent for verification",
	}[msg.action]
	s := fmt.Sprintf("case #%d %s", msg.id, verb)
	if lvl := msg.result.EscalationLevel; lvl > 0 {
		s += fmt.Sprintf(" (level %d)", lvl)
	} else if msg.result.Case != nil && msg.result.Case.EscalationLevel > 0 && msg.action == model.ActionEscalate {
		s += fmt.Sprintf(" (level %d)", msg.result.Case.EscalationLevel)
	}
	return s
}

func (m uiModel) handleCasesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := &m.cases
	switch {
	case key.Matches(msg, keys.Up):
		if c.cursor > 0 {
			c.cursor--
		}
	case key.Matches(msg, keys.Down):
		if c.cursor < len(c.rows)-1 {
			c.cursor++
		}
	case key.Matches(msg, keys.Refresh):
		return m, m.fetchCases()
	case key.Matches(msg, keys.StatusFilter):
		c.crit.Status = filter.NextStatus(c.crit.Status)
		return m.filterChanged()
	case key.Matches(msg, keys.PriorityFilter):
		c.crit.Priority = filter.NextPriority(c.crit.Priority)
		return m.filterChanged()
	case key.Matches(msg, keys.CategoryFilter):
		c.crit.Category = filter.NextCategory(c.categories, c.crit.Category)
		return m.filterChanged()
	case key.Matches(msg, keys.ClearFilters):
		if c.crit == (filter.Criteria{}) {
			return m, nil
		}
		c.crit = filter.Criteria{}
		c.search.SetValue("")
		return m.filterChanged()
	case key.Matches(msg, keys.Search):
		c.searching = true
		return m, c.search.Focus()
	case key.Matches(msg, keys.Resolve):
		return m.startAction(model.ActionResolve)
	case key.Matches(msg, keys.Escalate):
		return m.startAction(model.ActionEscalate)
	case key.Matches(msg, keys.Verify):
		return m.startAction(model.ActionVerify)
	}
	return m, nil
}

func (m uiModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := &m.cases
	switch {
	case key.Matches(msg, keys.Enter):
		c.searching = false
		c.search.Blur()
		return m, nil
	case key.Matches(msg, keys.Esc):
		c.searching = false
		c.search.Blur()
		if c.search.Value() == "" {
			return m, nil
		}
		c.search.SetValue("")
		c.crit.Search = ""
		return m.filterChanged()
	}

	var cmd tea.Cmd
	c.search, cmd = c.search.Update(msg)
	if c.search.Value() == c.crit.Search {
		return m, cmd
	}
	c.crit.Search = c.search.Value()
	next, fetch := m.filterChanged()
	return next, tea.Batch(cmd, fetch)
}

// filterChanged re-fetches after any criteria change. When only the search
// changed, the last response is narrowed right away while the fetch runs.
func (m uiModel) filterChanged() (tea.Model, tea.Cmd) {
	c := &m.cases
	c.cursor = 0
	if c.served != nil && c.servedCrit.ServerEqual(c.crit) {
		c.rows = c.crit.Apply(c.served)
	}
	m.log.WithField("filter", m.cases.crit.Label()).Debug("filter changed")
	return m, m.fetchCases()
}

// --- Rendering ---

func (m uiModel) renderCases(height int) string {
	c := m.cases
	var b strings.Builder

	b.WriteString(headerStyle.Render("Cases"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d shown", len(c.rows))))
	if c.phase == model.PhaseLoading {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteRune('\n')
	b.WriteString(renderFilterBar(c.crit))
	b.WriteRune('\n')
	if c.searching || c.crit.Search != "" {
		b.WriteString(c.search.View())
		b.WriteRune('\n')
	}
	if c.phase == model.PhaseFailed {
		b.WriteString(errorStyle.Render("  " + errText(c.err)))
		b.WriteRune('\n')
	}
	b.WriteRune('\n')

	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-6s %-8s %-16s %-24s %-4s %-14s %s",
		"ID", "Priority", "Category", "Status", "Esc", "Created", "Description")))
	b.WriteRune('\n')

	if len(c.rows) == 0 {
		switch c.phase {
		case model.PhaseLoading, model.PhaseIdle:
			b.WriteString(dimStyle.Render("  loading..."))
		default:
			b.WriteString(dimStyle.Render("  (no cases match)"))
		}
		b.WriteRune('\n')
		return b.String()
	}

	used := strings.Count(b.String(), "\n")
	start, end := visibleWindow(len(c.rows), c.cursor, height-used)
	for i := start; i < end; i++ {
		b.WriteString(m.renderCaseRow(c.rows[i], i == c.cursor))
		b.WriteRune('\n')
	}
	if end < len(c.rows) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", len(c.rows)-end)))
		b.WriteRune('\n')
	}
	return b.String()
}

func (m uiModel) renderCaseRow(cs model.Case, selected bool) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}
	status := string(cs.Status)
	if a, busy := m.cases.pending[cs.ID]; busy {
		status = m.spinner.View() + " " + string(a) + "..."
	}
	category := cs.Category
	if category == "" {
		category = "-"
	}
	created := "-"
	if !cs.CreatedAt.IsZero() {
		created = humanize.Time(cs.CreatedAt)
	}

	line := fmt.Sprintf("%s%-6d %s %-16s %s %-4d %-14s %s",
		cursor,
		cs.ID,
		priorityStyle(cs.Priority).Render(fmt.Sprintf("%-8s", cs.Priority)),
		truncate(category, 16),
		statusStyle(cs.Status).Render(padRight(status, 24)),
		cs.EscalationLevel,
		truncate(created, 14),
		truncate(oneLine(cs.Description), 60),
	)
	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

func renderFilterBar(crit filter.Criteria) string {
	show := func(name, v string) string {
		if v == "" {
			return dimStyle.Render(name+": ") + "All"
		}
		return dimStyle.Render(name+": ") + filterActiveStyle.Render(v)
	}
	parts := []string{
		show("[s]tatus", string(crit.Status)),
		show("[p]riority", string(crit.Priority)),
		show("[c]ategory", crit.Category),
	}
	return "  " + strings.Join(parts, "   ")
}

// visibleWindow returns the [start, end) row range that keeps cursor on a
// screen of height rows.
func visibleWindow(n, cursor, height int) (int, int) {
	// At least one row plus the "... more" marker.
	if height < 2 {
		height = 2
	}
	if n <= height {
		return 0, n
	}
	// Leave one line for the "... more" marker.
	height--
	start := 0
	if cursor >= height {
		start = cursor - height + 1
	}
	return start, min(n, start+height)
}
