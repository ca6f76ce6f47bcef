package main

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/casedesk/internal/filter"
	"github.com/daviddao/casedesk/internal/model"
)

func init() {
	toastFadeDelay = 5 * time.Millisecond
}

// fakeBackend answers like the REST service, filtering status, priority and
// category server-side.
type fakeBackend struct {
	mu sync.Mutex

	classifyReqs []model.ClassifyRequest
	classifyRes  model.Classification
	classifyErr  error

	// filterCalls records every list request with its criteria; listCalls
	// counts the ones that asked for the full list.
	filterCalls []filter.Criteria
	listCalls   int
	cases       []model.Case
	filterErr   error

	actions   []string
	actionRes model.ActionResult
	actionErr error

	statsCalls int
	stats      model.Stats
	statsErr   error
	insights   model.Insights
}

func (f *fakeBackend) Classify(ctx context.Context, req model.ClassifyRequest) (model.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifyReqs = append(f.classifyReqs, req)
	return f.classifyRes, f.classifyErr
}

func (f *fakeBackend) FilterCases(ctx context.Context, crit filter.Criteria) ([]model.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filterCalls = append(f.filterCalls, crit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var out []model.Case
	for _, c := range f.cases {
		if crit.Status != "" && c.Status != crit.Status {
			continue
		}
		if crit.Priority != "" && c.Priority != crit.Priority {
			continue
		}
		if crit.Category != "" && c.Category != crit.Category {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeBackend) ListCases(ctx context.Context) ([]model.Case, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	return f.FilterCases(ctx, filter.Criteria{})
}

func (f *fakeBackend) Do(ctx context.Context, action model.Action, id int64) (model.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, fmt.Sprintf("%s %d", action, id))
	return f.actionRes, f.actionErr
}

func (f *fakeBackend) Stats(ctx context.Context) (model.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	return f.stats, f.statsErr
}

func (f *fakeBackend) Insights(ctx context.Context) (model.Insights, error) {
	return f.insights, nil
}

func (f *fakeBackend) filterCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.filterCalls)
}

func testCases() []model.Case {
	now := time.Now()
	return []model.Case{
		{ID: 1, Description: "Suspicious login from abroad", Email: "a@b.com", Priority: model.PriorityHigh,
			Category: "Fraud", Status: model.StatusPending, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 2, Description: "Cannot reset password", Email: "c@d.com", Priority: model.PriorityMedium,
			Category: "Account Access", Status: model.StatusResolved, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: 3, Description: "Unknown LOGIN attempt", Email: "e@f.com", Priority: model.PriorityHigh,
			Category: "Fraud", Status: model.StatusEscalated, EscalationLevel: 2, CreatedAt: now},
		{ID: 4, Description: "Need ID verification", Email: "g@h.com", Priority: model.PriorityLow,
			Category: "Verification", Status: model.StatusPending, CreatedAt: now},
	}
}

// testModel creates a uiModel sized like a small terminal.
func testModel(b backend) uiModel {
	m := newModel(b, nil, filter.Criteria{})
	m.width = 120
	m.height = 36
	m.help.Width = 120
	return m
}

// update feeds msg through Update and returns the concrete model.
func update(t *testing.T, m uiModel, msg tea.Msg) (uiModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	um, ok := next.(uiModel)
	if !ok {
		t.Fatalf("Update returned %T, want uiModel", next)
	}
	return um, cmd
}

// drain executes cmd and every command it batches, returning the messages
// produced within a second. Timers (toasts, cursor blink) finish quickly or
// are abandoned.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	out := make(chan tea.Msg, 64)
	var wg sync.WaitGroup
	var exec func(c tea.Cmd)
	exec = func(c tea.Cmd) {
		if c == nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, sub := range batch {
					exec(sub)
				}
				return
			}
			if msg != nil {
				out <- msg
			}
		}()
	}
	exec(cmd)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	var msgs []tea.Msg
	for {
		select {
		case msg := <-out:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// find returns every message of type T.
func find[T any](msgs []tea.Msg) []T {
	var out []T
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// only returns the single message of type T, failing otherwise.
func only[T any](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	got := find[T](msgs)
	if len(got) != 1 {
		var zero T
		t.Fatalf("got %d messages of type %T, want 1 (all: %v)", len(got), zero, msgs)
	}
	return got[0]
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// loadCases enters the cases view and applies the first response.
func loadCases(t *testing.T, m uiModel) uiModel {
	t.Helper()
	m.activeView = viewCases
	cmd := m.enterView()
	m, _ = update(t, m, only[casesLoadedMsg](t, drain(cmd)))
	return m
}
