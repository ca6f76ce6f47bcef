package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/casedesk/internal/api"
	"github.com/daviddao/casedesk/internal/filter"
	"github.com/daviddao/casedesk/internal/model"
)

func rowIDs(m uiModel) []int64 {
	ids := make([]int64, 0, len(m.cases.rows))
	for _, c := range m.cases.rows {
		ids = append(ids, c.ID)
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCasesLoadOnEnter(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := testModel(fb)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyF2})
	if m.cases.phase != model.PhaseLoading {
		t.Fatalf("phase = %v, want loading", m.cases.phase)
	}
	m, _ = update(t, m, only[casesLoadedMsg](t, drain(cmd)))

	if got := rowIDs(m); !equalIDs(got, []int64{1, 2, 3, 4}) {
		t.Errorf("rows = %v, want all four", got)
	}
	if m.cases.phase != model.PhaseSucceeded {
		t.Errorf("phase = %v, want success", m.cases.phase)
	}
	view := m.View()
	for _, s := range []string{"Suspicious login", "Account Access", "Escalated"} {
		if !strings.Contains(view, s) {
			t.Errorf("view missing %q", s)
		}
	}
}

func TestCasesFilterCombinations(t *testing.T) {
	tests := []struct {
		name string
		crit filter.Criteria
		want []int64
	}{
		{"none", filter.Criteria{}, []int64{1, 2, 3, 4}},
		{"status", filter.Criteria{Status: model.StatusPending}, []int64{1, 4}},
		{"priority", filter.Criteria{Priority: model.PriorityHigh}, []int64{1, 3}},
		{"search is case-insensitive", filter.Criteria{Search: "login"}, []int64{1, 3}},
		{"status and search", filter.Criteria{Status: model.StatusPending, Search: "LOGIN"}, []int64{1}},
		{"priority and search", filter.Criteria{Priority: model.PriorityLow, Search: "login"}, []int64{}},
		{"category", filter.Criteria{Category: "Fraud"}, []int64{1, 3}},
		{"search ignores email", filter.Criteria{Search: "a@b.com"}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{cases: testCases()}
			m := newModel(fb, nil, tt.crit)
			m.width, m.height = 120, 30
			m = loadCases(t, m)

			if got := rowIDs(m); !equalIDs(got, tt.want) {
				t.Errorf("rows = %v, want %v", got, tt.want)
			}
			if len(fb.filterCalls) != 1 || !fb.filterCalls[0].ServerEqual(tt.crit) {
				t.Errorf("server criteria = %+v, want %+v", fb.filterCalls, tt.crit)
			}
		})
	}
}

func TestCasesFilterKeysRefetch(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	m, cmd := update(t, m, runes("s"))
	if m.cases.crit.Status != model.StatusPending {
		t.Fatalf("status filter = %q, want Pending", m.cases.crit.Status)
	}
	m, _ = update(t, m, only[casesLoadedMsg](t, drain(cmd)))
	if got := rowIDs(m); !equalIDs(got, []int64{1, 4}) {
		t.Errorf("rows = %v, want [1 4]", got)
	}

	m, cmd = update(t, m, runes("p"))
	if m.cases.crit.Priority != model.PriorityLow {
		t.Fatalf("priority filter = %q, want Low", m.cases.crit.Priority)
	}
	m, _ = update(t, m, only[casesLoadedMsg](t, drain(cmd)))
	if got := rowIDs(m); !equalIDs(got, []int64{4}) {
		t.Errorf("rows = %v, want [4]", got)
	}

	m, cmd = update(t, m, runes("x"))
	if m.cases.crit != (filter.Criteria{}) {
		t.Fatalf("criteria after clear = %+v", m.cases.crit)
	}
	m, _ = update(t, m, only[casesLoadedMsg](t, drain(cmd)))
	if len(m.cases.rows) != 4 {
		t.Errorf("rows after clear = %d, want 4", len(m.cases.rows))
	}
	if n := fb.filterCount(); n != 4 {
		t.Errorf("filter requests = %d, want 4", n)
	}
}

func TestCasesSearchRefetchesPerKeystroke(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	m, _ = update(t, m, runes("/"))
	if !m.cases.searching {
		t.Fatal("/ did not start search")
	}

	before := m.cases.seq.Last()
	var cmd tea.Cmd
	for _, r := range "LOG" {
		m, cmd = update(t, m, runes(string(r)))
	}
	if m.cases.crit.Search != "LOG" {
		t.Fatalf("search = %q, want LOG", m.cases.crit.Search)
	}
	// Only the latest response applies.
	m, _ = update(t, m, only[casesLoadedMsg](t, drain(cmd)))
	if got := rowIDs(m); !equalIDs(got, []int64{1, 3}) {
		t.Errorf("rows = %v, want [1 3]", got)
	}
	if n := m.cases.seq.Last() - before; n != 3 {
		t.Errorf("list requests issued = %d, want one per keystroke", n)
	}

	// Typing view keys while searching stays in the search box.
	m, _ = update(t, m, runes("3"))
	if m.activeView != viewCases || m.cases.crit.Search != "LOG3" {
		t.Errorf("view = %v search = %q", m.activeView, m.cases.crit.Search)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.cases.searching || m.cases.crit.Search != "" {
		t.Errorf("esc: searching = %v search = %q", m.cases.searching, m.cases.crit.Search)
	}
}

func TestCasesStaleResponseDropped(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	first := m.cases.seq.Last() + 1
	m.fetchCases()
	m.fetchCases()

	// The older request answers last.
	stale := casesLoadedMsg{seq: first, cases: testCases()[:1]}
	m, _ = update(t, m, stale)
	if len(m.cases.rows) != 4 {
		t.Errorf("stale response applied: rows = %v", rowIDs(m))
	}
	if m.cases.phase != model.PhaseLoading {
		t.Errorf("phase = %v, want loading", m.cases.phase)
	}

	fresh := casesLoadedMsg{seq: m.cases.seq.Last(), cases: testCases()[1:2]}
	m, _ = update(t, m, fresh)
	if got := rowIDs(m); !equalIDs(got, []int64{2}) {
		t.Errorf("rows = %v, want [2]", got)
	}
}

func TestCasesResponseAfterLeaveDropped(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := testModel(fb)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyF2})
	loaded := only[casesLoadedMsg](t, drain(cmd))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyF3})
	m, _ = update(t, m, loaded)

	if len(m.cases.rows) != 0 {
		t.Errorf("response applied after leaving the view: %v", rowIDs(m))
	}
}

func TestCasesFetchErrorKeepsRows(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	fb.filterErr = errors.New("backend down")
	m, cmd := update(t, m, runes("R"))
	m, _ = update(t, m, only[casesLoadedMsg](t, drain(cmd)))

	if m.cases.phase != model.PhaseFailed {
		t.Errorf("phase = %v, want error", m.cases.phase)
	}
	if len(m.cases.rows) != 4 {
		t.Errorf("rows = %d, want previous 4 kept", len(m.cases.rows))
	}
	if !m.toastIsErr || !strings.Contains(m.toast, "backend down") {
		t.Errorf("toast = %q", m.toast)
	}
}

func TestCaseActionOneRequestOneRefresh(t *testing.T) {
	keysFor := map[string]model.Action{
		"r": model.ActionResolve,
		"e": model.ActionEscalate,
		"v": model.ActionVerify,
	}
	for k, action := range keysFor {
		t.Run(string(action), func(t *testing.T) {
			fb := &fakeBackend{cases: testCases()}
			m := loadCases(t, testModel(fb))
			before := fb.filterCount()

			m, cmd := update(t, m, runes(k))
			if got := m.cases.pending[1]; got != action {
				t.Fatalf("pending[1] = %q, want %q", got, action)
			}
			done := only[actionDoneMsg](t, drain(cmd))
			if len(fb.actions) != 1 || fb.actions[0] != string(action)+" 1" {
				t.Fatalf("actions = %v", fb.actions)
			}

			m, cmd = update(t, m, done)
			if _, busy := m.cases.pending[1]; busy {
				t.Error("row still pending after completion")
			}
			only[casesLoadedMsg](t, drain(cmd))
			if got := fb.filterCount() - before; got != 1 {
				t.Errorf("refreshes = %d, want 1", got)
			}
		})
	}
}

func TestCaseActionFailureStillRefreshes(t *testing.T) {
	fb := &fakeBackend{cases: testCases(), actionErr: errors.New("conflict")}
	m := loadCases(t, testModel(fb))
	before := fb.filterCount()

	m, cmd := update(t, m, runes("r"))
	m, cmd = update(t, m, only[actionDoneMsg](t, drain(cmd)))
	only[casesLoadedMsg](t, drain(cmd))

	if got := fb.filterCount() - before; got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
	if !m.toastIsErr || !strings.Contains(m.toast, "conflict") {
		t.Errorf("toast = %q", m.toast)
	}
}

func TestCaseActionFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"gone", &api.Error{Op: "resolve case 1", StatusCode: http.StatusNotFound, Detail: "Case not found"}, "case #1 no longer exists"},
		{"rejected", fmt.Errorf("wrapped: %w", &api.Error{Op: "resolve case 1", StatusCode: http.StatusBadRequest, Detail: "Case already resolved"}), "resolve #1 rejected: Case already resolved"},
		{"transport", errors.New("connection refused"), "resolve #1 failed: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{cases: testCases(), actionErr: tt.err}
			m := loadCases(t, testModel(fb))

			m, cmd := update(t, m, runes("r"))
			m, cmd = update(t, m, only[actionDoneMsg](t, drain(cmd)))
			drain(cmd)
			if !m.toastIsErr || m.toast != tt.want {
				t.Errorf("toast = %q (err=%v), want %q", m.toast, m.toastIsErr, tt.want)
			}
		})
	}
}

func TestCaseActionDoneOffViewDefersRefresh(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	m, cmd := update(t, m, runes("r"))
	done := only[actionDoneMsg](t, drain(cmd))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyF1})

	before := fb.filterCount()
	m, cmd = update(t, m, done)
	if msgs := drain(cmd); len(find[casesLoadedMsg](msgs)) != 0 {
		t.Error("list fetched while the view is hidden")
	}
	if fb.filterCount() != before {
		t.Errorf("requests = %d, want none", fb.filterCount()-before)
	}
	if m.cases.phase == model.PhaseLoading {
		t.Error("hidden list left loading")
	}
	if _, busy := m.cases.pending[1]; busy {
		t.Error("row still pending")
	}

	// Coming back is the refresh.
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyF2})
	only[casesLoadedMsg](t, drain(cmd))
	if fb.filterCount()-before != 1 {
		t.Errorf("refreshes on return = %d, want 1", fb.filterCount()-before)
	}
}

func TestCasesUnfilteredUsesFullList(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))
	if fb.listCalls != 1 {
		t.Fatalf("list calls = %d, want 1", fb.listCalls)
	}

	// A search alone is not a server-side filter.
	m.cases.crit.Search = "login"
	next, cmd := m.filterChanged()
	drain(cmd)
	if fb.listCalls != 2 {
		t.Errorf("list calls after search = %d, want 2", fb.listCalls)
	}

	_, cmd = update(t, next.(uiModel), runes("s"))
	drain(cmd)
	if fb.listCalls != 2 {
		t.Errorf("status filter used the full list")
	}
	if last := fb.filterCalls[len(fb.filterCalls)-1]; last.Status != model.StatusPending {
		t.Errorf("last request = %+v, want status Pending", last)
	}
}

func TestCasesSearchNarrowsBeforeResponse(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	m, _ = update(t, m, runes("/"))
	var cmd tea.Cmd
	for _, r := range "login" {
		m, cmd = update(t, m, runes(string(r)))
	}
	if got := rowIDs(m); !equalIDs(got, []int64{1, 3}) {
		t.Errorf("rows while fetching = %v, want [1 3]", got)
	}
	m, _ = update(t, m, only[casesLoadedMsg](t, drain(cmd)))
	if got := rowIDs(m); !equalIDs(got, []int64{1, 3}) {
		t.Errorf("rows after response = %v, want [1 3]", got)
	}

	// Changing a server-side filter waits for the backend.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, runes("p"))
	if got := rowIDs(m); !equalIDs(got, []int64{1, 3}) {
		t.Errorf("rows = %v, want previous rows until the response", got)
	}
}

func TestCaseActionOnlyOnPending(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	// Row 1 is case 2, Resolved.
	m, _ = update(t, m, runes("j"))
	for _, k := range []string{"r", "e", "v"} {
		var cmd tea.Cmd
		m, cmd = update(t, m, runes(k))
		drain(cmd)
	}
	if len(fb.actions) != 0 {
		t.Errorf("actions sent for non-pending row: %v", fb.actions)
	}
	if len(m.cases.pending) != 0 {
		t.Errorf("pending = %v", m.cases.pending)
	}
	if !m.toastIsErr || !strings.Contains(m.toast, "only Pending") {
		t.Errorf("toast = %q", m.toast)
	}
}

func TestCaseActionOnePerRow(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	m, first := update(t, m, runes("r"))
	m, second := update(t, m, runes("e"))
	if second != nil {
		t.Error("second action on a busy row returned a command")
	}

	// A different pending row is independent.
	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	m, third := update(t, m, runes("v"))
	if third == nil {
		t.Fatal("action on another row blocked")
	}
	if len(m.cases.pending) != 2 {
		t.Errorf("pending = %v, want two rows", m.cases.pending)
	}
	drain(first)
	drain(third)
	if len(fb.actions) != 2 {
		t.Errorf("actions = %v, want 2", fb.actions)
	}
}

func TestPendingMapNotShared(t *testing.T) {
	fb := &fakeBackend{cases: testCases()}
	m := loadCases(t, testModel(fb))

	snapshot := m
	m, _ = update(t, m, runes("r"))
	if len(snapshot.cases.pending) != 0 {
		t.Errorf("earlier model sees pending action: %v", snapshot.cases.pending)
	}
	if len(m.cases.pending) != 1 {
		t.Errorf("pending = %v, want 1", m.cases.pending)
	}
}

func TestCategoryFilterLearnsCategories(t *testing.T) {
	cases := testCases()
	cases = append(cases, model.Case{ID: 9, Description: "misc", Category: "Billing", Status: model.StatusPending})
	fb := &fakeBackend{cases: cases}
	m := loadCases(t, testModel(fb))

	found := false
	for _, c := range m.cases.categories {
		if c == "Billing" {
			found = true
		}
	}
	if !found {
		t.Errorf("categories = %v, want Billing learned", m.cases.categories)
	}

	m, cmd := update(t, m, runes("c"))
	if m.cases.crit.Category != model.Categories[0] {
		t.Errorf("category = %q, want %q", m.cases.crit.Category, model.Categories[0])
	}
	drain(cmd)
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		n, cursor, height int
		start, end        int
	}{
		{5, 0, 10, 0, 5},
		{20, 0, 10, 0, 9},
		{20, 8, 10, 0, 9},
		{20, 9, 10, 1, 10},
		{20, 19, 10, 11, 20},
		{3, 0, 0, 0, 1},
	}
	for _, tt := range tests {
		start, end := visibleWindow(tt.n, tt.cursor, tt.height)
		if start != tt.start || end != tt.end {
			t.Errorf("visibleWindow(%d, %d, %d) = %d, %d; want %d, %d",
				tt.n, tt.cursor, tt.height, start, end, tt.start, tt.end)
		}
	}
}
