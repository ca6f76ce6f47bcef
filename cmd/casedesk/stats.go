package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/daviddao/casedesk/internal/filter"
	"github.com/daviddao/casedesk/internal/model"
	"github.com/daviddao/casedesk/internal/snapshot"
)

// dailyBuckets is how many of the most recent days the daily chart shows.
const dailyBuckets = 14

type statsState struct {
	seq    filter.Sequencer
	cancel context.CancelFunc

	phase model.Phase
	snap  *snapshot.DataSnapshot
	err   error
}

func newStatsState() statsState {
	return statsState{}
}

func (s *statsState) invalidate() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq.Next()
	if s.phase == model.PhaseLoading {
		s.phase = model.PhaseIdle
	}
}

// fetchStats builds a fresh snapshot. It runs when the view is entered and
// on manual reload; there is no polling.
func (m *uiModel) fetchStats() tea.Cmd {
	s := &m.stats
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(m.root)
	s.cancel = cancel
	seq := s.seq.Next()
	s.phase = model.PhaseLoading
	s.err = nil

	b := m.api
	return func() tea.Msg {
		snap, err := snapshot.Build(ctx, b)
		return statsLoadedMsg{seq: seq, snap: snap, err: err}
	}
}

func (m uiModel) handleStatsLoaded(msg statsLoadedMsg) (tea.Model, tea.Cmd) {
	s := &m.stats
	if !s.seq.Current(msg.seq) {
		m.log.WithField("seq", msg.seq).Debug("dropping stale stats")
		return m, nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		m.log.WithError(msg.err).Warn("stats fetch failed")
		s.phase = model.PhaseFailed
		s.err = msg.err
		s.snap = snapshot.Empty()
		return m, m.notify("load stats: "+errText(msg.err), true)
	}
	if msg.snap.InsightsErr != nil {
		m.log.WithError(msg.snap.InsightsErr).Debug("insights unavailable")
	}
	s.phase = model.PhaseSucceeded
	s.snap = msg.snap
	return m, nil
}

func (m uiModel) handleStatsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Refresh) {
		return m, m.fetchStats()
	}
	return m, nil
}

// --- Rendering ---

func (m uiModel) renderStats() string {
	s := m.stats
	var b strings.Builder

	b.WriteString(headerStyle.Render("Statistics"))
	if s.phase == model.PhaseLoading {
		b.WriteString("  " + m.spinner.View())
	} else if s.snap != nil {
		b.WriteString(dimStyle.Render("  as of " + humanize.Time(s.snap.BuiltAt)))
	}
	b.WriteString("\n\n")

	if s.phase == model.PhaseFailed {
		b.WriteString(errorStyle.Render("  " + errText(s.err)))
		b.WriteString("\n\n")
	}

	snap := s.snap
	if snap == nil {
		if s.phase == model.PhaseLoading {
			b.WriteString(dimStyle.Render("  loading..."))
			b.WriteRune('\n')
			return b.String()
		}
		snap = snapshot.Empty()
	}
	if snap.Stats.IsEmpty() {
		b.WriteString(dimStyle.Render("  No statistics available"))
		b.WriteRune('\n')
		return b.String()
	}

	b.WriteString(renderCards(snap, m.width))
	b.WriteString("\n\n")

	barWidth := max(10, min(40, m.width-40))
	st := snap.Stats
	b.WriteString(renderBreakdown("By category", st.ByCategory.Sorted(), st.Total, st.ByCategory.Max(), barWidth))
	b.WriteRune('\n')
	b.WriteString(renderBreakdown("By priority", priorityEntries(st.ByPriority), st.Total, st.ByPriority.Max(), barWidth))
	b.WriteRune('\n')
	// Days share one scale, including days older than the window.
	b.WriteString(renderBreakdown("By day", lastN(st.Daily.ByLabel(), dailyBuckets), st.Total, st.Daily.Max(), barWidth))
	return b.String()
}

// renderCards lays out the summary cards, wrapping to as many rows as the
// terminal width needs.
func renderCards(snap *snapshot.DataSnapshot, width int) string {
	st := snap.Stats
	avg := "n/a"
	if d := snap.AvgResolutionDays(); d > 0 {
		avg = fmt.Sprintf("%.1f days", d)
	}
	top := "n/a"
	if snap.TopCategory != "" {
		top = fmt.Sprintf("%s (%d)", snap.TopCategory, snap.TopCategoryCount)
	}
	perDay := "n/a"
	if snap.DailyPeak.Count > 0 {
		perDay = fmt.Sprintf("%.1f (med %.0f)", snap.DailyMean, snap.DailyMedian)
	}
	cards := []string{
		renderCard("Total", humanize.Comma(int64(st.Total))),
		renderCard("Resolved", humanize.Comma(int64(st.Resolved))),
		renderCard("Pending", humanize.Comma(int64(st.Pending))),
		renderCard("Resolved %", fmt.Sprintf("%.0f%%", snap.ResolvedPercent)),
		renderCard("Avg resolution", avg),
		renderCard("Top category", top),
		renderCard("Cases per day", perDay),
	}
	perRow := max(1, width/lipgloss.Width(cards[0]))
	var rows []string
	for len(cards) > 0 {
		n := min(perRow, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[:n]...))
		cards = cards[n:]
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(label, value string) string {
	return cardStyle.Render(dimStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}

// renderBreakdown draws a label/count/percent table with a bar per row,
// scaled so that peak fills barWidth.
func renderBreakdown(title string, entries []model.Entry, total, peak, barWidth int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteRune('\n')
	if len(entries) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteRune('\n')
		return b.String()
	}

	for _, e := range entries {
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(e.Count) / float64(total)
		}
		b.WriteString(fmt.Sprintf("  %-18s %6s %5.1f%% %s\n",
			truncate(e.Label, 18),
			humanize.Comma(int64(e.Count)),
			pct,
			renderBar(e.Count, peak, barWidth),
		))
	}
	return b.String()
}

func renderBar(n, peak, width int) string {
	if peak <= 0 || n <= 0 {
		return ""
	}
	w := max(1, n*width/peak)
	return barStyle.Render(strings.Repeat("█", w))
}

// priorityEntries orders priorities Low, Medium, High, then anything else
// the backend reported.
func priorityEntries(b model.Breakdown) []model.Entry {
	out := make([]model.Entry, 0, len(b))
	seen := make(map[string]bool, len(model.Priorities))
	for _, p := range model.Priorities {
		seen[string(p)] = true
		if n, ok := b[string(p)]; ok {
			out = append(out, model.Entry{Label: string(p), Count: n})
		}
	}
	for _, e := range b.Sorted() {
		if !seen[e.Label] {
			out = append(out, e)
		}
	}
	return out
}

func lastN(entries []model.Entry, n int) []model.Entry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
