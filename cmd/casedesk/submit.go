package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/casedesk/internal/model"
)

// formField is the focus position inside the submit form.
type formField int

const (
	fieldDescription formField = iota
	fieldEmail
	fieldPriority
	fieldButton
	fieldCount // sentinel
)

type submitState struct {
	description textarea.Model
	email       textinput.Model
	priority    model.Priority
	focus       formField

	phase  model.Phase
	result model.Classification
	err    error
}

func newSubmitState() submitState {
	ta := textarea.New()
	ta.Placeholder = "Describe the problem..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(5)
	ta.SetWidth(60)
	ta.Focus()

	ti := textinput.New()
	ti.Placeholder = "you@example.com"
	ti.Prompt = ""
	ti.CharLimit = 254
	ti.Width = 40

	return submitState{
		description: ta,
		email:       ti,
		priority:    model.DefaultPriority,
	}
}

// editing reports whether a text field has the keyboard.
func (s submitState) editing() bool {
	return s.focus == fieldDescription || s.focus == fieldEmail
}

func (s *submitState) setWidth(w int) {
	fw := min(max(w-6, 20), 100)
	s.description.SetWidth(fw)
	s.email.Width = min(fw, 60)
}

// focusCmd focuses the current field and returns its cursor command.
func (s *submitState) focusCmd() tea.Cmd {
	s.description.Blur()
	s.email.Blur()
	switch s.focus {
	case fieldDescription:
		return s.description.Focus()
	case fieldEmail:
		return s.email.Focus()
	}
	return nil
}

func (s *submitState) blur() {
	s.description.Blur()
	s.email.Blur()
}

func (s *submitState) moveFocus(delta int) tea.Cmd {
	s.focus = formField((int(s.focus) + delta + int(fieldCount)) % int(fieldCount))
	return s.focusCmd()
}

func (s *submitState) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch s.focus {
	case fieldDescription:
		s.description, cmd = s.description.Update(msg)
	case fieldEmail:
		s.email, cmd = s.email.Update(msg)
	}
	return cmd
}

func (s submitState) request() model.ClassifyRequest {
	return model.ClassifyRequest{
		Description: s.description.Value(),
		Email:       strings.TrimSpace(s.email.Value()),
		Priority:    s.priority,
	}
}

// reset clears the form after a submission, successful or not.
func (s *submitState) reset() {
	s.description.Reset()
	s.email.Reset()
	s.priority = model.DefaultPriority
}

// prevPriority is Next applied backwards over the three priorities.
func prevPriority(p model.Priority) model.Priority {
	return p.Next().Next()
}

func (m uiModel) handleSubmitKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := &m.submit

	// Function keys switch views even while typing.
	switch msg.String() {
	case "f2":
		return m, m.switchView(viewCases)
	case "f3":
		return m, m.switchView(viewStats)
	case "f1":
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Send):
		return m.sendClassify()
	case key.Matches(msg, keys.NextField):
		return m, s.moveFocus(1)
	case key.Matches(msg, keys.PrevField):
		return m, s.moveFocus(-1)
	}

	if s.editing() {
		if key.Matches(msg, keys.Esc) {
			s.focus = fieldButton
			return m, s.focusCmd()
		}
		// Enter in the single-line email field advances like tab.
		if s.focus == fieldEmail && key.Matches(msg, keys.Enter) {
			return m, s.moveFocus(1)
		}
		return m, s.updateFocused(msg)
	}

	switch {
	case key.Matches(msg, keys.Enter):
		return m.sendClassify()
	case s.focus == fieldPriority && key.Matches(msg, keys.Cycle):
		if msg.String() == "left" || msg.String() == "h" {
			s.priority = prevPriority(s.priority)
		} else {
			s.priority = s.priority.Next()
		}
	case key.Matches(msg, keys.Up):
		return m, s.moveFocus(-1)
	case key.Matches(msg, keys.Down):
		return m, s.moveFocus(1)
	}
	return m, nil
}

// sendClassify posts the form. Nothing is sent while a request is in
// flight or when a field is empty.
func (m uiModel) sendClassify() (tea.Model, tea.Cmd) {
	s := &m.submit
	if s.phase == model.PhaseLoading {
		return m, nil
	}
	req := s.request()
	if err := req.Validate(); err != nil {
		return m, m.notify(err.Error(), true)
	}

	s.phase = model.PhaseLoading
	s.err = nil
	s.result = model.Classification{}
	m.log.WithField("priority", req.Priority).Debug("classify")

	b, ctx := m.api, m.root
	return m, func() tea.Msg {
		res, err := b.Classify(ctx, req)
		return classifiedMsg{result: res, err: err}
	}
}

func (m uiModel) handleClassified(msg classifiedMsg) (tea.Model, tea.Cmd) {
	s := &m.submit
	if s.phase != model.PhaseLoading {
		return m, nil
	}
	s.reset()

	if msg.err != nil {
		m.log.WithError(msg.err).Warn("classify failed")
		s.phase = model.PhaseFailed
		s.err = msg.err
		s.result = model.Classification{Category: "Error", Status: "Failed"}
		return m, nil
	}
	s.phase = model.PhaseSucceeded
	s.result = msg.result
	return m, m.notify(fmt.Sprintf("classified as %s", msg.result.Category), false)
}

func (m uiModel) renderSubmit() string {
	s := m.submit
	var b strings.Builder

	b.WriteString(headerStyle.Render("Submit a case"))
	b.WriteString("\n\n")

	b.WriteString(fieldLabel("Description", s.focus == fieldDescription))
	b.WriteRune('\n')
	b.WriteString(s.description.View())
	b.WriteString("\n\n")

	b.WriteString(fieldLabel("Email", s.focus == fieldEmail))
	b.WriteRune('\n')
	b.WriteString("  " + s.email.View())
	b.WriteString("\n\n")

	b.WriteString(fieldLabel("Priority", s.focus == fieldPriority))
	b.WriteRune('\n')
	b.WriteString("  " + renderPriorityPicker(s.priority))
	b.WriteString("\n\n")

	switch {
	case s.phase == model.PhaseLoading:
		b.WriteString(m.spinner.View() + " Classifying...")
	case s.focus == fieldButton:
		b.WriteString(buttonFocusStyle.Render("[ Classify ]"))
	default:
		b.WriteString(buttonStyle.Render("[ Classify ]"))
	}
	b.WriteString("\n\n")

	b.WriteString(renderClassification(s))
	return b.String()
}

func fieldLabel(name string, focused bool) string {
	if focused {
		return focusLabelStyle.Render("> " + name)
	}
	return dimStyle.Render("  " + name)
}

func renderPriorityPicker(cur model.Priority) string {
	parts := make([]string, 0, len(model.Priorities))
	for _, p := range model.Priorities {
		if p == cur {
			parts = append(parts, priorityStyle(p).Bold(true).Render("("+string(p)+")"))
		} else {
			parts = append(parts, dimStyle.Render(" "+string(p)+" "))
		}
	}
	return strings.Join(parts, " ")
}

// renderClassification shows the outcome of the last submission.
func renderClassification(s submitState) string {
	if !s.phase.Settled() {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Result"))
	b.WriteRune('\n')
	if s.phase == model.PhaseFailed {
		b.WriteString(errorStyle.Render("  " + errText(s.err)))
		b.WriteRune('\n')
	}
	b.WriteString(fmt.Sprintf("  Category: %s\n", s.result.Category))
	b.WriteString(fmt.Sprintf("  Status: %s\n", s.result.Status))
	if s.result.EscalationLevel > 0 {
		b.WriteString(fmt.Sprintf("  Escalation level: %d\n", s.result.EscalationLevel))
	}
	return b.String()
}
