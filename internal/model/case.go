// Package model defines the case-desk domain types shared by the API client,
// the filter logic and the terminal views.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Priority is the submitter-chosen urgency of a case.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// DefaultPriority is what the submit form starts with and resets to.
const DefaultPriority = PriorityMedium

// Priorities lists every valid priority in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority maps a case-insensitive name to a Priority.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q (valid: Low, Medium, High)", s)
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	_, err := ParsePriority(string(p))
	return err == nil && p != ""
}

// Next cycles Low -> Medium -> High -> Low. Unknown values go to Low.
func (p Priority) Next() Priority {
	for i, q := range Priorities {
		if q == p {
			return Priorities[(i+1)%len(Priorities)]
		}
	}
	return PriorityLow
}

// Status is the lifecycle state of a case. Transitions are driven by the
// backend; the frontend never moves a case backwards.
type Status string

const (
	StatusPending               Status = "Pending"
	StatusResolved              Status = "Resolved"
	StatusEscalated             Status = "Escalated"
	StatusVerificationRequested Status = "Verification Requested"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusPending, StatusResolved, StatusEscalated, StatusVerificationRequested}

// ParseStatus maps a case-insensitive name to a Status. "verify" and
// "verification" are accepted as shorthand for Verification Requested.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "verify", "verification":
		return StatusVerificationRequested, nil
	}
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Actionable reports whether resolve/escalate/verify may be offered.
func (s Status) Actionable() bool {
	return s == StatusPending
}

// Known categories produced by the classifier. The backend may return others.
var Categories = []string{"Fraud", "Account Access", "Verification", "General Inquiry"}

// Case is a submitted support item as returned by the backend.
type Case struct {
	ID              int64      `json:"id"`
	Description     string     `json:"description"`
	Email           string     `json:"email"`
	Priority        Priority   `json:"priority"`
	Category        string     `json:"category"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	EscalationLevel int        `json:"escalation_level"`
}

// UnmarshalJSON accepts the backend's timestamps with or without a zone.
func (c *Case) UnmarshalJSON(data []byte) error {
	type alias Case
	var raw struct {
		alias
		CreatedAt  string  `json:"created_at"`
		ResolvedAt *string `json:"resolved_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Case(raw.alias)

	if raw.CreatedAt != "" {
		t, err := ParseTime(raw.CreatedAt)
		if err != nil {
			return fmt.Errorf("case %d created_at: %w", c.ID, err)
		}
		c.CreatedAt = t
	}
	c.ResolvedAt = nil
	if raw.ResolvedAt != nil && *raw.ResolvedAt != "" {
		t, err := ParseTime(*raw.ResolvedAt)
		if err != nil {
			return fmt.Errorf("case %d resolved_at: %w", c.ID, err)
		}
		c.ResolvedAt = &t
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp. Values without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ClassifyRequest is the body posted to /classify-case.
type ClassifyRequest struct {
	Description string   `json:"description"`
	Email       string   `json:"email"`
	Priority    Priority `json:"priority"`
}

// Validate applies the only client-side checks: non-empty text and a known
// priority.
func (r ClassifyRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(r.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required", strings.Join(missing, " and "))
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", r.Priority)
	}
	return nil
}

// Classification is the backend's answer to a classify request.
type Classification struct {
	Category        string `json:"category"`
	Status          Status `json:"status"`
	EscalationLevel int    `json:"escalation_level"`
}

// Action names a per-row mutation.
type Action string

const (
	ActionResolve  Action = "resolve"
	ActionEscalate Action = "escalate"
	ActionVerify   Action = "verify"
)

// ActionResult is the outcome of resolve/escalate/verify. The backend returns
// either the updated case, a {message, ...} object, or nothing.
type ActionResult struct {
	Message         string `json:"message,omitempty"`
	Status          Status `json:"status,omitempty"`
	EscalationLevel int    `json:"escalation_level,omitempty"`
	Case            *Case  `json:"case,omitempty"`
}
