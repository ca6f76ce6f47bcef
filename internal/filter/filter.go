// Package filter holds the case-list filter criteria. Status, priority and
// category are sent to the backend as query parameters; the free-text search
// is applied locally to whatever the backend returned.
package filter

import (
	"net/url"
	"strings"

	"github.com/daviddao/casedesk/internal/model"
)

// Criteria is the full filter state of the case list. Empty fields mean
// "any".
type Criteria struct {
	Status   model.Status
	Priority model.Priority
	Category string
	Search   string
}

// Query returns the server-side part of the criteria as URL parameters.
// Empty criteria are omitted.
func (c Criteria) Query() url.Values {
	q := url.Values{}
	if c.Status != "" {
		q.Set("status", string(c.Status))
	}
	if c.Priority != "" {
		q.Set("priority", string(c.Priority))
	}
	if c.Category != "" {
		q.Set("category", c.Category)
	}
	return q
}

// ServerEqual reports whether two criteria produce the same backend request.
func (c Criteria) ServerEqual(o Criteria) bool {
	return c.Status == o.Status && c.Priority == o.Priority && c.Category == o.Category
}

// Matches reports whether a case's description contains the search text,
// ignoring case. The text is matched as typed, spaces included; a blank
// search matches everything.
func (c Criteria) Matches(cs model.Case) bool {
	if strings.TrimSpace(c.Search) == "" {
		return true
	}
	return strings.Contains(strings.ToLower(cs.Description), strings.ToLower(c.Search))
}

// Apply narrows server results to the rows matching the search, preserving
// order. The input slice is not modified.
func (c Criteria) Apply(cases []model.Case) []model.Case {
	out := make([]model.Case, 0, len(cases))
	for _, cs := range cases {
		if c.Matches(cs) {
			out = append(out, cs)
		}
	}
	return out
}

// Label is a one-line description of the active criteria.
func (c Criteria) Label() string {
	var parts []string
	if c.Status != "" {
		parts = append(parts, "status="+string(c.Status))
	}
	if c.Priority != "" {
		parts = append(parts, "priority="+string(c.Priority))
	}
	if c.Category != "" {
		parts = append(parts, "category="+c.Category)
	}
	if s := strings.TrimSpace(c.Search); s != "" {
		parts = append(parts, "search="+s)
	}
	if len(parts) == 0 {
		return "all cases"
	}
	return strings.Join(parts, " ")
}
