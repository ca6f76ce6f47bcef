package model

import "sort"

// Breakdown maps a label (category, priority, day) to a case count.
type Breakdown map[string]int

// Entry is one label/count pair of a Breakdown.
type Entry struct {
	Label string
	Count int
}

// Sorted returns entries by count descending, then label ascending.
func (b Breakdown) Sorted() []Entry {
	out := b.entries()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// ByLabel returns entries ordered by label ascending. Used for day buckets,
// whose ISO dates sort chronologically.
func (b Breakdown) ByLabel() []Entry {
	out := b.entries()
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Max returns the largest count, or 0 for an empty breakdown.
func (b Breakdown) Max() int {
	m := 0
	for _, n := range b {
		if n > m {
			m = n
		}
	}
	return m
}

func (b Breakdown) entries() []Entry {
	out := make([]Entry, 0, len(b))
	for k, v := range b {
		out = append(out, Entry{Label: k, Count: v})
	}
	return out
}

// Stats is the aggregate snapshot served by /cases/stats.
type Stats struct {
	Total             int       `json:"total_cases"`
	Resolved          int       `json:"resolved_cases"`
	Pending           int       `json:"pending_cases"`
	ByCategory        Breakdown `json:"category_breakdown"`
	ByPriority        Breakdown `json:"priority_breakdown"`
	Daily             Breakdown `json:"daily_breakdown"`
	AvgResolutionDays float64   `json:"avg_resolution_time_days"`
}

// EmptyStats is the zero state rendered when stats cannot be fetched.
func EmptyStats() Stats {
	return Stats{
		ByCategory: Breakdown{},
		ByPriority: Breakdown{},
		Daily:      Breakdown{},
	}
}

// IsEmpty reports whether there is nothing worth charting.
func (s Stats) IsEmpty() bool {
	return s.Total == 0 && len(s.ByCategory) == 0
}

// Insights is the derived summary served by /cases/insights.
type Insights struct {
	AvgResolutionDays float64 `json:"avg_resolution_time_days"`
	TopCategory       string  `json:"top_category"`
	TopCategoryCount  int     `json:"top_category_count"`
}
