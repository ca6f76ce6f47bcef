package filter

import "github.com/daviddao/casedesk/internal/model"

// NextStatus cycles "" -> Pending -> ... -> Verification Requested -> "".
func NextStatus(s model.Status) model.Status {
	return cycle(model.Statuses, s)
}

// NextPriority cycles "" -> Low -> Medium -> High -> "".
func NextPriority(p model.Priority) model.Priority {
	return cycle(model.Priorities, p)
}

// NextCategory cycles "" through the given categories and back to "".
func NextCategory(categories []string, c string) string {
	return cycle(categories, c)
}

func cycle[T comparable](values []T, cur T) T {
	var zero T
	if cur == zero {
		if len(values) == 0 {
			return zero
		}
		return values[0]
	}
	for i, v := range values {
		if v == cur {
			if i+1 < len(values) {
				return values[i+1]
			}
			return zero
		}
	}
	return zero
}
