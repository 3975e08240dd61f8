package task

import (
	"strings"
	"time"
)

// Matches reports whether t satisfies every predicate of f. It is the
// reference semantics that SQL-backed stores reproduce in their queries.
func Matches(t *Task, f Filter) bool {
	if t.Owner != f.Owner {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	for _, s := range f.StatusNotIn {
		if t.Status == s {
			return false
		}
	}
	if f.DueFrom != nil || f.DueBefore != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueBefore != nil && !t.DueDate.Before(*f.DueBefore) {
			return false
		}
	}
	if f.Search != "" && !matchesSearch(t, f.Search) {
		return false
	}
	return true
}

func matchesSearch(t *Task, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Less orders a before b under s, breaking ties by id. Missing timestamps
// sort before present ones in ascending order.
func Less(a, b *Task, s Sort) bool {
	c := compareField(a, b, s.Field)
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	if s.Desc {
		return c > 0
	}
	return c < 0
}

func compareField(a, b *Task, field SortField) int {
	switch field {
	case SortUpdatedAt:
		return compareTime(&a.UpdatedAt, &b.UpdatedAt)
	case SortDueDate:
		return compareTime(a.DueDate, b.DueDate)
	case SortCompletedAt:
		return compareTime(a.CompletedAt, b.CompletedAt)
	case SortTitle:
		return strings.Compare(a.Title, b.Title)
	case SortStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case SortPriority:
		return strings.Compare(string(a.Priority), string(b.Priority))
	case SortCategory:
		return strings.Compare(string(a.Category), string(b.Category))
	default:
		return compareTime(&a.CreatedAt, &b.CreatedAt)
	}
}

func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
