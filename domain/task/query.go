package task

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Pagination bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit inside an int.
	MaxPage = math.MaxInt / MaxLimit
)

// SortField names a sortable task attribute, using client-facing names.
type SortField string

const (
	SortCreatedAt   SortField = "createdAt"
	SortUpdatedAt   SortField = "updatedAt"
	SortDueDate     SortField = "dueDate"
	SortCompletedAt SortField = "completedAt"
	SortTitle       SortField = "title"
	SortStatus      SortField = "status"
	SortPriority    SortField = "priority"
	SortCategory    SortField = "category"
)

// DefaultSort is applied when the client does not ask for a known field.
const DefaultSort = SortCreatedAt

var sortFields = map[SortField]bool{
	SortCreatedAt: true, SortUpdatedAt: true, SortDueDate: true, SortCompletedAt: true,
	SortTitle: true, SortStatus: true, SortPriority: true, SortCategory: true,
}

// GroupField names an attribute the store can count by.
type GroupField string

const (
	GroupByStatus   GroupField = "status"
	GroupByPriority GroupField = "priority"
	GroupByCategory GroupField = "category"
)

// ListParams are the raw, client-supplied list options. Every field is
// optional and arrives as text, typically straight from a query string.
type ListParams struct {
	Status    string `json:"status,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Category  string `json:"category,omitempty"`
	Search    string `json:"search,omitempty"`
	Page      string `json:"page,omitempty"`
	Limit     string `json:"limit,omitempty"`
	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`
}

// Filter is the set of predicates a store must AND together. Owner is always
// applied. Search is OR-matched across title, description and tags.
type Filter struct {
	Owner       string
	Status      Status
	Priority    Priority
	Category    Category
	Search      string
	StatusNotIn []Status
	DueFrom     *time.Time // inclusive
	DueBefore   *time.Time // exclusive
}

// Sort selects a single sort key; ties are broken by id in the same direction.
type Sort struct {
	Field SortField
	Desc  bool
}

// Query is a normalized, bounded list request ready for a store.
type Query struct {
	Filter Filter
	Sort   Sort
	Page   int
	Limit  int
}

// Skip is the number of matching tasks before the requested page. It
// saturates at math.MaxInt instead of overflowing.
func (q Query) Skip() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// BuildQuery turns raw list parameters into a Query scoped to ownerID.
// It never fails: bad numbers are defaulted or clamped and search text is
// sanitized.
func BuildQuery(ownerID string, p ListParams) Query {
	q := Query{
		Filter: Filter{Owner: ownerID},
		Page:   NormalizePage(p.Page),
		Limit:  NormalizeLimit(p.Limit),
		Sort:   NormalizeSort(p.SortBy, p.SortOrder),
	}
	if s := strings.TrimSpace(p.Status); s != "" {
		q.Filter.Status = Status(s)
	}
	if s := strings.TrimSpace(p.Priority); s != "" {
		q.Filter.Priority = Priority(s)
	}
	if s := strings.TrimSpace(p.Category); s != "" {
		q.Filter.Category = Category(s)
	}
	q.Filter.Search = SanitizeSearch(p.Search)
	return q
}

// SanitizeSearch removes angle brackets and surrounding whitespace.
func SanitizeSearch(s string) string {
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	return strings.TrimSpace(s)
}

// NormalizePage parses a 1-based page number, clamped to [1, MaxPage].
// Anything without a leading integer becomes 1.
func NormalizePage(raw string) int {
	n, ok := leadingInt(raw)
	if !ok || n < 1 {
		return DefaultPage
	}
	if n > MaxPage {
		return MaxPage
	}
	return n
}

// NormalizeLimit parses a page size, defaulting non-numbers to 10 and
// clamping numbers into [1, 100].
func NormalizeLimit(raw string) int {
	n, ok := leadingInt(raw)
	if !ok {
		return DefaultLimit
	}
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// leadingInt reads the optionally signed decimal prefix of raw, so "2.5"
// and "5abc" give 2 and 5. Values too large for an int saturate.
func leadingInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		if neg {
			return math.MinInt, true
		}
		return math.MaxInt, true
	}
	if neg {
		n = -n
	}
	return n, true
}

// NormalizeSort resolves the sort key and direction. Only "desc" sorts
// descending; an empty order means the default, descending.
func NormalizeSort(sortBy, sortOrder string) Sort {
	field := SortField(strings.TrimSpace(sortBy))
	if !sortFields[field] {
		field = DefaultSort
	}
	order := strings.TrimSpace(sortOrder)
	return Sort{Field: field, Desc: order == "" || order == "desc"}
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	Limit       int   `json:"limit"`
}

// NewPagination computes page metadata for total matching items.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
		Limit:       limit,
	}
}
