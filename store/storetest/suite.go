// Package storetest holds the behaviour every task.Store driver must share.
package storetest

import (
	"context"
	"math"
	"testing"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) domain.Store

var base = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// Run exercises newStore against the shared store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndFind", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
	t.Run("FindMissing", func(t *testing.T) { testFindMissing(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("Filters", func(t *testing.T) { testFilters(t, newStore(t)) })
	t.Run("SearchIsLiteral", func(t *testing.T) { testSearchIsLiteral(t, newStore(t)) })
	t.Run("SortAndPage", func(t *testing.T) { testSortAndPage(t, newStore(t)) })
	t.Run("CountBy", func(t *testing.T) { testCountBy(t, newStore(t)) })
	t.Run("DueRange", func(t *testing.T) { testDueRange(t, newStore(t)) })
}

// NewTask builds a valid task for owner created at base+offset.
func NewTask(owner, title string, offset time.Duration) *domain.Task {
	at := base.Add(offset)
	return &domain.Task{
		ID:          domain.NewID(),
		Owner:       owner,
		Title:       title,
		Description: title + " description",
		Status:      domain.DefaultStatus,
		Priority:    domain.DefaultPriority,
		Category:    domain.DefaultCategory,
		Tags:        []string{},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func insert(t *testing.T, s domain.Store, tasks ...*domain.Task) {
	t.Helper()
	for _, task := range tasks {
		require.NoError(t, s.Insert(context.Background(), task))
	}
}

func ids(tasks []*domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func testInsertAndFind(t *testing.T, s domain.Store) {
	ctx := context.Background()
	due := base.Add(48 * time.Hour)
	task := NewTask("u1", "Write report", 0)
	task.DueDate = &due
	task.Tags = []string{"work", "q4"}
	task.Priority = domain.PriorityHigh
	insert(t, s, task)

	got, err := s.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "u1", got.Owner)
	assert.Equal(t, "Write report", got.Title)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"work", "q4"}, got.Tags)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	assert.Nil(t, got.CompletedAt)
	assert.True(t, task.CreatedAt.Equal(got.CreatedAt))

	// Mutating the returned copy must not reach the store.
	got.Title = "changed"
	again, err := s.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", again.Title)
}

func testFindMissing(t *testing.T, s domain.Store) {
	_, err := s.FindByID(context.Background(), domain.NewID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testUpdate(t *testing.T, s domain.Store) {
	ctx := context.Background()
	due := base.Add(24 * time.Hour)
	task := NewTask("u1", "Old title", 0)
	task.DueDate = &due
	task.Tags = []string{"a"}
	insert(t, s, task)

	title := "New title"
	status := domain.StatusCompleted
	done := base.Add(time.Hour)
	tags := []string{"b", "c"}
	updated, err := s.Update(ctx, task.ID, domain.Patch{
		Title:       &title,
		Status:      &status,
		DueDate:     domain.NullTime{Set: true},
		Tags:        &tags,
		CompletedAt: domain.NullTime{Set: true, Time: &done},
		UpdatedAt:   done,
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "Old title description", updated.Description)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, []string{"b", "c"}, updated.Tags)
	require.NotNil(t, updated.CompletedAt)
	assert.True(t, done.Equal(*updated.CompletedAt))
	assert.True(t, done.Equal(updated.UpdatedAt))

	stored, err := s.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "New title", stored.Title)
	assert.Nil(t, stored.DueDate)
	assert.Equal(t, "u1", stored.Owner)
	assert.True(t, task.CreatedAt.Equal(stored.CreatedAt))

	_, err = s.Update(ctx, domain.NewID(), domain.Patch{Title: &title, UpdatedAt: done})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDelete(t *testing.T, s domain.Store) {
	ctx := context.Background()
	task := NewTask("u1", "Delete me", 0)
	insert(t, s, task)

	require.NoError(t, s.Delete(ctx, task.ID))
	_, err := s.FindByID(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, task.ID), domain.ErrNotFound)
}

func testFilters(t *testing.T, s domain.Store) {
	ctx := context.Background()
	milk := NewTask("u1", "Buy Milk", 0)
	milk.Category = domain.CategoryShopping
	milk.Tags = []string{"Groceries"}
	report := NewTask("u1", "Quarterly report", time.Minute)
	report.Category = domain.CategoryWork
	report.Priority = domain.PriorityUrgent
	report.Description = "Numbers for the board"
	other := NewTask("u2", "Buy milk too", 2*time.Minute)
	insert(t, s, milk, report, other)

	find := func(f domain.Filter) []string {
		t.Helper()
		got, err := s.Find(ctx, domain.Query{Filter: f, Sort: domain.Sort{Field: domain.SortCreatedAt}, Page: 1, Limit: 10})
		require.NoError(t, err)
		return ids(got)
	}

	assert.Equal(t, []string{milk.ID, report.ID}, find(domain.Filter{Owner: "u1"}))
	assert.Equal(t, []string{other.ID}, find(domain.Filter{Owner: "u2"}))
	assert.Empty(t, find(domain.Filter{Owner: "nobody"}))
	assert.Equal(t, []string{report.ID}, find(domain.Filter{Owner: "u1", Category: domain.CategoryWork}))
	assert.Equal(t, []string{report.ID}, find(domain.Filter{Owner: "u1", Priority: domain.PriorityUrgent}))
	assert.Empty(t, find(domain.Filter{Owner: "u1", Status: domain.StatusCompleted}))
	assert.Equal(t, []string{milk.ID}, find(domain.Filter{Owner: "u1", Search: "milk"}))
	assert.Equal(t, []string{report.ID}, find(domain.Filter{Owner: "u1", Search: "BOARD"}))
	assert.Equal(t, []string{milk.ID}, find(domain.Filter{Owner: "u1", Search: "grocer"}))
	assert.Equal(t, []string{milk.ID}, find(domain.Filter{Owner: "u1", StatusNotIn: []domain.Status{domain.StatusCompleted}, Category: domain.CategoryShopping}))

	n, err := s.Count(ctx, domain.Filter{Owner: "u1", Search: "u"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func testSearchIsLiteral(t *testing.T, s domain.Store) {
	ctx := context.Background()
	pct := NewTask("u1", "Save 50% now", 0)
	plain := NewTask("u1", "Save 500 now", time.Minute)
	under := NewTask("u1", "snake_case name", 2*time.Minute)
	insert(t, s, pct, plain, under)

	count := func(search string) int64 {
		t.Helper()
		n, err := s.Count(ctx, domain.Filter{Owner: "u1", Search: search})
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, int64(1), count("50%"))
	assert.Equal(t, int64(1), count("e_c"))
	assert.Equal(t, int64(0), count("s.ve"))
	assert.Equal(t, int64(0), count(`\`))
}

func testSortAndPage(t *testing.T, s domain.Store) {
	ctx := context.Background()
	day := 24 * time.Hour
	dueSoon := base.Add(day)
	dueLater := base.Add(3 * day)

	a := NewTask("u1", "charlie", 0)
	b := NewTask("u1", "alpha", time.Minute)
	b.DueDate = &dueLater
	c := NewTask("u1", "bravo", 2*time.Minute)
	c.DueDate = &dueSoon
	insert(t, s, a, b, c)

	page := func(sort domain.Sort, pageNo, limit int) []string {
		t.Helper()
		got, err := s.Find(ctx, domain.Query{Filter: domain.Filter{Owner: "u1"}, Sort: sort, Page: pageNo, Limit: limit})
		require.NoError(t, err)
		return ids(got)
	}

	assert.Equal(t, []string{c.ID, b.ID, a.ID}, page(domain.Sort{Field: domain.SortCreatedAt, Desc: true}, 1, 10))
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, page(domain.Sort{Field: domain.SortTitle}, 1, 10))
	assert.Equal(t, []string{a.ID, c.ID, b.ID}, page(domain.Sort{Field: domain.SortDueDate}, 1, 10))
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, page(domain.Sort{Field: domain.SortDueDate, Desc: true}, 1, 10))

	assert.Equal(t, []string{c.ID, b.ID}, page(domain.Sort{Field: domain.SortCreatedAt, Desc: true}, 1, 2))
	assert.Equal(t, []string{a.ID}, page(domain.Sort{Field: domain.SortCreatedAt, Desc: true}, 2, 2))
	assert.Empty(t, page(domain.Sort{Field: domain.SortCreatedAt, Desc: true}, 3, 2))
	assert.Empty(t, page(domain.Sort{Field: domain.SortCreatedAt, Desc: true}, domain.MaxPage, domain.MaxLimit))
	assert.Empty(t, page(domain.Sort{Field: domain.SortCreatedAt, Desc: true}, math.MaxInt, 50))
}

func testCountBy(t *testing.T, s domain.Store) {
	ctx := context.Background()
	a := NewTask("u1", "a", 0)
	b := NewTask("u1", "b", time.Minute)
	b.Status = domain.StatusCompleted
	b.Priority = domain.PriorityHigh
	c := NewTask("u1", "c", 2*time.Minute)
	c.Status = domain.StatusCompleted
	other := NewTask("u2", "d", 3*time.Minute)
	insert(t, s, a, b, c, other)

	byStatus, err := s.CountBy(ctx, domain.Filter{Owner: "u1"}, domain.GroupByStatus)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"pending": 1, "completed": 2}, byStatus)

	byPriority, err := s.CountBy(ctx, domain.Filter{Owner: "u1"}, domain.GroupByPriority)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"medium": 2, "high": 1}, byPriority)

	byCategory, err := s.CountBy(ctx, domain.Filter{Owner: "u1"}, domain.GroupByCategory)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"other": 3}, byCategory)

	empty, err := s.CountBy(ctx, domain.Filter{Owner: "nobody"}, domain.GroupByStatus)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDueRange(t *testing.T, s domain.Store) {
	ctx := context.Background()
	start := base.Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	atStart := start
	atEnd := end
	inside := start.Add(12 * time.Hour)

	a := NewTask("u1", "starts today", 0)
	a.DueDate = &atStart
	b := NewTask("u1", "due tomorrow", time.Minute)
	b.DueDate = &atEnd
	c := NewTask("u1", "midday", 2*time.Minute)
	c.DueDate = &inside
	c.Status = domain.StatusCancelled
	d := NewTask("u1", "no due date", 3*time.Minute)
	insert(t, s, a, b, c, d)

	n, err := s.Count(ctx, domain.Filter{Owner: "u1", DueFrom: &start, DueBefore: &end})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Count(ctx, domain.Filter{
		Owner: "u1", DueFrom: &start, DueBefore: &end,
		StatusNotIn: []domain.Status{domain.StatusCompleted, domain.StatusCancelled},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Count(ctx, domain.Filter{Owner: "u1", DueBefore: &end})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
