package task

import (
	"context"
	"time"
)

// Store is the durable task collection the engine runs against. Every
// method is a single atomic operation on the backing store; the engine adds
// no locking or transactions on top.
//
// Implementations return ErrNotFound for missing ids and wrap every other
// failure in a *StoreError.
type Store interface {
	Insert(ctx context.Context, t *Task) error
	FindByID(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, id string, p Patch) (*Task, error)
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, q Query) ([]*Task, error)
	Count(ctx context.Context, f Filter) (int64, error)
	CountBy(ctx context.Context, f Filter, field GroupField) (map[string]int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// NullTime is an optional assignment of a nullable timestamp. Set with a nil
// Time clears the column.
type NullTime struct {
	Set  bool
	Time *time.Time
}

// Patch is a partial update: only non-nil pointers and Set flags are written.
// UpdatedAt is always written.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	Category    *Category
	DueDate     NullTime
	Tags        *[]string
	CompletedAt NullTime
	UpdatedAt   time.Time
}

// Apply writes the patch onto t in place.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.DueDate.Set {
		t.DueDate = copyTime(p.DueDate.Time)
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.CompletedAt.Set {
		t.CompletedAt = copyTime(p.CompletedAt.Time)
	}
	if !p.UpdatedAt.IsZero() {
		t.UpdatedAt = p.UpdatedAt
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
