package task

import (
	"strings"
	"time"
)

// Status represents the state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Priority represents how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Category groups tasks by area of life.
type Category string

const (
	CategoryWork      Category = "work"
	CategoryPersonal  Category = "personal"
	CategoryShopping  Category = "shopping"
	CategoryHealth    Category = "health"
	CategoryEducation Category = "education"
	CategoryOther     Category = "other"
)

// Defaults applied on creation when a field is absent.
const (
	DefaultStatus   = StatusPending
	DefaultPriority = PriorityMedium
	DefaultCategory = CategoryOther
)

// Field length bounds, counted in characters after trimming.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

var (
	statuses   = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}
	priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
	categories = []Category{CategoryWork, CategoryPersonal, CategoryShopping, CategoryHealth, CategoryEducation, CategoryOther}
)

// Statuses returns every known status.
func Statuses() []Status { return append([]Status(nil), statuses...) }

// Priorities returns every known priority.
func Priorities() []Priority { return append([]Priority(nil), priorities...) }

// Categories returns every known category.
func Categories() []Category { return append([]Category(nil), categories...) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, v := range priorities {
		if v == p {
			return true
		}
	}
	return false
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}

// Closed reports whether the status no longer counts towards overdue or
// due-today totals.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Task is the core domain entity: one personal todo item owned by one user.
type Task struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Owner       string     `gorm:"index;not null;size:64" json:"owner"`
	Title       string     `gorm:"size:100;not null" json:"title"`
	Description string     `gorm:"size:500;not null" json:"description"`
	Status      Status     `gorm:"size:16;not null;index" json:"status"`
	Priority    Priority   `gorm:"size:16;not null" json:"priority"`
	Category    Category   `gorm:"size:16;not null" json:"category"`
	DueDate     *time.Time `gorm:"index" json:"dueDate"`
	Tags        []string   `gorm:"serializer:json" json:"tags"`
	CreatedAt   time.Time  `gorm:"autoCreateTime:false;index" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime:false" json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Clone returns a deep copy so callers never share slices or time pointers
// with a store.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

// CleanTags trims every tag and drops the blank ones. Order and duplicates
// are preserved. The result is never nil.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
