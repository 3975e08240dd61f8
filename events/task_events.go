package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// TaskCreatedEvent is emitted when a new task is created.
type TaskCreatedEvent struct {
	TaskID    string    `json:"task_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskCreatedV1 is the typed event definition for task creation.
// Subject: events.task.v1.task-created
var TaskCreatedV1 = helper.EventDefinition[TaskCreatedEvent](
	"task", "TaskCreated", "v1",
)

// TaskUpdatedEvent is emitted after every successful update. Changed lists
// the client-facing names of the fields whose values differ.
type TaskUpdatedEvent struct {
	TaskID     string    `json:"task_id"`
	OwnerID    string    `json:"owner_id"`
	Changed    []string  `json:"changed"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TaskUpdatedV1 is the typed event definition for task updates.
// Subject: events.task.v1.task-updated
var TaskUpdatedV1 = helper.EventDefinition[TaskUpdatedEvent](
	"task", "TaskUpdated", "v1",
)

// TaskCompletedEvent is emitted when an update moves a task into completed.
type TaskCompletedEvent struct {
	TaskID      string    `json:"task_id"`
	OwnerID     string    `json:"owner_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// TaskCompletedV1 is the typed event definition for task completion.
// Subject: events.task.v1.task-completed
var TaskCompletedV1 = helper.EventDefinition[TaskCompletedEvent](
	"task", "TaskCompleted", "v1",
)

// TaskDeletedEvent is emitted when a task is deleted.
type TaskDeletedEvent struct {
	TaskID    string    `json:"task_id"`
	OwnerID   string    `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// TaskDeletedV1 is the typed event definition for task deletion.
// Subject: events.task.v1.task-deleted
var TaskDeletedV1 = helper.EventDefinition[TaskDeletedEvent](
	"task", "TaskDeleted", "v1",
)

// TaskAccessDeniedEvent is emitted when a user tries to change a task owned
// by someone else.
type TaskAccessDeniedEvent struct {
	TaskID      string    `json:"task_id"`
	OwnerID     string    `json:"owner_id"`
	RequesterID string    `json:"requester_id"`
	Operation   string    `json:"operation"`
	DeniedAt    time.Time `json:"denied_at"`
}

// TaskAccessDeniedV1 is the typed event definition for rejected writes.
// Subject: events.task.v1.task-access-denied
var TaskAccessDeniedV1 = helper.EventDefinition[TaskAccessDeniedEvent](
	"task", "TaskAccessDenied", "v1",
)
