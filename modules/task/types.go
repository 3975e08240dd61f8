package task

import (
	"context"
	"errors"

	domain "github.com/example/task-tracker/domain/task"
)

// Service names registered by the task module.
const (
	ServiceListTasks  = "list-tasks"
	ServiceGetTask    = "get-task"
	ServiceCreateTask = "create-task"
	ServiceUpdateTask = "update-task"
	ServiceDeleteTask = "delete-task"
	ServiceTaskStats  = "task-stats"
)

// Error codes carried in ErrorBody.
const (
	CodeValidation = "validation_error"
	CodeInvalidID  = "invalid_id"
	CodeNotFound   = "not_found"
	CodeForbidden  = "forbidden"
	CodeStore      = "store_error"
	CodeInternal   = "internal_error"
)

// ErrorBody is the failure half of every task service response. It lets
// typed errors survive the trip through the service container.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// ListTasksRequest is the request for listing tasks.
type ListTasksRequest struct {
	OwnerID string            `json:"owner_id"`
	Params  domain.ListParams `json:"params"`
}

// ListTasksResponse is the response for listing tasks.
type ListTasksResponse struct {
	Tasks      []*domain.Task    `json:"tasks"`
	Pagination domain.Pagination `json:"pagination"`
	Error      *ErrorBody        `json:"error,omitempty"`
}

// GetTaskRequest is the request for getting a task.
type GetTaskRequest struct {
	OwnerID string `json:"owner_id"`
	TaskID  string `json:"task_id"`
}

// CreateTaskRequest is the request for creating a task. Fields is the raw
// client submission.
type CreateTaskRequest struct {
	OwnerID string        `json:"owner_id"`
	Fields  domain.Fields `json:"fields"`
}

// UpdateTaskRequest is the request for updating a task. Only keys present
// in Fields are changed; a null dueDate clears it.
type UpdateTaskRequest struct {
	OwnerID string        `json:"owner_id"`
	TaskID  string        `json:"task_id"`
	Fields  domain.Fields `json:"fields"`
}

// TaskResponse is the response for a single task.
type TaskResponse struct {
	Task  *domain.Task `json:"task,omitempty"`
	Error *ErrorBody   `json:"error,omitempty"`
}

// DeleteTaskRequest is the request for deleting a task.
type DeleteTaskRequest struct {
	OwnerID string `json:"owner_id"`
	TaskID  string `json:"task_id"`
}

// DeleteTaskResponse is the response for deleting a task.
type DeleteTaskResponse struct {
	Deleted bool       `json:"deleted"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// TaskStatsRequest is the request for task statistics.
type TaskStatsRequest struct {
	OwnerID string `json:"owner_id"`
}

// TaskStatsResponse is the response for task statistics.
type TaskStatsResponse struct {
	Stats *domain.Stats `json:"stats,omitempty"`
	Error *ErrorBody    `json:"error,omitempty"`
}

// TaskPort defines the interface for task operations (hexagonal port).
// Driving adapters such as the HTTP API use it to reach the task engine.
type TaskPort interface {
	ListTasks(ctx context.Context, ownerID string, params domain.ListParams) (*Page, error)
	GetTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error)
	CreateTask(ctx context.Context, ownerID string, fields domain.Fields) (*domain.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID string, fields domain.Fields) (*domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	TaskStats(ctx context.Context, ownerID string) (*domain.Stats, error)
}

// NewErrorBody encodes err for a service response.
func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return &ErrorBody{Code: CodeValidation, Message: "Validation failed", Fields: ve.Fields}
	case errors.Is(err, domain.ErrInvalidID):
		return &ErrorBody{Code: CodeInvalidID, Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return &ErrorBody{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return &ErrorBody{Code: CodeForbidden, Message: err.Error()}
	case domain.IsStoreError(err):
		return &ErrorBody{Code: CodeStore, Message: err.Error()}
	default:
		return &ErrorBody{Code: CodeInternal, Message: err.Error()}
	}
}

// Err rebuilds the error that NewErrorBody encoded.
func (e *ErrorBody) Err() error {
	if e == nil {
		return nil
	}
	switch e.Code {
	case CodeValidation:
		return &domain.ValidationError{Fields: e.Fields}
	case CodeInvalidID:
		return domain.ErrInvalidID
	case CodeNotFound:
		return domain.ErrNotFound
	case CodeForbidden:
		return domain.ErrForbidden
	case CodeStore:
		return &domain.StoreError{Op: "remote", Err: errors.New(e.Message)}
	default:
		return errors.New(e.Message)
	}
}
