package api

import (
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/modules/audit"
)

// Envelope is the base body of every response.
type Envelope struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg"`
}

// ListData holds one page of tasks.
type ListData struct {
	Tasks      []*domain.Task    `json:"tasks"`
	Pagination domain.Pagination `json:"pagination"`
}

// ListResponse is the body of GET /api/tasks.
type ListResponse struct {
	Status bool     `json:"status"`
	Msg    string   `json:"msg"`
	Data   ListData `json:"data"`
}

// TaskResponse is the body of single-task responses.
type TaskResponse struct {
	Status bool         `json:"status"`
	Msg    string       `json:"msg"`
	Task   *domain.Task `json:"task"`
}

// StatsResponse is the body of GET /api/tasks/stats.
type StatsResponse struct {
	Status bool          `json:"status"`
	Msg    string        `json:"msg"`
	Stats  *domain.Stats `json:"stats"`
}

// ValidationErrorResponse lists every rejected field.
type ValidationErrorResponse struct {
	Status bool                `json:"status"`
	Msg    string              `json:"msg"`
	Errors []domain.FieldError `json:"errors"`
}

// AuditResponse is the body of GET /api/audit.
type AuditResponse struct {
	Status  bool          `json:"status"`
	Msg     string        `json:"msg"`
	Entries []audit.Entry `json:"entries"`
}

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status    bool   `json:"status"`
	Msg       string `json:"msg"`
	Timestamp string `json:"timestamp"`
}

func failure(msg string) Envelope {
	return Envelope{Status: false, Msg: msg}
}
