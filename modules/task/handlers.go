package task

import (
	"context"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/go-monolith/mono"
)

// listTasks handles the list-tasks service request.
func (m *TaskModule) listTasks(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	page, err := m.svc.List(ctx, req.OwnerID, req.Params)
	if err != nil {
		return ListTasksResponse{Tasks: []*domain.Task{}, Error: m.errorBody(ServiceListTasks, err)}, nil
	}
	return ListTasksResponse{Tasks: page.Tasks, Pagination: page.Pagination}, nil
}

// getTask handles the get-task service request.
func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.svc.Get(ctx, req.OwnerID, req.TaskID)
	if err != nil {
		return TaskResponse{Error: m.errorBody(ServiceGetTask, err)}, nil
	}
	return TaskResponse{Task: t}, nil
}

// createTask handles the create-task service request.
func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.svc.Create(ctx, req.OwnerID, req.Fields)
	if err != nil {
		return TaskResponse{Error: m.errorBody(ServiceCreateTask, err)}, nil
	}
	m.logger.Info("task created", "task_id", t.ID, "owner", t.Owner)
	return TaskResponse{Task: t}, nil
}

// updateTask handles the update-task service request.
func (m *TaskModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.svc.Update(ctx, req.OwnerID, req.TaskID, req.Fields)
	if err != nil {
		return TaskResponse{Error: m.errorBody(ServiceUpdateTask, err)}, nil
	}
	m.logger.Info("task updated", "task_id", t.ID, "status", t.Status)
	return TaskResponse{Task: t}, nil
}

// deleteTask handles the delete-task service request.
func (m *TaskModule) deleteTask(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	if err := m.svc.Delete(ctx, req.OwnerID, req.TaskID); err != nil {
		return DeleteTaskResponse{Error: m.errorBody(ServiceDeleteTask, err)}, nil
	}
	m.logger.Info("task deleted", "task_id", req.TaskID)
	return DeleteTaskResponse{Deleted: true}, nil
}

// taskStats handles the task-stats service request.
func (m *TaskModule) taskStats(ctx context.Context, req TaskStatsRequest, _ *mono.Msg) (TaskStatsResponse, error) {
	st, err := m.svc.Stats(ctx, req.OwnerID)
	if err != nil {
		return TaskStatsResponse{Error: m.errorBody(ServiceTaskStats, err)}, nil
	}
	return TaskStatsResponse{Stats: st}, nil
}

// errorBody encodes err for the response and logs failures that are not
// the caller's fault.
func (m *TaskModule) errorBody(service string, err error) *ErrorBody {
	body := NewErrorBody(err)
	switch body.Code {
	case CodeStore, CodeInternal:
		m.logger.Error("task service failed", "service", service, "error", err)
	default:
		m.logger.Debug("task request rejected", "service", service, "code", body.Code)
	}
	return body
}
