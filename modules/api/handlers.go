package api

import (
	"errors"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/modules/audit"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)
	app.Get("/api/health", m.healthHandler)

	tasks := app.Group("/api/tasks", AuthMiddleware(m.verifier))
	tasks.Get("/", m.listTasks)
	tasks.Get("/stats", m.taskStats)
	tasks.Get("/:taskId", m.getTask)
	tasks.Post("/", m.createTask)
	tasks.Put("/:taskId", m.updateTask)
	tasks.Delete("/:taskId", m.deleteTask)

	app.Get("/api/audit", AuthMiddleware(m.verifier), m.auditTrail)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(failure("Route not found"))
	})
}

// healthHandler handles GET /health and GET /api/health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    true,
		Msg:       "Server is running",
		Timestamp: m.now().UTC().Format(time.RFC3339Nano),
	})
}

// listTasks handles GET /api/tasks.
func (m *APIModule) listTasks(c *fiber.Ctx) error {
	params := domain.ListParams{
		Status:    c.Query("status"),
		Priority:  c.Query("priority"),
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		Page:      c.Query("page"),
		Limit:     c.Query("limit"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}

	page, err := m.taskAdapter.ListTasks(c.UserContext(), ownerFrom(c), params)
	if err != nil {
		return m.writeError(c, err, "")
	}

	return c.JSON(ListResponse{
		Status: true,
		Msg:    "Tasks retrieved successfully",
		Data:   ListData{Tasks: page.Tasks, Pagination: page.Pagination},
	})
}

// getTask handles GET /api/tasks/:taskId.
func (m *APIModule) getTask(c *fiber.Ctx) error {
	t, err := m.taskAdapter.GetTask(c.UserContext(), ownerFrom(c), c.Params("taskId"))
	if err != nil {
		return m.writeError(c, err, "")
	}
	return c.JSON(TaskResponse{Status: true, Msg: "Task retrieved successfully", Task: t})
}

// createTask handles POST /api/tasks.
func (m *APIModule) createTask(c *fiber.Ctx) error {
	fields, ok := parseFields(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(failure("Invalid request body"))
	}

	t, err := m.taskAdapter.CreateTask(c.UserContext(), ownerFrom(c), fields)
	if err != nil {
		return m.writeError(c, err, "")
	}
	return c.Status(fiber.StatusCreated).JSON(TaskResponse{Status: true, Msg: "Task created successfully", Task: t})
}

// updateTask handles PUT /api/tasks/:taskId.
func (m *APIModule) updateTask(c *fiber.Ctx) error {
	fields, ok := parseFields(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(failure("Invalid request body"))
	}

	t, err := m.taskAdapter.UpdateTask(c.UserContext(), ownerFrom(c), c.Params("taskId"), fields)
	if err != nil {
		return m.writeError(c, err, "update")
	}
	return c.JSON(TaskResponse{Status: true, Msg: "Task updated successfully", Task: t})
}

// deleteTask handles DELETE /api/tasks/:taskId.
func (m *APIModule) deleteTask(c *fiber.Ctx) error {
	if err := m.taskAdapter.DeleteTask(c.UserContext(), ownerFrom(c), c.Params("taskId")); err != nil {
		return m.writeError(c, err, "delete")
	}
	return c.JSON(Envelope{Status: true, Msg: "Task deleted successfully"})
}

// taskStats handles GET /api/tasks/stats.
func (m *APIModule) taskStats(c *fiber.Ctx) error {
	st, err := m.taskAdapter.TaskStats(c.UserContext(), ownerFrom(c))
	if err != nil {
		return m.writeError(c, err, "")
	}
	return c.JSON(StatsResponse{Status: true, Msg: "Task statistics retrieved successfully", Stats: st})
}

// parseFields decodes a JSON object body. An empty body is an empty
// submission.
func parseFields(c *fiber.Ctx) (domain.Fields, bool) {
	fields := domain.Fields{}
	if len(c.Body()) == 0 {
		return fields, true
	}
	if err := c.App().Config().JSONDecoder(c.Body(), &fields); err != nil {
		return nil, false
	}
	if fields == nil {
		fields = domain.Fields{}
	}
	return fields, true
}

// writeError maps task errors to status codes. op names the write for the
// access-denied message.
func (m *APIModule) writeError(c *fiber.Ctx, err error, op string) error {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(ValidationErrorResponse{
			Status: false,
			Msg:    "Validation failed",
			Errors: ve.Fields,
		})
	case errors.Is(err, domain.ErrInvalidID):
		return c.Status(fiber.StatusBadRequest).JSON(failure("Invalid task ID format"))
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(failure("Task not found"))
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(failure("Access denied. You can only " + op + " your own tasks"))
	default:
		m.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(failure("Internal Server Error"))
	}
}

// auditTrail handles GET /api/audit: the caller's task events and the denied
// writes that involve them.
func (m *APIModule) auditTrail(c *fiber.Ctx) error {
	kind := c.Query("type")
	if kind != "" && !audit.ValidType(kind) {
		return c.Status(fiber.StatusBadRequest).JSON(failure("Invalid audit entry type"))
	}

	entries, err := m.auditAdapter.Trail(c.UserContext(), ownerFrom(c), kind, domain.NormalizeLimit(c.Query("limit")))
	if err != nil {
		return m.writeError(c, err, "")
	}

	return c.JSON(AuditResponse{
		Status:  true,
		Msg:     "Audit trail retrieved successfully",
		Entries: entries,
	})
}
