package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/task-tracker/config"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/modules/audit"
	"github.com/example/task-tracker/modules/task"
	"github.com/example/task-tracker/store/memstore"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// servicePort implements task.TaskPort directly over a Service.
type servicePort struct {
	svc *task.Service
}

func (p servicePort) ListTasks(ctx context.Context, ownerID string, params domain.ListParams) (*task.Page, error) {
	return p.svc.List(ctx, ownerID, params)
}

func (p servicePort) GetTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	return p.svc.Get(ctx, ownerID, taskID)
}

func (p servicePort) CreateTask(ctx context.Context, ownerID string, fields domain.Fields) (*domain.Task, error) {
	return p.svc.Create(ctx, ownerID, fields)
}

func (p servicePort) UpdateTask(ctx context.Context, ownerID, taskID string, fields domain.Fields) (*domain.Task, error) {
	return p.svc.Update(ctx, ownerID, taskID, fields)
}

func (p servicePort) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	return p.svc.Delete(ctx, ownerID, taskID)
}

func (p servicePort) TaskStats(ctx context.Context, ownerID string) (*domain.Stats, error) {
	return p.svc.Stats(ctx, ownerID)
}

// brokenPort fails every call.
type brokenPort struct {
	servicePort
	err error
}

func (p brokenPort) ListTasks(context.Context, string, domain.ListParams) (*task.Page, error) {
	return nil, p.err
}

func (p brokenPort) TaskStats(context.Context, string) (*domain.Stats, error) {
	return nil, p.err
}

// stubAudit answers trail reads with fixed entries and remembers the query.
type stubAudit struct {
	entries []audit.Entry
	err     error

	owner, kind string
	limit       int
}

func (s *stubAudit) Trail(_ context.Context, ownerID, kind string, limit int) ([]audit.Entry, error) {
	s.owner, s.kind, s.limit = ownerID, kind, limit
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

func newTestApp(t *testing.T, port task.TaskPort) *fiber.App {
	t.Helper()
	return newAuditApp(t, port, &stubAudit{entries: []audit.Entry{}})
}

func newAuditApp(t *testing.T, port task.TaskPort, trail audit.AuditPort) *fiber.App {
	t.Helper()
	m := NewModule(config.HTTPConfig{Addr: ":0"}, config.AuthConfig{JWTSecret: testSecret}, &mockLogger{})
	m.taskAdapter = port
	m.auditAdapter = trail
	m.now = func() time.Time { return time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC) }
	return m.newApp(false)
}

func newServiceApp(t *testing.T) *fiber.App {
	return newTestApp(t, servicePort{svc: task.NewService(memstore.New())})
}

func signToken(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func tokenFor(t *testing.T, userID string) string {
	return signToken(t, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, jwt.SigningMethodHS256, []byte(testSecret))
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestAuthMiddleware(t *testing.T) {
	expired := signToken(t, Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}, jwt.SigningMethodHS256, []byte(testSecret))
	wrongKey := signToken(t, Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, jwt.SigningMethodHS256, []byte("other-secret"))
	noExpiry := signToken(t, Claims{UserID: "u1"}, jwt.SigningMethodHS256, []byte(testSecret))
	noOwner := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, jwt.SigningMethodHS256, []byte(testSecret))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized, wantMsg: "Authorization header is required"},
		{name: "basic scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid authorization header format. Use: Bearer <token>"},
		{name: "garbage token", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
		{name: "wrong key", header: "Bearer " + wrongKey, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
		{name: "no expiry", header: "Bearer " + noExpiry, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
		{name: "no owner", header: "Bearer " + noOwner, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid or expired token"},
		{name: "valid", header: "Bearer " + tokenFor(t, "u1"), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(AuthMiddleware(NewTokenVerifier(testSecret, "")))
			app.Get("/test", func(c *fiber.Ctx) error {
				return c.JSON(fiber.Map{"owner": ownerFrom(c)})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.wantMsg != "" {
				assert.Equal(t, false, body["status"])
				assert.Equal(t, tt.wantMsg, body["msg"])
			} else {
				assert.Equal(t, "u1", body["owner"])
			}
		})
	}
}

func TestTokenVerifier_RejectsOtherAlgorithms(t *testing.T) {
	token := signToken(t, Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)

	_, err := NewTokenVerifier(testSecret, "").Verify(token)
	assert.Error(t, err)
}

func TestTokenVerifier_SubjectFallbackAndIssuer(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "from-sub",
		Issuer:    "task-tracker",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token := signToken(t, claims, jwt.SigningMethodHS256, []byte(testSecret))

	got, err := NewTokenVerifier(testSecret, "task-tracker").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "from-sub", got.Owner())

	_, err = NewTokenVerifier(testSecret, "someone-else").Verify(token)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	app := newServiceApp(t)
	for _, path := range []string{"/health", "/api/health"} {
		status, body := do(t, app, "GET", path, "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["status"])
		assert.Equal(t, "Server is running", body["msg"])
		assert.Equal(t, "2026-10-14T15:00:00Z", body["timestamp"])
	}
}

func TestRouteNotFound(t *testing.T) {
	status, body := do(t, newServiceApp(t), "GET", "/api/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Route not found", body["msg"])
}

func TestTaskLifecycle(t *testing.T) {
	app := newServiceApp(t)
	token := tokenFor(t, "u1")

	status, body := do(t, app, "POST", "/api/tasks", token, map[string]any{
		"title":       "Buy milk",
		"description": "Two litres",
		"category":    "shopping",
		"dueDate":     "2026-10-15",
		"tags":        []string{"dairy"},
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Task created successfully", body["msg"])
	created := body["task"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "u1", created["owner"])
	assert.Nil(t, created["completedAt"])

	status, body = do(t, app, "GET", "/api/tasks/"+id, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Task retrieved successfully", body["msg"])

	status, body = do(t, app, "PUT", "/api/tasks/"+id, token, map[string]any{"status": "completed", "dueDate": nil})
	require.Equal(t, http.StatusOK, status, body)
	updated := body["task"].(map[string]any)
	assert.Equal(t, "completed", updated["status"])
	assert.NotNil(t, updated["completedAt"])
	assert.Nil(t, updated["dueDate"])

	status, body = do(t, app, "GET", "/api/tasks?status=completed&search=MILK", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Tasks retrieved successfully", body["msg"])
	data := body["data"].(map[string]any)
	assert.Len(t, data["tasks"], 1)
	pagination := data["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["totalItems"])
	assert.EqualValues(t, 1, pagination["currentPage"])
	assert.EqualValues(t, 10, pagination["limit"])

	status, body = do(t, app, "GET", "/api/tasks/stats", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Task statistics retrieved successfully", body["msg"])
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["total"])
	assert.Equal(t, map[string]any{"completed": float64(1)}, stats["byStatus"])

	status, body = do(t, app, "DELETE", "/api/tasks/"+id, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"status": true, "msg": "Task deleted successfully"}, body)

	status, body = do(t, app, "GET", "/api/tasks/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Task not found", body["msg"])
}

func TestEmptyListShape(t *testing.T) {
	status, body := do(t, newServiceApp(t), "GET", "/api/tasks?limit=1000", tokenFor(t, "nobody"), nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{}, data["tasks"])
	pagination := data["pagination"].(map[string]any)
	assert.EqualValues(t, 100, pagination["limit"])
	assert.EqualValues(t, 0, pagination["totalPages"])
	assert.Equal(t, false, pagination["hasNextPage"])
}

func TestErrorMapping(t *testing.T) {
	app := newServiceApp(t)
	owner := tokenFor(t, "owner")
	intruder := tokenFor(t, "intruder")

	_, body := do(t, app, "POST", "/api/tasks", owner, map[string]any{"title": "Mine", "description": "private"})
	id := body["task"].(map[string]any)["id"].(string)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{name: "invalid id", method: "GET", path: "/api/tasks/not-a-uuid", token: owner, wantStatus: 400, wantMsg: "Invalid task ID format"},
		{name: "missing task", method: "GET", path: "/api/tasks/" + domain.NewID(), token: owner, wantStatus: 404, wantMsg: "Task not found"},
		{name: "other owner read", method: "GET", path: "/api/tasks/" + id, token: intruder, wantStatus: 404, wantMsg: "Task not found"},
		{name: "other owner update", method: "PUT", path: "/api/tasks/" + id, token: intruder, body: map[string]any{"title": "x"}, wantStatus: 403, wantMsg: "Access denied. You can only update your own tasks"},
		{name: "other owner delete", method: "DELETE", path: "/api/tasks/" + id, token: intruder, wantStatus: 403, wantMsg: "Access denied. You can only delete your own tasks"},
		{name: "malformed body", method: "POST", path: "/api/tasks", token: owner, body: "{not json", wantStatus: 400, wantMsg: "Invalid request body"},
		{name: "array body", method: "PUT", path: "/api/tasks/" + id, token: owner, body: "[1,2]", wantStatus: 400, wantMsg: "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, false, body["status"])
			assert.Equal(t, tt.wantMsg, body["msg"])
		})
	}
}

func TestValidationErrors(t *testing.T) {
	app := newServiceApp(t)
	status, body := do(t, app, "POST", "/api/tasks", tokenFor(t, "u1"), map[string]any{
		"title":    "",
		"priority": "critical",
		"tags":     "not-an-array",
	})

	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["msg"])
	errs := body["errors"].([]any)
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		entry := e.(map[string]any)
		fields = append(fields, entry["field"].(string))
		assert.NotEmpty(t, entry["message"])
	}
	assert.Equal(t, []string{"title", "description", "priority", "tags"}, fields)
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	port := brokenPort{err: &domain.StoreError{Op: "find", Err: errors.New("connection reset by peer")}}
	app := newTestApp(t, port)
	token := tokenFor(t, "u1")

	for _, path := range []string{"/api/tasks", "/api/tasks/stats"} {
		status, body := do(t, app, "GET", path, token, nil)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, map[string]any{"status": false, "msg": "Internal Server Error"}, body)
	}
}

func TestRateLimit(t *testing.T) {
	m := NewModule(config.HTTPConfig{Addr: ":0", RateLimit: 2, RateWindow: time.Minute},
		config.AuthConfig{JWTSecret: testSecret}, &mockLogger{})
	m.taskAdapter = servicePort{svc: task.NewService(memstore.New())}
	app := m.newApp(false)

	for i := 0; i < 2; i++ {
		status, _ := do(t, app, "GET", "/health", "", nil)
		assert.Equal(t, http.StatusOK, status)
	}
	status, body := do(t, app, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, false, body["status"])
}

func TestParseRedisAddr(t *testing.T) {
	tests := []struct {
		addr string
		host string
		port int
	}{
		{"localhost:6379", "localhost", 6379},
		{"redis:6380", "redis", 6380},
		{":6381", "127.0.0.1", 6381},
		{"redis", "127.0.0.1", 6379},
		{"redis:port", "redis", 6379},
	}
	for _, tt := range tests {
		host, port := parseRedisAddr(tt.addr)
		assert.Equal(t, tt.host, host, tt.addr)
		assert.Equal(t, tt.port, port, tt.addr)
	}
}

func TestOpenLimiterStorage_FallsBackToMemory(t *testing.T) {
	m := NewModule(config.HTTPConfig{Addr: ":0", RateLimit: 2, RateWindow: time.Minute},
		config.AuthConfig{JWTSecret: testSecret}, &mockLogger{})
	assert.Nil(t, m.openLimiterStorage(), "no redis configured")

	m = NewModule(config.HTTPConfig{Addr: ":0", RateLimit: 2, RateWindow: time.Minute},
		config.AuthConfig{JWTSecret: testSecret}, &mockLogger{},
		WithRedisLimiter(config.CacheConfig{RedisAddr: "127.0.0.1:1"}))
	assert.Nil(t, m.openLimiterStorage(), "unreachable redis")
}

func TestRateLimit_RedisStorage(t *testing.T) {
	const addr = "localhost:6379"
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	conn.Close()

	prefix := "test:limiter:" + time.Now().Format("150405.000000") + ":"
	m := NewModule(config.HTTPConfig{Addr: ":0", RateLimit: 2, RateWindow: time.Minute},
		config.AuthConfig{JWTSecret: testSecret}, &mockLogger{},
		WithRedisLimiter(config.CacheConfig{RedisAddr: addr, Prefix: prefix}))
	m.taskAdapter = servicePort{svc: task.NewService(memstore.New())}
	m.limiterStorage = m.openLimiterStorage()
	require.NotNil(t, m.limiterStorage)
	t.Cleanup(func() {
		m.limiterStorage.Delete(prefix + "ratelimit:0.0.0.0")
		m.limiterStorage.Close()
	})
	app := m.newApp(false)

	for i := 0; i < 2; i++ {
		status, _ := do(t, app, "GET", "/health", "", nil)
		assert.Equal(t, http.StatusOK, status)
	}
	status, _ := do(t, app, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestModule_StartRequiresDependencies(t *testing.T) {
	m := NewModule(config.HTTPConfig{Addr: ":0"}, config.AuthConfig{JWTSecret: testSecret}, &mockLogger{})
	assert.Equal(t, "api", m.Name())
	assert.Equal(t, []string{"task", "audit"}, m.Dependencies())
	assert.Error(t, m.Start(context.Background()))
	assert.False(t, m.Health(context.Background()).Healthy)
	assert.NoError(t, m.Stop(context.Background()))

	m.taskAdapter = servicePort{svc: task.NewService(memstore.New())}
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auditAdapter")
}

func TestAuditTrail(t *testing.T) {
	stub := &stubAudit{entries: []audit.Entry{{
		Type: audit.TypeDenied, TaskID: "t1", OwnerID: "alice", ActorID: "bob", Detail: "update rejected",
	}}}
	app := newAuditApp(t, servicePort{svc: task.NewService(memstore.New())}, stub)
	alice := tokenFor(t, "alice")

	status, _ := do(t, app, "GET", "/api/audit", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := do(t, app, "GET", "/api/audit?type=access_denied&limit=5", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Audit trail retrieved successfully", body["msg"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].(map[string]any)["actor_id"])
	assert.Equal(t, "alice", stub.owner)
	assert.Equal(t, audit.TypeDenied, stub.kind)
	assert.Equal(t, 5, stub.limit)

	status, _ = do(t, app, "GET", "/api/audit", alice, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, stub.kind)
	assert.Equal(t, domain.DefaultLimit, stub.limit)

	status, body = do(t, app, "GET", "/api/audit?type=everything", alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid audit entry type", body["msg"])

	stub.err = errors.New("bus down")
	status, body = do(t, app, "GET", "/api/audit", alice, nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", body["msg"])
}
