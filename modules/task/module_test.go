package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/task-tracker/config"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/store/memstore"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger and keeps the messages it was given.
type mockLogger struct {
	mu    *sync.Mutex
	warns *[]string
	errs  *[]string
}

func newMockLogger() *mockLogger {
	return &mockLogger{mu: &sync.Mutex{}, warns: &[]string{}, errs: &[]string{}}
}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(msg string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.warns = append(*m.warns, msg)
}
func (m *mockLogger) Error(msg string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.errs = append(*m.errs, msg)
}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

func startedModule(t *testing.T) (*TaskModule, *mockLogger) {
	t.Helper()
	logger := newMockLogger()
	m := NewModuleWithStore(memstore.New(), logger, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Stop(context.Background()) })
	return m, logger
}

func TestModule_Name(t *testing.T) {
	m := NewModule(config.StoreConfig{Driver: config.DriverMemory}, newMockLogger())
	assert.Equal(t, "task", m.Name())
	assert.Len(t, m.EmitEvents(), 5)
	assert.Nil(t, m.Service(), "no service before Start")
}

func TestModule_StartOpensConfiguredStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr string
	}{
		{name: "memory", cfg: config.StoreConfig{Driver: config.DriverMemory}},
		{name: "sqlite", cfg: config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}},
		{name: "unknown", cfg: config.StoreConfig{Driver: "mongo"}, wantErr: `unknown store driver "mongo"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModule(tt.cfg, newMockLogger())
			err := m.Start(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, m.Service())
			assert.True(t, m.Health(context.Background()).Healthy)
			require.NoError(t, m.Stop(context.Background()))
		})
	}
}

func TestModule_StartWithoutEventBusWarns(t *testing.T) {
	_, logger := startedModule(t)
	assert.Contains(t, *logger.warns, "eventBus not set, events will not be published")
}

func TestModule_HealthBeforeStart(t *testing.T) {
	m := NewModule(config.StoreConfig{Driver: config.DriverMemory}, newMockLogger())
	status := m.Health(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "store not initialized", status.Message)
}

func TestModule_HandlersRoundTrip(t *testing.T) {
	m, _ := startedModule(t)
	ctx := context.Background()

	created, err := m.createTask(ctx, CreateTaskRequest{
		OwnerID: "u1",
		Fields:  domain.Fields{"title": "Write tests", "description": "for handlers"},
	}, nil)
	require.NoError(t, err)
	require.Nil(t, created.Error)
	require.NotNil(t, created.Task)

	got, err := m.getTask(ctx, GetTaskRequest{OwnerID: "u1", TaskID: created.Task.ID}, nil)
	require.NoError(t, err)
	require.Nil(t, got.Error)
	assert.Equal(t, "Write tests", got.Task.Title)

	updated, err := m.updateTask(ctx, UpdateTaskRequest{
		OwnerID: "u1", TaskID: created.Task.ID, Fields: domain.Fields{"status": "completed"},
	}, nil)
	require.NoError(t, err)
	require.Nil(t, updated.Error)
	assert.NotNil(t, updated.Task.CompletedAt)

	list, err := m.listTasks(ctx, ListTasksRequest{OwnerID: "u1"}, nil)
	require.NoError(t, err)
	require.Nil(t, list.Error)
	assert.Len(t, list.Tasks, 1)
	assert.EqualValues(t, 1, list.Pagination.TotalItems)

	stats, err := m.taskStats(ctx, TaskStatsRequest{OwnerID: "u1"}, nil)
	require.NoError(t, err)
	require.Nil(t, stats.Error)
	assert.EqualValues(t, 1, stats.Stats.ByStatus["completed"])

	deleted, err := m.deleteTask(ctx, DeleteTaskRequest{OwnerID: "u1", TaskID: created.Task.ID}, nil)
	require.NoError(t, err)
	require.Nil(t, deleted.Error)
	assert.True(t, deleted.Deleted)
}

func TestModule_HandlersEncodeErrors(t *testing.T) {
	m, logger := startedModule(t)
	ctx := context.Background()

	created, err := m.createTask(ctx, CreateTaskRequest{OwnerID: "u1", Fields: domain.Fields{"title": "x"}}, nil)
	require.NoError(t, err)
	require.NotNil(t, created.Error)
	assert.Equal(t, CodeValidation, created.Error.Code)
	require.Len(t, created.Error.Fields, 1)
	assert.Equal(t, "description", created.Error.Fields[0].Field)

	got, err := m.getTask(ctx, GetTaskRequest{OwnerID: "u1", TaskID: "nope"}, nil)
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidID, got.Error.Code)

	own, err := m.createTask(ctx, CreateTaskRequest{OwnerID: "u1", Fields: domain.Fields{"title": "x", "description": "y"}}, nil)
	require.NoError(t, err)
	deleted, err := m.deleteTask(ctx, DeleteTaskRequest{OwnerID: "u2", TaskID: own.Task.ID}, nil)
	require.NoError(t, err)
	assert.False(t, deleted.Deleted)
	assert.Equal(t, CodeForbidden, deleted.Error.Code)

	list, err := m.listTasks(ctx, ListTasksRequest{OwnerID: "nobody"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, list.Tasks)
	assert.Empty(t, list.Tasks)

	assert.Empty(t, *logger.errs, "client mistakes are not logged as errors")
	assert.Contains(t, *logger.warns, "cross-owner write rejected")
}

func TestModule_StoreFailureLogged(t *testing.T) {
	logger := newMockLogger()
	m := NewModuleWithStore(failingStore{Store: memstore.New(), err: errors.New("down")}, logger)
	require.NoError(t, m.Start(context.Background()))

	resp, err := m.listTasks(context.Background(), ListTasksRequest{OwnerID: "u1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, CodeStore, resp.Error.Code)
	assert.Equal(t, []string{"task service failed"}, *logger.errs)
}
