package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/task-tracker/config"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/events"
	"github.com/example/task-tracker/store/gormstore"
	"github.com/example/task-tracker/store/memstore"
	"github.com/example/task-tracker/store/pgstore"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// TaskModule provides task management services (core domain).
type TaskModule struct {
	cfg      config.StoreConfig
	logger   types.Logger
	opts     []Option
	store    domain.Store
	svc      *Service
	eventBus mono.EventBus
}

var _ mono.Module = (*TaskModule)(nil)
var _ mono.ServiceProviderModule = (*TaskModule)(nil)
var _ mono.EventEmitterModule = (*TaskModule)(nil)
var _ mono.HealthCheckableModule = (*TaskModule)(nil)

// NewModule creates a TaskModule that opens the store described by cfg on
// Start. opts are passed to the Service.
func NewModule(cfg config.StoreConfig, logger types.Logger, opts ...Option) *TaskModule {
	return &TaskModule{
		cfg:    cfg,
		logger: logger.WithModule("task"),
		opts:   opts,
	}
}

// NewModuleWithStore creates a TaskModule over an already open store.
func NewModuleWithStore(store domain.Store, logger types.Logger, opts ...Option) *TaskModule {
	m := NewModule(config.StoreConfig{Driver: "external"}, logger, opts...)
	m.store = store
	return m
}

func (m *TaskModule) Name() string {
	return "task"
}

func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskCreatedV1.ToBase(),
		events.TaskUpdatedV1.ToBase(),
		events.TaskCompletedV1.ToBase(),
		events.TaskDeletedV1.ToBase(),
		events.TaskAccessDeniedV1.ToBase(),
	}
}

func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListTasks, json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListTasks, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetTask, json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateTask, json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdateTask, json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdateTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDeleteTask, json.Unmarshal, json.Marshal, m.deleteTask,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDeleteTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceTaskStats, json.Unmarshal, json.Marshal, m.taskStats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceTaskStats, err)
	}

	m.logger.Info("registered services",
		"services", []string{ServiceListTasks, ServiceGetTask, ServiceCreateTask, ServiceUpdateTask, ServiceDeleteTask, ServiceTaskStats})
	return nil
}

// Start opens the configured store and builds the service.
func (m *TaskModule) Start(ctx context.Context) error {
	if m.store == nil {
		store, err := openStore(ctx, m.cfg)
		if err != nil {
			return err
		}
		m.store = store
	}
	if m.eventBus == nil {
		m.logger.Warn("eventBus not set, events will not be published")
	}

	publisher := &eventPublisher{bus: m.eventBus, logger: m.logger, now: time.Now}
	opts := append([]Option{WithNotifier(publisher)}, m.opts...)
	m.svc = NewService(m.store, opts...)

	m.logger.Info("module started", "driver", m.cfg.Driver)
	return nil
}

// Stop closes the store.
func (m *TaskModule) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close task store: %w", err)
	}
	m.logger.Info("module stopped")
	return nil
}

// Health pings the task store.
func (m *TaskModule) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("store ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.cfg.Driver,
		},
	}
}

// Service returns the running service, or nil before Start.
func (m *TaskModule) Service() *Service {
	return m.svc
}

func openStore(ctx context.Context, cfg config.StoreConfig) (domain.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memstore.New(), nil
	case config.DriverPostgres:
		store, err := pgstore.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	case config.DriverSQLite, "":
		store, err := gormstore.Open(cfg.SQLitePath, cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
