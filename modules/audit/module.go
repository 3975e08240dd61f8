// Package audit keeps a bounded, in-memory trail of task lifecycle events
// and rejected cross-owner writes.
package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/task-tracker/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 1000

// Entry types.
const (
	TypeCreated   = "task_created"
	TypeUpdated   = "task_updated"
	TypeCompleted = "task_completed"
	TypeDeleted   = "task_deleted"
	TypeDenied    = "access_denied"
)

// Entry is one audit record. OwnerID owns the task; ActorID made the call.
type Entry struct {
	Type    string    `json:"type"`
	TaskID  string    `json:"task_id"`
	OwnerID string    `json:"owner_id"`
	ActorID string    `json:"actor_id"`
	Detail  string    `json:"detail"`
	At      time.Time `json:"at"`
}

// AuditModule consumes task events as a driven adapter.
type AuditModule struct {
	logger types.Logger

	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

var _ mono.Module = (*AuditModule)(nil)
var _ mono.EventConsumerModule = (*AuditModule)(nil)
var _ mono.ServiceProviderModule = (*AuditModule)(nil)
var _ mono.HealthCheckableModule = (*AuditModule)(nil)

// NewModule creates an AuditModule holding at most capacity entries. The
// oldest entry is overwritten once the ring is full.
func NewModule(logger types.Logger, capacity int) *AuditModule {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &AuditModule{
		logger:  logger.WithModule("audit"),
		entries: make([]Entry, capacity),
	}
}

func (m *AuditModule) Name() string {
	return "audit"
}

func (m *AuditModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1, m.handleTaskCreated, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskUpdatedV1, m.handleTaskUpdated, m); err != nil {
		return fmt.Errorf("failed to register TaskUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCompletedV1, m.handleTaskCompleted, m); err != nil {
		return fmt.Errorf("failed to register TaskCompleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1, m.handleTaskDeleted, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskAccessDeniedV1, m.handleAccessDenied, m); err != nil {
		return fmt.Errorf("failed to register TaskAccessDenied consumer: %w", err)
	}

	m.logger.Info("registered event consumers",
		"events", []string{"TaskCreated", "TaskUpdated", "TaskCompleted", "TaskDeleted", "TaskAccessDenied"})
	return nil
}

func (m *AuditModule) handleTaskCreated(_ context.Context, event events.TaskCreatedEvent, _ *mono.Msg) error {
	m.record(Entry{
		Type:    TypeCreated,
		TaskID:  event.TaskID,
		OwnerID: event.OwnerID,
		ActorID: event.OwnerID,
		Detail:  fmt.Sprintf("created %q (%s, %s)", event.Title, event.Priority, event.Category),
		At:      event.CreatedAt,
	})
	return nil
}

func (m *AuditModule) handleTaskUpdated(_ context.Context, event events.TaskUpdatedEvent, _ *mono.Msg) error {
	detail := "changed " + strings.Join(event.Changed, ", ")
	if len(event.Changed) == 0 {
		detail = "no changes"
	}
	if event.FromStatus != event.ToStatus {
		detail += fmt.Sprintf("; status %s -> %s", event.FromStatus, event.ToStatus)
	}
	m.record(Entry{
		Type:    TypeUpdated,
		TaskID:  event.TaskID,
		OwnerID: event.OwnerID,
		ActorID: event.OwnerID,
		Detail:  detail,
		At:      event.UpdatedAt,
	})
	return nil
}

func (m *AuditModule) handleTaskCompleted(_ context.Context, event events.TaskCompletedEvent, _ *mono.Msg) error {
	m.record(Entry{
		Type:    TypeCompleted,
		TaskID:  event.TaskID,
		OwnerID: event.OwnerID,
		ActorID: event.OwnerID,
		Detail:  "completed",
		At:      event.CompletedAt,
	})
	return nil
}

func (m *AuditModule) handleTaskDeleted(_ context.Context, event events.TaskDeletedEvent, _ *mono.Msg) error {
	m.record(Entry{
		Type:    TypeDeleted,
		TaskID:  event.TaskID,
		OwnerID: event.OwnerID,
		ActorID: event.OwnerID,
		Detail:  "deleted",
		At:      event.DeletedAt,
	})
	return nil
}

func (m *AuditModule) handleAccessDenied(_ context.Context, event events.TaskAccessDeniedEvent, _ *mono.Msg) error {
	m.logger.Warn("denied write recorded",
		"task_id", event.TaskID, "requester", event.RequesterID, "operation", event.Operation)
	m.record(Entry{
		Type:    TypeDenied,
		TaskID:  event.TaskID,
		OwnerID: event.OwnerID,
		ActorID: event.RequesterID,
		Detail:  event.Operation + " rejected",
		At:      event.DeniedAt,
	})
	return nil
}

func (m *AuditModule) record(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.next] = e
	m.next++
	if m.next == len(m.entries) {
		m.next = 0
		m.full = true
	}
}

// Entries returns a copy of the trail, oldest first.
func (m *AuditModule) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.full {
		result := make([]Entry, m.next)
		copy(result, m.entries[:m.next])
		return result
	}
	result := make([]Entry, 0, len(m.entries))
	result = append(result, m.entries[m.next:]...)
	return append(result, m.entries[:m.next]...)
}

// Denied returns only the access-denied entries, oldest first.
func (m *AuditModule) Denied() []Entry {
	all := m.Entries()
	denied := make([]Entry, 0)
	for _, e := range all {
		if e.Type == TypeDenied {
			denied = append(denied, e)
		}
	}
	return denied
}

// Trail returns the entries that involve ownerID, either as the task owner or
// as the caller, oldest first. A non-empty kind keeps only that entry type and
// a positive limit keeps only the newest limit entries.
func (m *AuditModule) Trail(ownerID, kind string, limit int) []Entry {
	trail := make([]Entry, 0)
	for _, e := range m.Entries() {
		if e.OwnerID != ownerID && e.ActorID != ownerID {
			continue
		}
		if kind != "" && e.Type != kind {
			continue
		}
		trail = append(trail, e)
	}
	if limit > 0 && len(trail) > limit {
		trail = trail[len(trail)-limit:]
	}
	return trail
}

// ValidType reports whether kind names an entry type.
func ValidType(kind string) bool {
	switch kind {
	case TypeCreated, TypeUpdated, TypeCompleted, TypeDeleted, TypeDenied:
		return true
	}
	return false
}

// Health reports how full the trail is.
func (m *AuditModule) Health(_ context.Context) mono.HealthStatus {
	m.mu.RLock()
	size := m.next
	if m.full {
		size = len(m.entries)
	}
	capacity := len(m.entries)
	m.mu.RUnlock()

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"entries":  size,
			"capacity": capacity,
		},
	}
}

func (m *AuditModule) Start(_ context.Context) error {
	m.logger.Info("module started, listening for task events")
	return nil
}

func (m *AuditModule) Stop(_ context.Context) error {
	m.logger.Info("module stopped")
	return nil
}
