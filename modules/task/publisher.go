package task

import (
	"context"
	"slices"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// eventPublisher turns service notifications into bus events. Publishing is
// best-effort: failures are logged and never reach the caller.
type eventPublisher struct {
	bus    mono.EventBus
	logger types.Logger
	now    func() time.Time
}

var _ Notifier = (*eventPublisher)(nil)

func (p *eventPublisher) TaskCreated(_ context.Context, t *domain.Task) {
	if p.bus == nil {
		return
	}
	event := events.TaskCreatedEvent{
		TaskID:    t.ID,
		OwnerID:   t.Owner,
		Title:     t.Title,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		Category:  string(t.Category),
		CreatedAt: t.CreatedAt,
	}
	if err := events.TaskCreatedV1.Publish(p.bus, event, nil); err != nil {
		p.logger.Warn("failed to publish TaskCreated event", "task_id", t.ID, "error", err)
	}
}

func (p *eventPublisher) TaskUpdated(_ context.Context, before, after *domain.Task) {
	if p.bus == nil {
		return
	}
	event := events.TaskUpdatedEvent{
		TaskID:     after.ID,
		OwnerID:    after.Owner,
		Changed:    changedFields(before, after),
		FromStatus: string(before.Status),
		ToStatus:   string(after.Status),
		UpdatedAt:  after.UpdatedAt,
	}
	if err := events.TaskUpdatedV1.Publish(p.bus, event, nil); err != nil {
		p.logger.Warn("failed to publish TaskUpdated event", "task_id", after.ID, "error", err)
	}

	if before.Status != domain.StatusCompleted && after.Status == domain.StatusCompleted && after.CompletedAt != nil {
		completed := events.TaskCompletedEvent{
			TaskID:      after.ID,
			OwnerID:     after.Owner,
			CompletedAt: *after.CompletedAt,
		}
		if err := events.TaskCompletedV1.Publish(p.bus, completed, nil); err != nil {
			p.logger.Warn("failed to publish TaskCompleted event", "task_id", after.ID, "error", err)
		}
	}
}

func (p *eventPublisher) TaskDeleted(_ context.Context, t *domain.Task) {
	if p.bus == nil {
		return
	}
	event := events.TaskDeletedEvent{
		TaskID:    t.ID,
		OwnerID:   t.Owner,
		DeletedAt: p.now(),
	}
	if err := events.TaskDeletedV1.Publish(p.bus, event, nil); err != nil {
		p.logger.Warn("failed to publish TaskDeleted event", "task_id", t.ID, "error", err)
	}
}

func (p *eventPublisher) AccessDenied(_ context.Context, requesterID string, t *domain.Task, op string) {
	p.logger.Warn("cross-owner write rejected", "task_id", t.ID, "requester", requesterID, "operation", op)
	if p.bus == nil {
		return
	}
	event := events.TaskAccessDeniedEvent{
		TaskID:      t.ID,
		OwnerID:     t.Owner,
		RequesterID: requesterID,
		Operation:   op,
		DeniedAt:    p.now(),
	}
	if err := events.TaskAccessDeniedV1.Publish(p.bus, event, nil); err != nil {
		p.logger.Warn("failed to publish TaskAccessDenied event", "task_id", t.ID, "error", err)
	}
}

// changedFields lists the client-facing names of fields that differ
// between before and after.
func changedFields(before, after *domain.Task) []string {
	changed := make([]string, 0, 8)
	if before.Title != after.Title {
		changed = append(changed, domain.FieldTitle)
	}
	if before.Description != after.Description {
		changed = append(changed, domain.FieldDescription)
	}
	if before.Status != after.Status {
		changed = append(changed, domain.FieldStatus)
	}
	if before.Priority != after.Priority {
		changed = append(changed, domain.FieldPriority)
	}
	if before.Category != after.Category {
		changed = append(changed, domain.FieldCategory)
	}
	if !sameTime(before.DueDate, after.DueDate) {
		changed = append(changed, domain.FieldDueDate)
	}
	if !slices.Equal(before.Tags, after.Tags) {
		changed = append(changed, domain.FieldTags)
	}
	if !sameTime(before.CompletedAt, after.CompletedAt) {
		changed = append(changed, "completedAt")
	}
	return changed
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
