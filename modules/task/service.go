package task

import (
	"context"
	"strings"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"golang.org/x/sync/singleflight"
)

// StatsCache stores computed statistics per owner. Implementations absorb
// their own failures: a broken cache behaves like an empty one. Set must not
// keep an entry longer than maxAge.
type StatsCache interface {
	Get(ctx context.Context, ownerID string) (*domain.Stats, bool)
	Set(ctx context.Context, ownerID string, stats *domain.Stats, maxAge time.Duration)
	Invalidate(ctx context.Context, ownerID string)
}

// Notifier is told about every successful mutation and every rejected
// cross-owner write.
type Notifier interface {
	TaskCreated(ctx context.Context, t *domain.Task)
	TaskUpdated(ctx context.Context, before, after *domain.Task)
	TaskDeleted(ctx context.Context, t *domain.Task)
	AccessDenied(ctx context.Context, requesterID string, t *domain.Task, op string)
}

// Page is one page of a task listing.
type Page struct {
	Tasks      []*domain.Task    `json:"tasks"`
	Pagination domain.Pagination `json:"pagination"`
}

// Service runs task queries, mutations and statistics against a Store.
// Every call is scoped to the owner id it receives.
type Service struct {
	store    domain.Store
	now      func() time.Time
	loc      *time.Location
	cache    StatsCache
	notifier Notifier
	stats    singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the location that decides where a day starts for the
// due-today count.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithStatsCache enables caching of Stats results.
func WithStatsCache(c StatsCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithNotifier registers a mutation observer.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a Service over store.
func NewService(store domain.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns one page of the owner's tasks matching p.
func (s *Service) List(ctx context.Context, ownerID string, p domain.ListParams) (*Page, error) {
	q := domain.BuildQuery(ownerID, p)

	tasks, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, domain.WrapStoreError("find", err)
	}
	total, err := s.store.Count(ctx, q.Filter)
	if err != nil {
		return nil, domain.WrapStoreError("count", err)
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	return &Page{
		Tasks:      tasks,
		Pagination: domain.NewPagination(q.Page, q.Limit, total),
	}, nil
}

// Get returns one of the owner's tasks. Tasks of other owners are reported
// as not found.
func (s *Service) Get(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	id, err := domain.ParseID(taskID)
	if err != nil {
		return nil, err
	}
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, domain.WrapStoreError("find", err)
	}
	if t.Owner != ownerID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// Create validates raw and stores a new task owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, raw domain.Fields) (*domain.Task, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: "owner", Message: "Owner is required"}}}
	}
	in, err := domain.ParseFields(raw, domain.ForCreate)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	t := &domain.Task{
		ID:          domain.NewID(),
		Owner:       ownerID,
		Title:       *in.Title,
		Description: *in.Description,
		Status:      domain.DefaultStatus,
		Priority:    domain.DefaultPriority,
		Category:    domain.DefaultCategory,
		DueDate:     in.DueDate,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Category != nil {
		t.Category = *in.Category
	}
	if in.TagsSet {
		t.Tags = in.Tags
	}

	if err := s.store.Insert(ctx, t); err != nil {
		return nil, domain.WrapStoreError("insert", err)
	}

	s.invalidate(ctx, ownerID)
	if s.notifier != nil {
		s.notifier.TaskCreated(ctx, t.Clone())
	}
	return t, nil
}

// Update applies the fields present in raw to one of the owner's tasks.
//
// completedAt follows status: moving into completed stamps it, moving out of
// completed clears it. Without a status in raw it is left alone.
func (s *Service) Update(ctx context.Context, ownerID, taskID string, raw domain.Fields) (*domain.Task, error) {
	id, err := domain.ParseID(taskID)
	if err != nil {
		return nil, err
	}
	in, err := domain.ParseFields(raw, domain.ForUpdate)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, domain.WrapStoreError("find", err)
	}
	if existing.Owner != ownerID {
		s.denied(ctx, ownerID, existing, "update")
		return nil, domain.ErrForbidden
	}

	now := s.clock()
	patch := domain.Patch{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Category:    in.Category,
		DueDate:     domain.NullTime{Set: in.DueDateSet, Time: in.DueDate},
		UpdatedAt:   now,
	}
	if in.TagsSet {
		tags := in.Tags
		patch.Tags = &tags
	}
	if in.Status != nil {
		switch {
		case *in.Status == domain.StatusCompleted && existing.Status != domain.StatusCompleted:
			patch.CompletedAt = domain.NullTime{Set: true, Time: &now}
		case *in.Status != domain.StatusCompleted && existing.Status == domain.StatusCompleted:
			patch.CompletedAt = domain.NullTime{Set: true}
		}
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, domain.WrapStoreError("update", err)
	}

	s.invalidate(ctx, ownerID)
	if s.notifier != nil {
		s.notifier.TaskUpdated(ctx, existing, updated.Clone())
	}
	return updated, nil
}

// Delete permanently removes one of the owner's tasks.
func (s *Service) Delete(ctx context.Context, ownerID, taskID string) error {
	id, err := domain.ParseID(taskID)
	if err != nil {
		return err
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return domain.WrapStoreError("find", err)
	}
	if existing.Owner != ownerID {
		s.denied(ctx, ownerID, existing, "delete")
		return domain.ErrForbidden
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return domain.WrapStoreError("delete", err)
	}

	s.invalidate(ctx, ownerID)
	if s.notifier != nil {
		s.notifier.TaskDeleted(ctx, existing)
	}
	return nil
}

// clock returns the current time at the precision every store can hold.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) invalidate(ctx context.Context, ownerID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, ownerID)
	}
}

func (s *Service) denied(ctx context.Context, requesterID string, t *domain.Task, op string) {
	if s.notifier != nil {
		s.notifier.AccessDenied(ctx, requesterID, t, op)
	}
}
