// Package gormstore stores tasks in SQLite through GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var sortColumns = map[domain.SortField]string{
	domain.SortCreatedAt:   "created_at",
	domain.SortUpdatedAt:   "updated_at",
	domain.SortDueDate:     "due_date",
	domain.SortCompletedAt: "completed_at",
	domain.SortTitle:       "title",
	domain.SortStatus:      "status",
	domain.SortPriority:    "priority",
	domain.SortCategory:    "category",
}

var groupColumns = map[domain.GroupField]string{
	domain.GroupByStatus:   "status",
	domain.GroupByPriority: "priority",
	domain.GroupByCategory: "category",
}

// Columns written by Update. id, owner and created_at never change.
var mutableColumns = []string{
	"title", "description", "status", "priority", "category",
	"due_date", "tags", "completed_at", "updated_at",
}

// Store provides access to task storage.
type Store struct {
	db *gorm.DB
}

var _ domain.Store = (*Store)(nil)

// Open connects to the SQLite database at path and runs migrations.
// With debug set every statement is logged.
func Open(path string, debug bool) (*Store, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection to ":memory:" is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an open GORM connection and migrates the tasks table.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&domain.Task{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert saves a new task.
func (s *Store) Insert(ctx context.Context, t *domain.Task) error {
	row := toUTC(t.Clone())
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return domain.WrapStoreError("insert", err)
	}
	return nil
}

// FindByID retrieves a task by id regardless of owner.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	var row domain.Task
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.WrapStoreError("find", err)
	}
	return &row, nil
}

// Update applies p inside one transaction and returns the stored result.
func (s *Store) Update(ctx context.Context, id string, p domain.Patch) (*domain.Task, error) {
	var row domain.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return err
		}
		p.Apply(&row)
		toUTC(&row)

		result := tx.Model(&row).Select(mutableColumns).Updates(&row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.WrapStoreError("update", err)
	}
	return &row, nil
}

// Delete removes a task by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&domain.Task{}, "id = ?", id)
	if err := result.Error; err != nil {
		return domain.WrapStoreError("delete", err)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Find returns one sorted page of the tasks matching q.
func (s *Store) Find(ctx context.Context, q domain.Query) ([]*domain.Task, error) {
	col, ok := sortColumns[q.Sort.Field]
	if !ok {
		col = sortColumns[domain.DefaultSort]
	}

	tasks := make([]*domain.Task, 0, q.Limit)
	err := s.filtered(ctx, q.Filter).
		Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: q.Sort.Desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Sort.Desc}).
		Offset(q.Skip()).
		Limit(q.Limit).
		Find(&tasks).Error
	if err != nil {
		return nil, domain.WrapStoreError("find", err)
	}
	return tasks, nil
}

// Count returns how many tasks match f.
func (s *Store) Count(ctx context.Context, f domain.Filter) (int64, error) {
	var n int64
	if err := s.filtered(ctx, f).Count(&n).Error; err != nil {
		return 0, domain.WrapStoreError("count", err)
	}
	return n, nil
}

// CountBy groups the tasks matching f by field.
func (s *Store) CountBy(ctx context.Context, f domain.Filter, field domain.GroupField) (map[string]int64, error) {
	col, ok := groupColumns[field]
	if !ok {
		return nil, domain.WrapStoreError("count by", fmt.Errorf("unknown group field: %s", field))
	}

	var rows []struct {
		Value string
		N     int64
	}
	err := s.filtered(ctx, f).
		Select(col + " AS value, COUNT(*) AS n").
		Group(col).
		Scan(&rows).Error
	if err != nil {
		return nil, domain.WrapStoreError("count by", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Value] = r.N
	}
	return counts, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *Store) filtered(ctx context.Context, f domain.Filter) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&domain.Task{}).Where("owner = ?", f.Owner)

	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		db = db.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	if len(f.StatusNotIn) > 0 {
		db = db.Where("status NOT IN ?", f.StatusNotIn)
	}
	if f.DueFrom != nil {
		db = db.Where("due_date >= ?", f.DueFrom.UTC())
	}
	if f.DueBefore != nil {
		db = db.Where("due_date < ?", f.DueBefore.UTC())
	}
	if f.DueFrom != nil || f.DueBefore != nil {
		db = db.Where("due_date IS NOT NULL")
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		db = db.Where(
			`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR `+
				`EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE LOWER(json_each.value) LIKE ? ESCAPE '\'))`,
			pattern, pattern, pattern,
		)
	}
	return db
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// toUTC stores every timestamp in UTC so text comparison in SQLite follows
// time order.
func toUTC(t *domain.Task) *domain.Task {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.DueDate = utcPtr(t.DueDate)
	t.CompletedAt = utcPtr(t.CompletedAt)
	return t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
