// Package pgstore stores tasks in PostgreSQL through a pgx connection pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		owner        TEXT NOT NULL,
		title        VARCHAR(100) NOT NULL,
		description  VARCHAR(500) NOT NULL,
		status       TEXT NOT NULL,
		priority     TEXT NOT NULL,
		category     TEXT NOT NULL,
		due_date     TIMESTAMPTZ,
		tags         TEXT[] NOT NULL DEFAULT '{}',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_owner_created_at_idx ON tasks (owner, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS tasks_owner_due_date_idx ON tasks (owner, due_date)`,
}

const columns = `id, owner, title, description, status, priority, category, due_date, tags, created_at, updated_at, completed_at`

// Text columns sort with the C collation so order matches byte order.
var sortColumns = map[domain.SortField]string{
	domain.SortCreatedAt:   "created_at",
	domain.SortUpdatedAt:   "updated_at",
	domain.SortDueDate:     "due_date",
	domain.SortCompletedAt: "completed_at",
	domain.SortTitle:       `title COLLATE "C"`,
	domain.SortStatus:      `status COLLATE "C"`,
	domain.SortPriority:    `priority COLLATE "C"`,
	domain.SortCategory:    `category COLLATE "C"`,
}

var groupColumns = map[domain.GroupField]string{
	domain.GroupByStatus:   "status",
	domain.GroupByPriority: "priority",
	domain.GroupByCategory: "category",
}

// Store provides access to task storage in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

// Open creates a connection pool for databaseURL, verifies it and ensures
// the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool and ensures the schema exists.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

// Insert saves a new task.
func (s *Store) Insert(ctx context.Context, t *domain.Task) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Owner, t.Title, t.Description,
		string(t.Status), string(t.Priority), string(t.Category),
		t.DueDate, tagsOrEmpty(t.Tags), t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		if isPgDuplicateKeyError(err) {
			return domain.WrapStoreError("insert", fmt.Errorf("duplicate task id: %s", t.ID))
		}
		return domain.WrapStoreError("insert", err)
	}
	return nil
}

// FindByID retrieves a task by id regardless of owner.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.WrapStoreError("find", err)
	}
	return t, nil
}

// Update locks the row, applies p and writes it back in one transaction.
func (s *Store) Update(ctx context.Context, id string, p domain.Patch) (*domain.Task, error) {
	var updated *domain.Task
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		t, err := scanTask(tx.QueryRow(ctx, `SELECT `+columns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		p.Apply(t)

		updated, err = scanTask(tx.QueryRow(ctx,
			`UPDATE tasks SET title = $2, description = $3, status = $4, priority = $5, category = $6,
				due_date = $7, tags = $8, completed_at = $9, updated_at = $10
			WHERE id = $1 RETURNING `+columns,
			id, t.Title, t.Description,
			string(t.Status), string(t.Priority), string(t.Category),
			t.DueDate, tagsOrEmpty(t.Tags), t.CompletedAt, t.UpdatedAt,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.WrapStoreError("update", err)
	}
	return updated, nil
}

// Delete removes a task by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return domain.WrapStoreError("delete", err)
	}
	if tag.RowsAffected() == 0 {
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
	dir, nulls := "ASC", "NULLS FIRST"
	if q.Sort.Desc {
		dir, nulls = "DESC", "NULLS LAST"
	}

	w := buildWhere(q.Filter)
	limit := w.arg(q.Limit)
	offset := w.arg(q.Skip())
	sql := `SELECT ` + columns + ` FROM tasks WHERE ` + w.String() +
		` ORDER BY ` + col + ` ` + dir + ` ` + nulls + `, id COLLATE "C" ` + dir +
		` LIMIT ` + limit + ` OFFSET ` + offset

	rows, err := s.pool.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, domain.WrapStoreError("find", err)
	}
	defer rows.Close()

	tasks := make([]*domain.Task, 0, q.Limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, domain.WrapStoreError("find", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStoreError("find", err)
	}
	return tasks, nil
}

// Count returns how many tasks match f.
func (s *Store) Count(ctx context.Context, f domain.Filter) (int64, error) {
	w := buildWhere(f)
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+w.String(), w.args...).Scan(&n); err != nil {
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

	w := buildWhere(f)
	rows, err := s.pool.Query(ctx,
		`SELECT `+col+`, COUNT(*) FROM tasks WHERE `+w.String()+` GROUP BY `+col, w.args...)
	if err != nil {
		return nil, domain.WrapStoreError("count by", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var value string
		var n int64
		if err := rows.Scan(&value, &n); err != nil {
			return nil, domain.WrapStoreError("count by", err)
		}
		counts[value] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStoreError("count by", err)
	}
	return counts, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// where accumulates AND-ed predicates with numbered placeholders.
type where struct {
	clauses []string
	args    []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	return strings.Join(w.clauses, " AND ")
}

func buildWhere(f domain.Filter) *where {
	w := &where{}
	w.add("owner = " + w.arg(f.Owner))

	if f.Status != "" {
		w.add("status = " + w.arg(string(f.Status)))
	}
	if f.Priority != "" {
		w.add("priority = " + w.arg(string(f.Priority)))
	}
	if f.Category != "" {
		w.add("category = " + w.arg(string(f.Category)))
	}
	if len(f.StatusNotIn) > 0 {
		excluded := make([]string, 0, len(f.StatusNotIn))
		for _, st := range f.StatusNotIn {
			excluded = append(excluded, string(st))
		}
		w.add("status <> ALL(" + w.arg(excluded) + ")")
	}
	if f.DueFrom != nil {
		w.add("due_date >= " + w.arg(*f.DueFrom))
	}
	if f.DueBefore != nil {
		w.add("due_date < " + w.arg(*f.DueBefore))
	}
	if f.DueFrom != nil || f.DueBefore != nil {
		w.add("due_date IS NOT NULL")
	}
	if f.Search != "" {
		p := w.arg("%" + escapeLike(f.Search) + "%")
		w.add(`(title ILIKE ` + p + ` ESCAPE '\' OR description ILIKE ` + p + ` ESCAPE '\' OR ` +
			`EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE ` + p + ` ESCAPE '\'))`)
	}
	return w
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t                          domain.Task
		status, priority, category string
		dueDate, completedAt       *time.Time
	)
	err := row.Scan(
		&t.ID, &t.Owner, &t.Title, &t.Description,
		&status, &priority, &category,
		&dueDate, &t.Tags, &t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	t.Category = domain.Category(category)
	t.DueDate = dueDate
	t.CompletedAt = completedAt
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// isPgDuplicateKeyError checks if error is a PostgreSQL unique violation.
func isPgDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
