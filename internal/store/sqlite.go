package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"taskpulse/internal/model"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the task/project database connection.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

type sqliteStore struct {
	db *sqlx.DB
}

// Open opens the CRM database and applies the schema (idempotent).
func Open(cfg Config) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store path is required")
	}

	db, err := sqlx.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// taskRow is the scan shape; optional instants come back as nullable millis.
type taskRow struct {
	ID          string        `db:"id"`
	Name        string        `db:"name"`
	Priority    string        `db:"priority"`
	Completed   bool          `db:"completed"`
	AssigneeID  string        `db:"assignee_id"`
	ProjectID   string        `db:"project_id"`
	ProjectName string        `db:"project_name"`
	DueAt       sql.NullInt64 `db:"due_at"`
	StartsAt    sql.NullInt64 `db:"starts_at"`
	CreatedAt   int64         `db:"created_at"`
}

func (r taskRow) task() model.Task {
	t := model.Task{
		ID:          r.ID,
		Name:        r.Name,
		Priority:    model.Priority(r.Priority),
		Completed:   r.Completed,
		AssigneeID:  r.AssigneeID,
		ProjectID:   r.ProjectID,
		ProjectName: r.ProjectName,
		CreatedAt:   time.UnixMilli(r.CreatedAt),
	}
	if r.DueAt.Valid {
		v := time.UnixMilli(r.DueAt.Int64)
		t.DueAt = &v
	}
	if r.StartsAt.Valid {
		v := time.UnixMilli(r.StartsAt.Int64)
		t.StartsAt = &v
	}
	return t
}

const taskSelect = `
SELECT t.id, t.name, t.priority, t.completed, t.assignee_id,
       COALESCE(t.project_id, '') AS project_id,
       COALESCE(p.name, '')       AS project_name,
       t.due_at, t.starts_at, t.created_at
FROM tasks t
LEFT JOIN projects p ON p.id = t.project_id`

func (s *sqliteStore) queryTasks(ctx context.Context, where string, order string, f TaskFilter, args []any) ([]model.Task, error) {
	conds := []string{"t.completed = 0", where}
	if f.OnlyHigh {
		conds = append(conds, "t.priority = 'HIGH'")
	}
	if f.UserID != "" {
		conds = append(conds, "t.assignee_id = ?")
		args = append(args, f.UserID)
	}
	q := taskSelect + "\nWHERE " + strings.Join(conds, " AND ") + "\nORDER BY " + order
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

func (s *sqliteStore) OverdueTasks(ctx context.Context, asOf time.Time, f TaskFilter) ([]model.Task, error) {
	return s.queryTasks(ctx,
		"t.due_at IS NOT NULL AND t.due_at < ?",
		"t.due_at ASC",
		f, []any{asOf.UnixMilli()})
}

func (s *sqliteStore) TasksDueBetween(ctx context.Context, from, to time.Time, f TaskFilter) ([]model.Task, error) {
	return s.queryTasks(ctx,
		"t.due_at IS NOT NULL AND t.due_at >= ? AND t.due_at <= ?",
		"t.due_at ASC",
		f, []any{from.UnixMilli(), to.UnixMilli()})
}

func (s *sqliteStore) TasksStartingBetween(ctx context.Context, from, to time.Time, f TaskFilter) ([]model.Task, error) {
	return s.queryTasks(ctx,
		"t.starts_at IS NOT NULL AND t.starts_at >= ? AND t.starts_at <= ?",
		"t.starts_at ASC",
		f, []any{from.UnixMilli(), to.UnixMilli()})
}

type projectRow struct {
	ID        string        `db:"id"`
	Name      string        `db:"name"`
	Completed bool          `db:"completed"`
	DueAt     sql.NullInt64 `db:"due_at"`
	CreatedAt int64         `db:"created_at"`
}

func (r projectRow) project() model.Project {
	p := model.Project{
		ID:        r.ID,
		Name:      r.Name,
		Completed: r.Completed,
		CreatedAt: time.UnixMilli(r.CreatedAt),
	}
	if r.DueAt.Valid {
		v := time.UnixMilli(r.DueAt.Int64)
		p.DueAt = &v
	}
	return p
}

func (s *sqliteStore) ProjectsDueBetween(ctx context.Context, from, to time.Time, userID string, limit int) ([]model.Project, error) {
	q := `SELECT p.id, p.name, p.completed, p.due_at, p.created_at
FROM projects p`
	args := []any{}
	if userID != "" {
		q += `
JOIN project_members m ON m.project_id = p.id AND m.user_id = ?`
		args = append(args, userID)
	}
	q += `
WHERE p.completed = 0 AND p.due_at IS NOT NULL AND p.due_at >= ? AND p.due_at <= ?
ORDER BY p.due_at ASC`
	args = append(args, from.UnixMilli(), to.UnixMilli())
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []projectRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	projects := make([]model.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.project())
	}
	return projects, nil
}

func (s *sqliteStore) ProjectMembers(ctx context.Context, projectID string) ([]string, error) {
	var users []string
	err := s.db.SelectContext(ctx, &users,
		`SELECT user_id FROM project_members WHERE project_id = ? ORDER BY user_id`, projectID)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *sqliteStore) TaskByID(ctx context.Context, id string) (*model.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, taskSelect+"\nWHERE t.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := row.task()
	return &t, nil
}

func (s *sqliteStore) UpsertTask(ctx context.Context, t model.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, name, priority, completed, assignee_id, project_id, due_at, starts_at, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, priority=excluded.priority, completed=excluded.completed,
		   assignee_id=excluded.assignee_id, project_id=excluded.project_id,
		   due_at=excluded.due_at, starts_at=excluded.starts_at`,
		t.ID, t.Name, string(t.Priority), t.Completed, t.AssigneeID,
		nullStr(t.ProjectID), nullMilli(t.DueAt), nullMilli(t.StartsAt), t.CreatedAt.UnixMilli())
	return err
}

func (s *sqliteStore) UpsertProject(ctx context.Context, p model.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects(id, name, completed, due_at, created_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, completed=excluded.completed, due_at=excluded.due_at`,
		p.ID, p.Name, p.Completed, nullMilli(p.DueAt), p.CreatedAt.UnixMilli())
	return err
}

func (s *sqliteStore) AddProjectMember(ctx context.Context, projectID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_members(project_id, user_id) VALUES(?,?)`,
		projectID, userID)
	return err
}

func nullMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
