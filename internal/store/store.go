// Package store is the query interface over the CRM's task/project
// database. taskpulse only reads the due/overdue facts; the CRM backend
// owns all writes (the upsert helpers exist for fixtures and local dev).
package store

import (
	"context"
	"time"

	"taskpulse/internal/model"
)

// TaskFilter narrows task window queries.
// Zero values mean "no restriction".
type TaskFilter struct {
	UserID   string // restrict to this assignee
	OnlyHigh bool   // HIGH priority only
	Limit    int    // cap result size; 0 means no cap
}

// Store is the persistence API the scan and mail services depend on.
//
// All window queries return rows ordered by the relevant instant
// ascending, so when a Limit is hit the most urgent rows win.
type Store interface {
	// OverdueTasks returns incomplete tasks whose due instant lies
	// strictly before asOf.
	OverdueTasks(ctx context.Context, asOf time.Time, f TaskFilter) ([]model.Task, error)

	// TasksDueBetween returns incomplete tasks due within [from, to].
	TasksDueBetween(ctx context.Context, from, to time.Time, f TaskFilter) ([]model.Task, error)

	// TasksStartingBetween returns incomplete tasks starting within [from, to].
	TasksStartingBetween(ctx context.Context, from, to time.Time, f TaskFilter) ([]model.Task, error)

	// ProjectsDueBetween returns incomplete projects due within [from, to].
	// When userID is set, only projects the user is a member of qualify.
	ProjectsDueBetween(ctx context.Context, from, to time.Time, userID string, limit int) ([]model.Project, error)

	// ProjectMembers lists the user IDs associated with a project.
	ProjectMembers(ctx context.Context, projectID string) ([]string, error)

	TaskByID(ctx context.Context, id string) (*model.Task, error)

	// Fixture/dev writes.
	UpsertTask(ctx context.Context, t model.Task) error
	UpsertProject(ctx context.Context, p model.Project) error
	AddProjectMember(ctx context.Context, projectID, userID string) error

	Close() error
}
