// Package model holds the persistent domain records taskpulse scans.
package model

import "time"

// Priority mirrors the task priority levels stored by the CRM backend.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is one assignable unit of work.
//
// DueAt and StartsAt are both optional; a task may have either, both, or
// neither. Scans only consider tasks where the relevant instant is set.
type Task struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Priority    Priority  `db:"priority" json:"priority"`
	Completed   bool      `db:"completed" json:"completed"`
	AssigneeID  string    `db:"assignee_id" json:"assigneeId"`
	ProjectID   string    `db:"project_id" json:"projectId,omitempty"`
	ProjectName string    `db:"project_name" json:"projectName,omitempty"`
	DueAt       *time.Time `db:"due_at" json:"dueAt,omitempty"`
	StartsAt    *time.Time `db:"starts_at" json:"startsAt,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Project groups tasks and carries its own deadline.
type Project struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Completed bool       `db:"completed" json:"completed"`
	DueAt     *time.Time `db:"due_at" json:"dueAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}
