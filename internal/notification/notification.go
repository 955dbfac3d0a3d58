// Package notification defines the event payloads pushed to clients.
//
// Each variant carries only its own fields; the shared contract is a
// deterministic ID (so repeated scans of the same still-qualifying row
// dedupe to one delivery) and a creation timestamp.
package notification

import (
	"encoding/json"
	"time"

	"taskpulse/internal/model"
)

// Category classifies task alerts by which time threshold was crossed.
type Category string

const (
	CategoryOverdue      Category = "overdue"
	CategoryDueSoon      Category = "dueSoon"
	CategoryStartingSoon Category = "startingSoon"
)

// Notification is the tagged union delivered over the push stream.
type Notification interface {
	// ID is stable per logical event: scanning the same qualifying row
	// twice yields the same ID.
	ID() string
	CreatedAt() time.Time

	json.Marshaler
}

// ---- Chat ----

type Chat struct {
	ThreadID   string
	AuthorName string
	Message    string
	At         time.Time
}

func (c Chat) ID() string           { return "chat-" + c.ThreadID + "-" + c.At.UTC().Format(time.RFC3339) }
func (c Chat) CreatedAt() time.Time { return c.At }

func (c Chat) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string    `json:"id"`
		Timestamp  time.Time `json:"timestamp"`
		Kind       string    `json:"kind"`
		ThreadID   string    `json:"threadId"`
		AuthorName string    `json:"authorName"`
		Message    string    `json:"message"`
	}{c.ID(), c.At, "chat", c.ThreadID, c.AuthorName, c.Message})
}

// ---- ProjectDue ----

type ProjectDue struct {
	ProjectID   string
	ProjectName string
	DueAt       time.Time
	At          time.Time
}

// NewProjectDue builds the due-soon alert for a project.
func NewProjectDue(p model.Project, now time.Time) ProjectDue {
	var due time.Time
	if p.DueAt != nil {
		due = *p.DueAt
	}
	return ProjectDue{ProjectID: p.ID, ProjectName: p.Name, DueAt: due, At: now}
}

func (p ProjectDue) ID() string           { return "project-" + p.ProjectID }
func (p ProjectDue) CreatedAt() time.Time { return p.At }

func (p ProjectDue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string    `json:"id"`
		Timestamp   time.Time `json:"timestamp"`
		Kind        string    `json:"kind"`
		ProjectID   string    `json:"projectId"`
		ProjectName string    `json:"projectName"`
		DueAt       time.Time `json:"dueAt"`
	}{p.ID(), p.At, "projectDue", p.ProjectID, p.ProjectName, p.DueAt})
}

// ---- Task ----

// TaskAlert covers the three task categories. Exactly one of DueAt/StartsAt
// is set: DueAt for overdue and dueSoon, StartsAt for startingSoon.
type TaskAlert struct {
	TaskID      string
	TaskName    string
	Priority    model.Priority
	Category    Category
	ProjectName string
	DueAt       *time.Time
	StartsAt    *time.Time
	At          time.Time
}

func NewTaskOverdue(t model.Task, now time.Time) TaskAlert {
	return TaskAlert{
		TaskID: t.ID, TaskName: t.Name, Priority: t.Priority,
		Category: CategoryOverdue, ProjectName: t.ProjectName,
		DueAt: t.DueAt, At: now,
	}
}

func NewTaskDueSoon(t model.Task, now time.Time) TaskAlert {
	return TaskAlert{
		TaskID: t.ID, TaskName: t.Name, Priority: t.Priority,
		Category: CategoryDueSoon, ProjectName: t.ProjectName,
		DueAt: t.DueAt, At: now,
	}
}

func NewTaskStartingSoon(t model.Task, now time.Time) TaskAlert {
	return TaskAlert{
		TaskID: t.ID, TaskName: t.Name, Priority: t.Priority,
		Category: CategoryStartingSoon, ProjectName: t.ProjectName,
		StartsAt: t.StartsAt, At: now,
	}
}

func (t TaskAlert) ID() string {
	switch t.Category {
	case CategoryOverdue:
		return "task-overdue-" + t.TaskID
	case CategoryStartingSoon:
		return "task-start-" + t.TaskID
	default:
		return "task-due-" + t.TaskID
	}
}

func (t TaskAlert) CreatedAt() time.Time { return t.At }

func (t TaskAlert) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string         `json:"id"`
		Timestamp   time.Time      `json:"timestamp"`
		Kind        string         `json:"kind"`
		TaskID      string         `json:"taskId"`
		TaskName    string         `json:"taskName"`
		Priority    model.Priority `json:"priority"`
		Category    Category       `json:"category"`
		ProjectName string         `json:"projectName,omitempty"`
		DueAt       *time.Time     `json:"dueAt,omitempty"`
		StartsAt    *time.Time     `json:"startsAt,omitempty"`
	}{t.ID(), t.At, "task", t.TaskID, t.TaskName, t.Priority, t.Category, t.ProjectName, t.DueAt, t.StartsAt})
}

// Envelope is the wire shape written into one SSE frame.
type Envelope struct {
	Type string       `json:"type"`
	Data Notification `json:"data"`
}

// EncodeFrame renders a complete text/event-stream frame for n, including
// the blank-line terminator the protocol requires.
func EncodeFrame(n Notification) ([]byte, error) {
	b, err := json.Marshal(Envelope{Type: "notification", Data: n})
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(b)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, b...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}
