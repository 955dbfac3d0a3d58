package notification

import (
	"encoding/json"
	"testing"
	"time"

	"taskpulse/internal/model"
)

func TestTaskAlertIDsAreDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	due := now.Add(time.Hour)
	task := model.Task{ID: "t1", Name: "a", Priority: model.PriorityHigh, DueAt: &due, StartsAt: &due}

	cases := []struct {
		n    Notification
		want string
	}{
		{NewTaskOverdue(task, now), "task-overdue-t1"},
		{NewTaskDueSoon(task, now), "task-due-t1"},
		{NewTaskStartingSoon(task, now), "task-start-t1"},
		{NewProjectDue(model.Project{ID: "p1", Name: "x", DueAt: &due}, now), "project-p1"},
	}
	for _, tc := range cases {
		if got := tc.n.ID(); got != tc.want {
			t.Errorf("ID() = %q, want %q", got, tc.want)
		}
		// Building the same event again must give the same ID.
		if got := tc.n.ID(); got != tc.want {
			t.Errorf("ID() not stable for %q", tc.want)
		}
	}
}

func TestTaskAlertMarshalOmitsAbsentInstant(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	starts := now.Add(30 * time.Minute)
	task := model.Task{ID: "t1", Name: "standup", Priority: model.PriorityLow, StartsAt: &starts}

	b, err := json.Marshal(NewTaskStartingSoon(task, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["kind"] != "task" || m["category"] != "startingSoon" {
		t.Fatalf("unexpected payload: %v", m)
	}
	if _, ok := m["dueAt"]; ok {
		t.Fatal("startingSoon alert must not carry dueAt")
	}
	if _, ok := m["startsAt"]; !ok {
		t.Fatal("startingSoon alert must carry startsAt")
	}
}

func TestChatIDIncludesThreadAndInstant(t *testing.T) {
	at := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	c := Chat{ThreadID: "th1", AuthorName: "mira", Message: "hi", At: at}
	want := "chat-th1-2026-08-28T09:30:00Z"
	if got := c.ID(); got != want {
		t.Fatalf("ID() = %q, want %q", got, want)
	}

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["kind"] != "chat" || m["authorName"] != "mira" {
		t.Fatalf("unexpected payload: %v", m)
	}
}

func TestEncodeFrame(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	frame, err := EncodeFrame(NewTaskOverdue(model.Task{ID: "t1", Name: "x", Priority: model.PriorityHigh, DueAt: &due}, now))
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	s := string(frame)
	if s[:6] != "data: " || s[len(s)-2:] != "\n\n" {
		t.Fatalf("malformed frame: %q", s)
	}
}
