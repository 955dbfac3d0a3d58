package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskpulse/internal/model"
	"taskpulse/pkg/logx"
)

func newTestSender(now time.Time) (*Sender, *MockProvider, *Throttle) {
	prov := NewMockProvider(logx.Nop())
	th := NewThrottle()
	th.nowFn = func() time.Time { return now }
	dir := StaticDirectory{"u1": "u1@example.com"}
	s := NewSender(prov, th, dir, logx.Nop(), nil)
	s.nowFn = func() time.Time { return now }
	return s, prov, th
}

func TestSendRecordsAndCoolsDown(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s, prov, th := newTestSender(now)
	task := model.Task{ID: "t1", Name: "quarterly report", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(now.Add(-time.Hour))}

	res := s.Send(context.Background(), task)
	if !res.Sent || res.EmailID == "" {
		t.Fatalf("first send: got %+v, want sent with an email ID", res)
	}
	if got := len(prov.Sent()); got != 1 {
		t.Fatalf("provider received %d messages, want 1", got)
	}
	if hist := th.History("t1", KindOverdue); len(hist) != 1 {
		t.Fatalf("throttle log has %d entries, want 1", len(hist))
	}

	// The blanket send cooldown blocks a second attempt regardless of policy.
	res = s.Send(context.Background(), task)
	if res.Sent || res.Reason != "already_sent_recently" {
		t.Fatalf("second send: got %+v, want already_sent_recently", res)
	}
	if got := len(prov.Sent()); got != 1 {
		t.Fatalf("provider received %d messages after cooldown hit, want still 1", got)
	}
}

func TestSendFailureLeavesNoRecord(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s, prov, th := newTestSender(now)
	prov.Fail(errors.New("smtp down"))
	task := model.Task{ID: "t1", Name: "a", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(now.Add(time.Hour))}

	res := s.Send(context.Background(), task)
	if res.Sent || res.Error == "" {
		t.Fatalf("got %+v, want a failed result", res)
	}
	if hist := th.History("t1", KindReminder); len(hist) != 0 {
		t.Fatalf("failed send must not write a throttle record, got %d entries", len(hist))
	}

	// The next attempt retries naturally once the provider recovers.
	prov.Fail(nil)
	if res = s.Send(context.Background(), task); !res.Sent {
		t.Fatalf("retry after recovery: got %+v, want sent", res)
	}
}

func TestSendUnknownAssignee(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s, prov, _ := newTestSender(now)
	task := model.Task{ID: "t1", Name: "a", Priority: model.PriorityHigh, AssigneeID: "ghost", DueAt: at(now.Add(time.Hour))}

	res := s.Send(context.Background(), task)
	if res.Sent || res.Error == "" {
		t.Fatalf("got %+v, want failure for unknown assignee", res)
	}
	if got := len(prov.Sent()); got != 0 {
		t.Fatalf("provider received %d messages, want 0", got)
	}
}

func TestPreviewPicksWording(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	s, _, _ := newTestSender(now)

	overdue := model.Task{ID: "t1", Name: "late <thing>", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(now.Add(-time.Hour))}
	subject, html := s.Preview(overdue)
	if !strings.HasPrefix(subject, "Overdue:") {
		t.Fatalf("subject = %q, want overdue wording", subject)
	}
	if strings.Contains(html, "<thing>") || !strings.Contains(html, "late &lt;thing&gt;") {
		t.Fatalf("task name must be escaped in HTML body")
	}

	upcoming := model.Task{ID: "t2", Name: "soon", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(now.Add(time.Hour))}
	if subject, _ = s.Preview(upcoming); !strings.HasPrefix(subject, "Reminder:") {
		t.Fatalf("subject = %q, want reminder wording", subject)
	}
}
