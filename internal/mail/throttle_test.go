package mail

import (
	"testing"
	"time"

	"taskpulse/internal/model"
)

func at(t time.Time) *time.Time { return &t }

func pinnedThrottle(now time.Time) *Throttle {
	th := NewThrottle()
	th.nowFn = func() time.Time { return now }
	return th
}

func TestShouldSendRejectsNonCandidates(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	th := pinnedThrottle(now)
	due := at(now.Add(-time.Hour))

	cases := []struct {
		name string
		task model.Task
	}{
		{"low priority", model.Task{ID: "t1", Priority: model.PriorityLow, DueAt: due}},
		{"medium priority", model.Task{ID: "t2", Priority: model.PriorityMedium, DueAt: due}},
		{"completed", model.Task{ID: "t3", Priority: model.PriorityHigh, Completed: true, DueAt: due}},
		{"no due date", model.Task{ID: "t4", Priority: model.PriorityHigh}},
		{"due far out", model.Task{ID: "t5", Priority: model.PriorityHigh, DueAt: at(now.Add(48 * time.Hour))}},
	}
	for _, tc := range cases {
		if th.ShouldSend(tc.task) {
			t.Errorf("%s: ShouldSend = true, want false", tc.name)
		}
	}
}

func TestShouldSendOverdueBand(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	th := pinnedThrottle(now)
	task := model.Task{ID: "t1", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(now.Add(-time.Hour))}

	if !th.ShouldSend(task) {
		t.Fatal("overdue task with no prior record should send")
	}
	th.Record(task.ID, task.AssigneeID, KindOverdue)
	if th.ShouldSend(task) {
		t.Fatal("overdue task must not re-send within 24h of the recorded send")
	}
}

func TestShouldSendUrgentBand(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	task := model.Task{ID: "t1", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(now.Add(90 * time.Minute))}

	// Reminder sent 30 minutes ago: inside the 2h urgent cooldown.
	th := pinnedThrottle(now.Add(-30 * time.Minute))
	th.Record(task.ID, task.AssigneeID, KindReminder)
	th.nowFn = func() time.Time { return now }
	if th.ShouldSend(task) {
		t.Fatal("reminder from 30m ago must block a task due in 90m")
	}

	// Reminder sent 3 hours ago: outside the 2h urgent cooldown.
	th = pinnedThrottle(now.Add(-3 * time.Hour))
	th.Record(task.ID, task.AssigneeID, KindReminder)
	th.nowFn = func() time.Time { return now }
	if !th.ShouldSend(task) {
		t.Fatal("reminder from 3h ago must not block a task due in 90m")
	}
}

func TestShouldSendDailyBand(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	task := model.Task{ID: "t1", Priority: model.PriorityHigh, AssigneeID: "u1", DueAt: at(now.Add(10 * time.Hour))}

	th := pinnedThrottle(now)
	if !th.ShouldSend(task) {
		t.Fatal("task due in 10h with no record should send")
	}
	th.Record(task.ID, task.AssigneeID, KindReminder)
	if th.ShouldSend(task) {
		t.Fatal("task due in 10h must not re-send within 24h")
	}

	// Kinds are tracked separately: an overdue record does not count.
	th = pinnedThrottle(now)
	th.Record(task.ID, task.AssigneeID, KindOverdue)
	if !th.ShouldSend(task) {
		t.Fatal("an overdue-kind record must not block the reminder kind")
	}
}

func TestRecordTrimsHistory(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	th := pinnedThrottle(now)
	for i := 0; i < 15; i++ {
		th.nowFn = func() time.Time { return now.Add(time.Duration(i) * time.Minute) }
		th.Record("t1", "u1", KindReminder)
	}
	hist := th.History("t1", KindReminder)
	if len(hist) != maxLogEntries {
		t.Fatalf("history length = %d, want %d", len(hist), maxLogEntries)
	}
	// Oldest entries dropped, newest kept.
	if got := hist[len(hist)-1].SentAt; !got.Equal(now.Add(14 * time.Minute)) {
		t.Fatalf("newest entry at %v, want %v", got, now.Add(14*time.Minute))
	}
	if got := hist[0].SentAt; !got.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("oldest kept entry at %v, want %v", got, now.Add(5*time.Minute))
	}
}
