// Package mail sends reminder emails for high-priority tasks, throttled so
// the same task never mails twice inside its cooldown band.
package mail

import (
	"sync"
	"time"

	"taskpulse/internal/model"
)

// Kind distinguishes the two reminder flavours tracked separately in the
// throttle log.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindOverdue  Kind = "overdue"
)

// maxLogEntries bounds the per-key send history.
const maxLogEntries = 10

type throttleKey struct {
	taskID string
	kind   Kind
}

// SendRecord is one entry in the throttle log.
type SendRecord struct {
	TaskID string    `json:"taskId"`
	UserID string    `json:"userId"`
	Kind   Kind      `json:"kind"`
	SentAt time.Time `json:"sentAt"`
}

// Throttle keeps the in-memory per-task send log. Process-local and reset
// on restart, which is acceptable for a best-effort reminder feature.
type Throttle struct {
	mu      sync.Mutex
	records map[throttleKey][]SendRecord
	nowFn   func() time.Time
}

func NewThrottle() *Throttle {
	return &Throttle{
		records: map[throttleKey][]SendRecord{},
		nowFn:   time.Now,
	}
}

// ShouldSend applies the cooldown policy:
//   - only incomplete HIGH-priority tasks with a due date qualify at all;
//   - overdue tasks mail at most once per 24h (overdue kind);
//   - tasks due within 2h mail at most once per 2h (reminder kind);
//   - tasks due within 24h mail at most once per 24h (reminder kind).
func (t *Throttle) ShouldSend(task model.Task) bool {
	if task.Completed || task.Priority != model.PriorityHigh || task.DueAt == nil {
		return false
	}
	now := t.nowFn()
	untilDue := task.DueAt.Sub(now)

	switch {
	case untilDue < 0:
		return !t.sentWithin(task.ID, KindOverdue, 24*time.Hour, now)
	case untilDue <= 2*time.Hour:
		return !t.sentWithin(task.ID, KindReminder, 2*time.Hour, now)
	case untilDue <= 24*time.Hour:
		return !t.sentWithin(task.ID, KindReminder, 24*time.Hour, now)
	default:
		return false
	}
}

// Record appends a send to the log for (taskID, kind), keeping only the
// most recent entries.
func (t *Throttle) Record(taskID, userID string, kind Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := throttleKey{taskID: taskID, kind: kind}
	log := append(t.records[k], SendRecord{
		TaskID: taskID,
		UserID: userID,
		Kind:   kind,
		SentAt: t.nowFn(),
	})
	if len(log) > maxLogEntries {
		log = log[len(log)-maxLogEntries:]
	}
	t.records[k] = log
}

// sentWithin reports whether any recorded send for (taskID, kind) happened
// inside the window ending at now.
func (t *Throttle) sentWithin(taskID string, kind Kind, window time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records[throttleKey{taskID: taskID, kind: kind}] {
		if now.Sub(r.SentAt) < window {
			return true
		}
	}
	return false
}

// History returns a copy of the log for (taskID, kind), newest last.
func (t *Throttle) History(taskID string, kind Kind) []SendRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SendRecord(nil), t.records[throttleKey{taskID: taskID, kind: kind}]...)
}
