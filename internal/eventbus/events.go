package eventbus

import "time"

// Event types published by the notification pipeline.
const (
	TypeNotifyDispatched = "notify.dispatched" // pushed to at least one stream
	TypeNotifyDeduped    = "notify.deduped"    // suppressed by the dispatch cache
	TypeNotifyDropped    = "notify.dropped"    // target user had no open stream
	TypeMailSent         = "mail.sent"
	TypeMailSkipped      = "mail.skipped" // cooldown suppressed the send
	TypeMailFailed       = "mail.failed"
	TypeScanCompleted    = "scan.completed"
)

// NotifyEvent is the Data payload for notify.* events.
type NotifyEvent struct {
	ID     string
	UserID string
	At     time.Time
}

// MailEvent is the Data payload for mail.* events.
type MailEvent struct {
	TaskID string
	UserID string
	Kind   string
	At     time.Time
	Error  string
}

// ScanEvent is the Data payload for scan.completed.
type ScanEvent struct {
	Dispatched int
	Deduped    int
	Dropped    int
	Took       time.Duration
	At         time.Time
}
