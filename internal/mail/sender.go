package mail

import (
	"context"
	"time"

	"taskpulse/internal/eventbus"
	"taskpulse/internal/model"
	"taskpulse/pkg/logx"
)

// sendCooldown is a blanket per-(task,kind) floor applied inside Send,
// independent of the ShouldSend policy bands, so that two callers racing
// past a ShouldSend check cannot double-mail.
const sendCooldown = 12 * time.Hour

// Directory resolves a CRM user ID to an email address.
type Directory interface {
	Email(userID string) (string, bool)
}

// StaticDirectory is a fixed userID -> address map, populated from config.
type StaticDirectory map[string]string

func (d StaticDirectory) Email(userID string) (string, bool) {
	addr, ok := d[userID]
	return addr, ok
}

// Result reports the outcome of one Send.
type Result struct {
	Sent    bool   `json:"sent"`
	EmailID string `json:"emailId,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Sender mails a single task reminder through the configured provider.
type Sender struct {
	provider Provider
	throttle *Throttle
	dir      Directory
	log      logx.Logger
	bus      eventbus.Bus
	nowFn    func() time.Time
}

func NewSender(provider Provider, throttle *Throttle, dir Directory, log logx.Logger, bus eventbus.Bus) *Sender {
	return &Sender{
		provider: provider,
		throttle: throttle,
		dir:      dir,
		log:      log,
		bus:      bus,
		nowFn:    time.Now,
	}
}

// Send mails a reminder for task. Failures are reported in the Result,
// never returned as an error, so a batch caller moves on to the next task.
func (s *Sender) Send(ctx context.Context, task model.Task) Result {
	now := s.nowFn()
	kind := KindReminder
	if task.DueAt != nil && task.DueAt.Before(now) {
		kind = KindOverdue
	}

	if s.throttle.sentWithin(task.ID, kind, sendCooldown, now) {
		s.publish(eventbus.TypeMailSkipped, task, kind, "")
		return Result{Reason: "already_sent_recently"}
	}

	addr, ok := s.dir.Email(task.AssigneeID)
	if !ok {
		s.log.Warn("no email address for assignee",
			logx.String("task", task.ID), logx.String("user", task.AssigneeID))
		s.publish(eventbus.TypeMailFailed, task, kind, "unknown assignee")
		return Result{Error: "no email address for assignee"}
	}

	subject, html, text := renderReminder(task, kind, now)
	emailID, err := s.provider.Send(ctx, Message{To: addr, Subject: subject, HTML: html, Text: text})
	if err != nil {
		s.log.Warn("reminder send failed",
			logx.String("task", task.ID), logx.String("kind", string(kind)), logx.Err(err))
		s.publish(eventbus.TypeMailFailed, task, kind, err.Error())
		return Result{Error: err.Error()}
	}

	s.throttle.Record(task.ID, task.AssigneeID, kind)
	s.log.Info("reminder sent",
		logx.String("task", task.ID),
		logx.String("kind", string(kind)),
		logx.String("email_id", emailID))
	s.publish(eventbus.TypeMailSent, task, kind, "")
	return Result{Sent: true, EmailID: emailID}
}

// Preview renders the reminder for task without sending anything.
func (s *Sender) Preview(task model.Task) (subject, html string) {
	now := s.nowFn()
	kind := KindReminder
	if task.DueAt != nil && task.DueAt.Before(now) {
		kind = KindOverdue
	}
	subject, html, _ = renderReminder(task, kind, now)
	return subject, html
}

func (s *Sender) publish(typ string, task model.Task, kind Kind, errMsg string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: eventbus.MailEvent{
		TaskID: task.ID,
		UserID: task.AssigneeID,
		Kind:   string(kind),
		At:     s.nowFn(),
		Error:  errMsg,
	}})
}
