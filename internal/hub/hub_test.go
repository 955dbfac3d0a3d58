package hub

import (
	"errors"
	"strings"
	"testing"
	"time"

	"taskpulse/internal/notification"
	"taskpulse/pkg/logx"
)

type fakeConn struct {
	frames [][]byte
	err    error
}

func (c *fakeConn) Send(frame []byte) error {
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, frame)
	return nil
}

func alert(id string) notification.TaskAlert {
	due := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return notification.TaskAlert{
		TaskID:   id,
		TaskName: "task " + id,
		Priority: "HIGH",
		Category: notification.CategoryOverdue,
		DueAt:    &due,
		At:       due.Add(time.Hour),
	}
}

func TestRegisterUnregisterLifecycle(t *testing.T) {
	h := New(logx.Nop())
	c1 := &fakeConn{}
	c2 := &fakeConn{}

	h.Register("u1", c1)
	h.Register("u1", c2)
	if got := h.Connections("u1"); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}

	h.Unregister("u1", c1)
	if got := h.Connections("u1"); got != 1 {
		t.Fatalf("expected 1 connection after unregister, got %d", got)
	}
	if n := h.Dispatch("u1", alert("t1")); n != 1 {
		t.Fatalf("expected delivery to c2 only, got %d", n)
	}
	if len(c1.frames) != 0 || len(c2.frames) != 1 {
		t.Fatalf("frames went to the wrong connection: c1=%d c2=%d", len(c1.frames), len(c2.frames))
	}

	h.Unregister("u1", c2)
	if h.Users() != 0 {
		t.Fatalf("expected user entry removed once its last connection left")
	}

	// Idempotent: already gone.
	h.Unregister("u1", c2)
}

func TestDispatchNoConnectionsIsNoop(t *testing.T) {
	h := New(logx.Nop())
	if n := h.Dispatch("nobody", alert("t1")); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
}

func TestDispatchSurvivesBrokenConnection(t *testing.T) {
	h := New(logx.Nop())
	ok1 := &fakeConn{}
	bad := &fakeConn{err: errors.New("broken pipe")}
	ok2 := &fakeConn{}

	h.Register("u1", ok1)
	h.Register("u1", bad)
	h.Register("u1", ok2)

	if n := h.Dispatch("u1", alert("t1")); n != 2 {
		t.Fatalf("expected 2 deliveries despite one broken stream, got %d", n)
	}
	if len(ok1.frames) != 1 || len(ok2.frames) != 1 {
		t.Fatalf("healthy connections missed the frame: ok1=%d ok2=%d", len(ok1.frames), len(ok2.frames))
	}
	if got := h.Connections("u1"); got != 2 {
		t.Fatalf("broken connection should have been removed, got %d", got)
	}
}

func TestFrameFormat(t *testing.T) {
	h := New(logx.Nop())
	c := &fakeConn{}
	h.Register("u1", c)
	h.Dispatch("u1", alert("t9"))

	if len(c.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(c.frames))
	}
	frame := string(c.frames[0])
	if !strings.HasPrefix(frame, "data: ") {
		t.Fatalf("frame missing data prefix: %q", frame)
	}
	if !strings.HasSuffix(frame, "\n\n") {
		t.Fatalf("frame missing blank-line terminator: %q", frame)
	}
	if !strings.Contains(frame, `"type":"notification"`) {
		t.Fatalf("frame missing envelope type: %q", frame)
	}
	if !strings.Contains(frame, `"id":"task-overdue-t9"`) {
		t.Fatalf("frame missing deterministic id: %q", frame)
	}
}
