// Package hub tracks which users have open push streams and fans
// notifications out to them.
//
// The hub holds non-owning references: the HTTP layer owns the real
// connection resources and unregisters on close. Delivery is best-effort;
// a user with no open streams silently receives nothing.
package hub

import (
	"sync"

	"taskpulse/internal/notification"
	"taskpulse/pkg/logx"
)

// Conn is one open push stream. Send writes a complete frame and returns
// an error once the underlying transport is gone.
type Conn interface {
	Send(frame []byte) error
}

type Hub struct {
	log logx.Logger

	mu    sync.Mutex
	conns map[string]map[Conn]struct{}
}

func New(log logx.Logger) *Hub {
	return &Hub{
		log:   log,
		conns: map[string]map[Conn]struct{}{},
	}
}

// Register makes c eligible to receive pushes for userID immediately.
func (h *Hub) Register(userID string, c Conn) {
	if userID == "" || c == nil {
		return
	}
	h.mu.Lock()
	set := h.conns[userID]
	if set == nil {
		set = map[Conn]struct{}{}
		h.conns[userID] = set
	}
	set[c] = struct{}{}
	n := len(set)
	h.mu.Unlock()

	h.log.Debug("stream registered", logx.String("user", userID), logx.Int("streams", n))
}

// Unregister removes c; removing a connection that is already gone is a
// no-op. The user entry is dropped entirely once its set empties so the
// map does not grow with every user that ever connected.
func (h *Hub) Unregister(userID string, c Conn) {
	h.mu.Lock()
	set := h.conns[userID]
	if set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
	h.mu.Unlock()
}

// Dispatch writes n to every open stream owned by userID and reports how
// many deliveries succeeded. A user with no streams yields 0 without error.
// A single broken stream never aborts delivery to the rest; broken streams
// are unregistered as a side effect.
func (h *Hub) Dispatch(userID string, n notification.Notification) int {
	frame, err := notification.EncodeFrame(n)
	if err != nil {
		h.log.Error("frame encode failed", logx.String("id", n.ID()), logx.Err(err))
		return 0
	}

	// Snapshot under lock, write outside it: Send hits the network and
	// must not serialize all users behind one slow client.
	h.mu.Lock()
	set := h.conns[userID]
	if len(set) == 0 {
		h.mu.Unlock()
		return 0
	}
	targets := make([]Conn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	delivered := 0
	var broken []Conn
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			h.log.Debug("stream write failed, dropping connection",
				logx.String("user", userID), logx.String("id", n.ID()), logx.Err(err))
			broken = append(broken, c)
			continue
		}
		delivered++
	}

	for _, c := range broken {
		h.Unregister(userID, c)
	}
	return delivered
}

// Connections reports how many open streams userID currently has.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}

// Users reports how many distinct users have at least one open stream.
func (h *Hub) Users() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
