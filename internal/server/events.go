package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"taskpulse/pkg/logx"
)

var errConnClosed = errors.New("sse connection closed")

// sseConn adapts one streaming response to the hub's Conn interface.
// Send is called from the dispatch goroutine while the handler goroutine
// blocks; the mutex serializes writes and the closed flag fences off the
// ResponseWriter once the handler has returned.
type sseConn struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func (c *sseConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

func (c *sseConn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	user := s.userID(r)
	if user == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	conn := &sseConn{w: w, flusher: flusher}
	if err := conn.Send([]byte("data: {\"type\":\"connected\"}\n\n")); err != nil {
		return
	}

	connID := uuid.NewString()
	s.hub.Register(user, conn)
	s.log.Debug("stream opened", logx.String("user", user), logx.String("conn", connID))

	<-r.Context().Done()

	conn.close()
	s.hub.Unregister(user, conn)
	s.log.Debug("stream closed", logx.String("user", user), logx.String("conn", connID))
}
