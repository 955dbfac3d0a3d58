package mail

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"taskpulse/pkg/logx"
)

// MockProvider logs sends instead of performing them. Used for local
// development and tests.
type MockProvider struct {
	log logx.Logger

	mu   sync.Mutex
	sent []Message
	err  error
}

func NewMockProvider(log logx.Logger) *MockProvider {
	return &MockProvider{log: log}
}

func (m *MockProvider) Send(ctx context.Context, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	id := uuid.NewString()
	m.log.Info("mock email",
		logx.String("to", msg.To),
		logx.String("subject", msg.Subject),
		logx.String("email_id", id),
		logx.Int("html_bytes", len(msg.HTML)))
	return id, nil
}

// Sent returns a copy of every message handed to the provider.
func (m *MockProvider) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// Fail makes every subsequent Send return err (nil restores success).
func (m *MockProvider) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}
