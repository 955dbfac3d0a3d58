package server

import (
	"context"
	"sync"
	"time"

	"taskpulse/internal/eventbus"
)

// Stats aggregates pipeline counters from the event bus for /statusz.
type Stats struct {
	mu         sync.Mutex
	counts     map[string]int64
	lastScanAt time.Time
}

func NewStats() *Stats {
	return &Stats{counts: map[string]int64{}}
}

// Run consumes bus events until ctx is cancelled.
func (s *Stats) Run(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.mu.Lock()
			s.counts[ev.Type]++
			if ev.Type == eventbus.TypeScanCompleted {
				if se, ok := ev.Data.(eventbus.ScanEvent); ok {
					s.lastScanAt = se.At
				}
			}
			s.mu.Unlock()
		}
	}
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.counts)+1)
	for k, v := range s.counts {
		out[k] = v
	}
	if !s.lastScanAt.IsZero() {
		out["lastScanAt"] = s.lastScanAt.UTC().Format(time.RFC3339)
	}
	return out
}
