// Package scan discovers newly-qualifying task/project events and pushes
// each one at most once per qualification window.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"taskpulse/internal/eventbus"
	"taskpulse/internal/notification"
	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

// Config controls the scan service.
//
// The scheduled sweep is tuned for near-term urgency (tight windows, HIGH
// priority overdue only); the user-facing pull endpoints use their own wider
// windows and never touch the dedup cache.
type Config struct {
	Enabled bool

	// CronSpec drives the primary scheduled sweep. Default "@every 5m".
	CronSpec string

	// FallbackInterval drives the secondary timer sweep. Default 60s;
	// 0 disables the fallback path.
	FallbackInterval time.Duration

	DueSoonWindow      time.Duration // default 1h
	StartingSoonWindow time.Duration // default 1h
	ProjectWindow      time.Duration // default 24h

	// BucketLimit caps each query bucket; rows are ordered by urgency so
	// the most pressing rows win when the cap is hit. Default 10.
	BucketLimit int

	// DedupTTL is how long a dispatched notification ID suppresses
	// re-dispatch. Default 10m.
	DedupTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.CronSpec == "" {
		c.CronSpec = "@every 5m"
	}
	if c.DueSoonWindow <= 0 {
		c.DueSoonWindow = time.Hour
	}
	if c.StartingSoonWindow <= 0 {
		c.StartingSoonWindow = time.Hour
	}
	if c.ProjectWindow <= 0 {
		c.ProjectWindow = 24 * time.Hour
	}
	if c.BucketLimit <= 0 {
		c.BucketLimit = 10
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = 10 * time.Minute
	}
	return c
}

// Dispatcher is the hub surface the scan loop pushes through.
type Dispatcher interface {
	Dispatch(userID string, n notification.Notification) int
}

// Result summarizes one scan run.
type Result struct {
	Dispatched int `json:"dispatched"`
	Deduped    int `json:"deduped"`
	Dropped    int `json:"dropped"`
}

type Service struct {
	mu  sync.Mutex
	cfg Config

	log   logx.Logger
	store store.Store
	hub   Dispatcher
	bus   eventbus.Bus
	cache *dedupCache

	c      *cron.Cron
	stopCh chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	// nowFn exists so tests can pin the clock.
	nowFn func() time.Time
}
