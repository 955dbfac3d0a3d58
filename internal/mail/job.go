package mail

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

// JobConfig controls the periodic reminder job.
type JobConfig struct {
	Enabled bool

	// Interval between sweeps. Default 1h.
	Interval time.Duration

	// Window is how far ahead a due date may be for the sweep to consider
	// the task. Default 24h.
	Window time.Duration

	// Limit caps each sweep's candidate queries. Default 50.
	Limit int
}

func (c JobConfig) withDefaults() JobConfig {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	if c.Limit <= 0 {
		c.Limit = 50
	}
	return c
}

// Summary reports one reminder sweep.
type Summary struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Job periodically sweeps high-priority due tasks and mails reminders
// through the Sender. Start/Stop may be driven at runtime via the admin
// endpoint, independent of process lifecycle.
type Job struct {
	mu       sync.Mutex
	cfg      JobConfig
	running  bool
	sweeping bool
	stopCh   chan struct{}

	store    store.Store
	throttle *Throttle
	sender   *Sender
	log      logx.Logger
	wg       sync.WaitGroup
	nowFn    func() time.Time
}

func NewJob(cfg JobConfig, st store.Store, throttle *Throttle, sender *Sender, log logx.Logger) *Job {
	return &Job{
		cfg:      cfg.withDefaults(),
		store:    st,
		throttle: throttle,
		sender:   sender,
		log:      log,
		nowFn:    time.Now,
	}
}

// Apply updates tunables; Interval changes take effect after a restart of
// the job.
func (j *Job) Apply(cfg JobConfig) {
	j.mu.Lock()
	j.cfg = cfg.withDefaults()
	j.mu.Unlock()
}

// Running reports whether the periodic sweep is active.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Start launches the periodic sweep. Starting an already-running job is a
// no-op. The loop outlives the caller's context (the admin endpoint starts
// it from a request); Stop is the only way to end it.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	stopCh := j.stopCh
	interval := j.cfg.Interval
	j.mu.Unlock()

	loopCtx := context.WithoutCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				j.log.Error("panic in reminder loop", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-t.C:
				j.CheckNow(loopCtx)
			}
		}
	}()
	j.log.Info("reminder job started", logx.Duration("interval", interval))
}

// Stop halts the periodic sweep. A sweep in flight finishes on its own.
func (j *Job) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopCh)
	j.stopCh = nil
	j.mu.Unlock()
	j.wg.Wait()
	j.log.Info("reminder job stopped")
}

// CheckNow runs one sweep immediately. Overlapping sweeps are collapsed:
// if one is already in flight the call returns an empty Summary.
func (j *Job) CheckNow(ctx context.Context) Summary {
	j.mu.Lock()
	if j.sweeping {
		j.mu.Unlock()
		return Summary{}
	}
	j.sweeping = true
	cfg := j.cfg
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.sweeping = false
		j.mu.Unlock()
	}()

	now := j.nowFn()
	var sum Summary

	f := store.TaskFilter{OnlyHigh: true, Limit: cfg.Limit}
	overdue, err := j.store.OverdueTasks(ctx, now, f)
	if err != nil {
		j.log.Warn("overdue query failed", logx.Err(err))
	}
	upcoming, err := j.store.TasksDueBetween(ctx, now, now.Add(cfg.Window), f)
	if err != nil {
		j.log.Warn("upcoming query failed", logx.Err(err))
	}

	for _, task := range append(overdue, upcoming...) {
		sum.Checked++
		if !j.throttle.ShouldSend(task) {
			sum.Skipped++
			continue
		}
		res := j.sender.Send(ctx, task)
		switch {
		case res.Sent:
			sum.Sent++
		case res.Reason != "":
			sum.Skipped++
		default:
			sum.Failed++
		}
	}

	if sum.Sent > 0 || sum.Failed > 0 {
		j.log.Info("reminder sweep finished",
			logx.Int("checked", sum.Checked),
			logx.Int("sent", sum.Sent),
			logx.Int("skipped", sum.Skipped),
			logx.Int("failed", sum.Failed))
	}
	return sum
}
