package scan

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"taskpulse/internal/eventbus"
	"taskpulse/internal/storage"
	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

func New(cfg Config, st store.Store, hub Dispatcher, persist storage.Store, log logx.Logger, bus eventbus.Bus) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:   cfg,
		log:   log,
		store: st,
		hub:   hub,
		bus:   bus,
		cache: newDedupCache(cfg.DedupTTL, persist, log),
		nowFn: time.Now,
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply updates tunables. Window/limit changes take effect on the next
// sweep; changing CronSpec or FallbackInterval requires a Stop/Start cycle.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	ttl := s.cfg.DedupTTL
	s.mu.Unlock()
	s.cache.setTTL(ttl)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		// already running
		s.mu.Unlock()
		return
	}
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	cfg := s.cfg
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	runCtx := s.runCtx
	stopCh := s.stopCh

	s.c = cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	_, err := s.c.AddFunc(cfg.CronSpec, func() {
		s.safeSweep(runCtx, "cron")
	})
	s.mu.Unlock()

	if err != nil {
		s.log.Error("invalid cron spec, scheduled sweep disabled", logx.String("spec", cfg.CronSpec), logx.Err(err))
	} else {
		s.c.Start()
	}

	if cfg.FallbackInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in fallback sweep loop", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				}
			}()
			t := time.NewTicker(cfg.FallbackInterval)
			defer t.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case <-stopCh:
					return
				case <-t.C:
					s.safeSweep(runCtx, "fallback")
				}
			}
		}()
	}

	s.log.Info("service started",
		logx.String("cron", cfg.CronSpec),
		logx.Duration("fallback", cfg.FallbackInterval),
		logx.Duration("dedup_ttl", cfg.DedupTTL))
}

// Stop halts the timers. A sweep in flight finishes on its own; it is
// simply not rescheduled.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.c
	s.stopCh = nil
	s.runCancel = nil
	s.runCtx = nil
	s.c = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		// stop continues in background
	}
}

// safeSweep runs one scheduled sweep and never lets a panic escape into
// the cron runner.
func (s *Service) safeSweep(ctx context.Context, trigger string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in sweep", logx.String("trigger", trigger), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	res := s.RunOnce(ctx, true, true)
	if res.Dispatched > 0 || res.Deduped > 0 {
		s.log.Debug("sweep finished",
			logx.String("trigger", trigger),
			logx.Int("dispatched", res.Dispatched),
			logx.Int("deduped", res.Deduped),
			logx.Int("dropped", res.Dropped))
	}
}

// CacheSize reports the live dedup entry count (for /statusz).
func (s *Service) CacheSize() int { return s.cache.size() }

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
