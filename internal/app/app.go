// Package app wires the notification core together: config, logging,
// stores, the SSE hub, the scan sweep, the reminder mailer and the HTTP
// server, with one Start/Stop lifecycle and live config reload.
package app

import (
	"context"
	"fmt"
	"sync"

	"taskpulse/internal/config"
	"taskpulse/internal/eventbus"
	"taskpulse/internal/hub"
	"taskpulse/internal/mail"
	"taskpulse/internal/scan"
	"taskpulse/internal/server"
	"taskpulse/internal/storage"
	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	bus     eventbus.Bus
	hub     *hub.Hub
	store   store.Store
	persist storage.Store // nil when disabled
	scan    *scan.Service
	mailJob *mail.Job
	stats   *server.Stats
	srv     *server.Server

	runCancel context.CancelFunc
	wg        sync.WaitGroup
	serverErr <-chan error
}

// New loads the config file and constructs every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	mgr.SetLogger(log.With(logx.String("svc", "config")))
	mgr.SetValidator(validate)

	storeCfg, err := mapStoreConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	persistCfg, persistOn, err := mapStorageConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	var persist storage.Store
	if persistOn {
		persist, err = storage.Open(persistCfg, log.With(logx.String("svc", "storage")))
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	bus := eventbus.New()
	h := hub.New(log.With(logx.String("svc", "hub")))

	scanCfg, err := mapScanConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	sc := scan.New(scanCfg, st, h, persist, log.With(logx.String("svc", "scan")), bus)

	provider, err := buildProvider(cfg, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	throttle := mail.NewThrottle()
	sender := mail.NewSender(provider, throttle, mail.StaticDirectory(cfg.Mail.Directory),
		log.With(logx.String("svc", "mail")), bus)
	jobCfg, err := mapMailJobConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	job := mail.NewJob(jobCfg, st, throttle, sender, log.With(logx.String("svc", "mail")))

	srvCfg, err := mapServerConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	stats := server.NewStats()
	srv := server.New(srvCfg, h, sc, job, sender, st, stats, log.With(logx.String("svc", "http")))

	return &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		bus:     bus,
		hub:     h,
		store:   st,
		persist: persist,
		scan:    sc,
		mailJob: job,
		stats:   stats,
		srv:     srv,
	}, nil
}

// validate is the config watch hook: a reload that fails here is rejected
// without touching the running services.
func validate(_ context.Context, cfg *config.Config) error {
	if _, err := mapStoreConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapScanConfig(cfg); err != nil {
		return err
	}
	if _, err := mapMailJobConfig(cfg); err != nil {
		return err
	}
	if _, err := mapServerConfig(cfg); err != nil {
		return err
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.stats.Run(runCtx, a.bus)
	}()

	a.scan.Start(runCtx)
	if a.mailJob != nil && a.cfgMgr.Get().Mail.Job.Enabled {
		a.mailJob.Start(runCtx)
	}

	a.serverErr = a.srv.Start(runCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(runCtx)
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx)
	}()

	a.log.Info("taskpulse started")
	return nil
}

// ServerErr yields the HTTP listener's terminal error, if any.
func (a *App) ServerErr() <-chan error { return a.serverErr }

func (a *App) Stop(ctx context.Context) error {
	a.srv.Stop(ctx)
	a.mailJob.Stop()
	a.scan.Stop(ctx)
	if a.runCancel != nil {
		a.runCancel()
	}
	a.wg.Wait()

	if a.persist != nil {
		_ = a.persist.Close()
	}
	_ = a.store.Close()
	a.log.Info("taskpulse stopped")
	_ = a.logSvc.Close()
	return nil
}

// reloadLoop applies committed config updates to the running services.
// Listener address, cron spec and store paths need a process restart; the
// tunables (windows, limits, TTLs, log level) apply live.
func (a *App) reloadLoop(ctx context.Context) {
	ch := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(ch)

	prev := a.cfgMgr.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok {
				return
			}
			changed, attrs := config.SummarizeChange(prev, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("config reloaded", append(attrs, logx.Any("sections", changed))...)

			a.logSvc.Apply(mapLoggingConfig(cfg))
			if scanCfg, err := mapScanConfig(cfg); err == nil {
				a.scan.Apply(scanCfg)
			}
			if jobCfg, err := mapMailJobConfig(cfg); err == nil {
				a.mailJob.Apply(jobCfg)
			}
			prev = cfg
		}
	}
}
