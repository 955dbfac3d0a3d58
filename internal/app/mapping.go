package app

import (
	"fmt"
	"strings"
	"time"

	"taskpulse/internal/config"
	"taskpulse/internal/mail"
	"taskpulse/internal/scan"
	"taskpulse/internal/server"
	"taskpulse/internal/storage"
	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStoreConfig(cfg *config.Config) (store.Config, error) {
	busy, err := config.ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{Path: strings.TrimSpace(cfg.Store.Path), BusyTimeout: busy}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapScanConfig(cfg *config.Config) (scan.Config, error) {
	sc := cfg.Scan
	// Omitted defaults to 60s; an explicit "0s" disables the fallback sweep.
	fallback := 60 * time.Second
	if strings.TrimSpace(sc.FallbackInterval) != "" {
		d, err := config.ParseDurationField("scan.fallback_interval", sc.FallbackInterval)
		if err != nil {
			return scan.Config{}, err
		}
		fallback = d
	}
	dueSoon, err := config.ParseDurationOrDefault("scan.due_soon_window", sc.DueSoonWindow, time.Hour)
	if err != nil {
		return scan.Config{}, err
	}
	startingSoon, err := config.ParseDurationOrDefault("scan.starting_soon_window", sc.StartingSoonWindow, time.Hour)
	if err != nil {
		return scan.Config{}, err
	}
	project, err := config.ParseDurationOrDefault("scan.project_window", sc.ProjectWindow, 24*time.Hour)
	if err != nil {
		return scan.Config{}, err
	}
	ttl, err := config.ParseDurationOrDefault("scan.dedup_ttl", sc.DedupTTL, 10*time.Minute)
	if err != nil {
		return scan.Config{}, err
	}
	return scan.Config{
		Enabled:            sc.Enabled,
		CronSpec:           sc.CronSpec,
		FallbackInterval:   fallback,
		DueSoonWindow:      dueSoon,
		StartingSoonWindow: startingSoon,
		ProjectWindow:      project,
		BucketLimit:        sc.BucketLimit,
		DedupTTL:           ttl,
	}, nil
}

func mapMailJobConfig(cfg *config.Config) (mail.JobConfig, error) {
	jc := cfg.Mail.Job
	interval, err := config.ParseDurationOrDefault("mail.job.interval", jc.Interval, time.Hour)
	if err != nil {
		return mail.JobConfig{}, err
	}
	window, err := config.ParseDurationOrDefault("mail.job.window", jc.Window, 24*time.Hour)
	if err != nil {
		return mail.JobConfig{}, err
	}
	return mail.JobConfig{
		Enabled:  jc.Enabled,
		Interval: interval,
		Window:   window,
		Limit:    jc.Limit,
	}, nil
}

func mapServerConfig(cfg *config.Config) (server.Config, error) {
	sc := cfg.Server
	readHeader, err := config.ParseDurationField("server.read_header_timeout", sc.ReadHeaderTimeout)
	if err != nil {
		return server.Config{}, err
	}
	idle, err := config.ParseDurationField("server.idle_timeout", sc.IdleTimeout)
	if err != nil {
		return server.Config{}, err
	}
	due, err := config.ParseDurationField("server.pull_due_window", sc.PullDueWindow)
	if err != nil {
		return server.Config{}, err
	}
	start, err := config.ParseDurationField("server.pull_start_window", sc.PullStartWindow)
	if err != nil {
		return server.Config{}, err
	}
	proj, err := config.ParseDurationField("server.pull_project_window", sc.PullProjWindow)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:              sc.Addr,
		AdminToken:        sc.AdminToken,
		RateRPS:           sc.RatePerSec,
		RateBurst:         sc.RateBurst,
		ReadHeaderTimeout: readHeader,
		IdleTimeout:       idle,
		PullDueWindow:     due,
		PullStartWindow:   start,
		PullProjWindow:    proj,
		PullLimit:         sc.PullLimit,
	}, nil
}

func buildProvider(cfg *config.Config, log logx.Logger) (mail.Provider, error) {
	mc := cfg.Mail
	switch strings.ToLower(strings.TrimSpace(mc.Provider)) {
	case "", "mock":
		return mail.NewMockProvider(log.With(logx.String("svc", "mail"))), nil
	case "http":
		if strings.TrimSpace(mc.APIKey) == "" {
			return nil, fmt.Errorf("mail.api_key is required when mail.provider=http")
		}
		if strings.TrimSpace(mc.From) == "" {
			return nil, fmt.Errorf("mail.from is required when mail.provider=http")
		}
		return mail.NewHTTPProvider(mail.HTTPProviderConfig{
			BaseURL: mc.BaseURL,
			APIKey:  mc.APIKey,
			From:    mc.From,
			RateRPS: mc.RatePerSec,
		}, log.With(logx.String("svc", "mail"))), nil
	default:
		return nil, fmt.Errorf("unknown mail.provider: %s", mc.Provider)
	}
}
