package config

import (
	"reflect"
	"sort"
	"strings"

	"taskpulse/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging (never includes secrets like tokens or API
// keys).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled))
	}

	if !reflect.DeepEqual(oldCfg.Store, newCfg.Store) {
		changed = append(changed, "store")
		attrs = append(attrs, logx.Bool("store.path_set", strings.TrimSpace(newCfg.Store.Path) != ""))
	}

	// Storage: nil means disabled.
	oldS, newS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if (oldCfg.Storage != nil) != (newCfg.Storage != nil) || !reflect.DeepEqual(oldS, newS) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""))
	}

	if !reflect.DeepEqual(oldCfg.Scan, newCfg.Scan) {
		changed = append(changed, "scan")
		attrs = append(attrs,
			logx.Bool("scan.enabled", newCfg.Scan.Enabled),
			logx.String("scan.cron_spec", newCfg.Scan.CronSpec),
			logx.String("scan.dedup_ttl", newCfg.Scan.DedupTTL))
	}

	// Mail (never log api_key; directory summarized by size only)
	if mailChanged(oldCfg.Mail, newCfg.Mail) {
		changed = append(changed, "mail")
		attrs = append(attrs,
			logx.String("mail.provider", newCfg.Mail.Provider),
			logx.Bool("mail.api_key_set", strings.TrimSpace(newCfg.Mail.APIKey) != ""),
			logx.Int("mail.directory_size", len(newCfg.Mail.Directory)),
			logx.Bool("mail.job_enabled", newCfg.Mail.Job.Enabled))
	}

	// Server (never log admin_token)
	if serverChanged(oldCfg.Server, newCfg.Server) {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.addr", strings.TrimSpace(newCfg.Server.Addr)),
			logx.Bool("server.admin_token_set", strings.TrimSpace(newCfg.Server.AdminToken) != ""))
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func mailChanged(o, n MailConfig) bool {
	// Secrets are compared by value but only their presence is ever logged.
	return o.Provider != n.Provider || o.BaseURL != n.BaseURL || o.From != n.From ||
		o.RatePerSec != n.RatePerSec || o.APIKey != n.APIKey ||
		!reflect.DeepEqual(o.Job, n.Job) ||
		!reflect.DeepEqual(o.Directory, n.Directory)
}

func serverChanged(o, n ServerConfig) bool {
	return o != n
}
