package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Store points at the CRM task/project database (read-mostly).
	Store StoreConfig `json:"store"`

	// Storage controls the optional dedup persistence layer. Nil means
	// the dispatch cache is memory-only and resets on restart.
	Storage *StorageConfig `json:"storage,omitempty"`

	Scan   ScanConfig   `json:"scan"`
	Mail   MailConfig   `json:"mail"`
	Server ServerConfig `json:"server"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StoreConfig locates the CRM database.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type StoreConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// StorageConfig controls the optional dedup persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./taskpulse.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ScanConfig controls the scheduled sweep.
type ScanConfig struct {
	Enabled bool `json:"enabled"`

	// CronSpec drives the primary sweep (robfig syntax, seconds optional).
	CronSpec string `json:"cron_spec,omitempty"`

	// FallbackInterval is a Go duration string; "0s" disables the
	// secondary timer sweep.
	FallbackInterval string `json:"fallback_interval,omitempty"`

	DueSoonWindow      string `json:"due_soon_window,omitempty"`
	StartingSoonWindow string `json:"starting_soon_window,omitempty"`
	ProjectWindow      string `json:"project_window,omitempty"`
	BucketLimit        int    `json:"bucket_limit,omitempty"`
	DedupTTL           string `json:"dedup_ttl,omitempty"`
}

// MailConfig controls reminder email delivery.
type MailConfig struct {
	// Provider is "http" (Resend-compatible API) or "mock".
	Provider string `json:"provider"`

	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	From    string `json:"from,omitempty"`

	// RatePerSec limits outbound sends.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`

	// Directory maps CRM user IDs to email addresses.
	Directory map[string]string `json:"directory,omitempty"`

	Job MailJobConfig `json:"job"`
}

type MailJobConfig struct {
	// Enabled starts the periodic sweep at boot; the admin endpoint can
	// start/stop it at runtime either way.
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`
	Window   string `json:"window,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type ServerConfig struct {
	Addr       string `json:"addr,omitempty"`
	AdminToken string `json:"admin_token,omitempty"` // do not log

	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	RateBurst  int     `json:"rate_burst,omitempty"`

	ReadHeaderTimeout string `json:"read_header_timeout,omitempty"`
	IdleTimeout       string `json:"idle_timeout,omitempty"`

	PullDueWindow   string `json:"pull_due_window,omitempty"`
	PullStartWindow string `json:"pull_start_window,omitempty"`
	PullProjWindow  string `json:"pull_project_window,omitempty"`
	PullLimit       int    `json:"pull_limit,omitempty"`
}
