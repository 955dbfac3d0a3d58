package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
		"store": {"path": "./crm.db"},
		"scan": {"enabled": true, "cron_spec": "@every 5m", "dedup_ttl": "10m"},
		"mail": {"provider": "mock", "job": {"enabled": false}},
		"server": {"addr": ":8080"}
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Scan.CronSpec != "@every 5m" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadYAMLCoercion(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
store:
  path: ./crm.db
scan:
  enabled: true
  fallback_interval: 60s
mail:
  provider: mock
  directory:
    u1: u1@example.com
  job:
    enabled: false
server:
  addr: ":9090"
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Mail.Directory["u1"] != "u1@example.com" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.json", `{"logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}}, "typo_section": {}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("unknown top-level key should fail to parse")
	}
}

func TestParseDurationField(t *testing.T) {
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration should be rejected")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("garbage duration should be rejected")
	}
	d, err := ParseDurationOrDefault("x", "", 42*time.Second)
	if err != nil || d != 42*time.Second {
		t.Fatalf("got (%v, %v), want default", d, err)
	}
	d, err = ParseDurationOrDefault("x", "2h", time.Second)
	if err != nil || d != 2*time.Hour {
		t.Fatalf("got (%v, %v), want 2h", d, err)
	}
}

func TestSummarizeChangeHidesSecrets(t *testing.T) {
	oldCfg := &Config{Server: ServerConfig{AdminToken: "old-secret"}}
	newCfg := &Config{Server: ServerConfig{AdminToken: "new-secret"}, Scan: ScanConfig{Enabled: true}}

	changed, attrs := SummarizeChange(oldCfg, newCfg)
	if len(changed) != 2 || changed[0] != "scan" || changed[1] != "server" {
		t.Fatalf("changed = %v, want [scan server]", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("expected structured attrs for the changed sections")
	}
}
