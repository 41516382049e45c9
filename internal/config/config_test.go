package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tiliavir/worklog/internal/config"
)

func TestLoadFirstRunWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if !strings.Contains(string(data), "default_project: Meetings") {
		t.Errorf("unexpected template:\n%s", data)
	}

	if cfg.Storage.Path != config.DefaultStoragePath {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Outlook.TenantID != config.DefaultTenantID || cfg.Outlook.ClientID != config.DefaultClientID {
		t.Errorf("Outlook = %+v", cfg.Outlook)
	}
}

func TestLoadPartialFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "storage:\n  path: /data/wl.db\noutlook:\n  timezone: Europe/Berlin\n  default_project: \"\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/data/wl.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Outlook.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q", cfg.Outlook.Timezone)
	}
	if cfg.Outlook.DefaultProject != config.DefaultProject {
		t.Errorf("empty DefaultProject not defaulted: %q", cfg.Outlook.DefaultProject)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WLOG_LOG_LEVEL", "debug")
	t.Setenv("WLOG_METRICS_TEXTFILE", "/tmp/wlog.prom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want env override", cfg.Log.Level)
	}
	if cfg.Metrics.Textfile != "/tmp/wlog.prom" {
		t.Errorf("Metrics.Textfile = %q", cfg.Metrics.Textfile)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage: [unclosed\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if cfg.Outlook.DefaultProject != config.DefaultProject {
		t.Errorf("defaults not returned alongside error: %+v", cfg)
	}
}
