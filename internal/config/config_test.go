package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// These tests use t.Setenv and so cannot run in parallel.

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("EXPENSECTL_CONFIG_DIR", dir)
	t.Setenv(EnvConfigPath, dir)
	for _, k := range []string{"SERVER", "TOKEN", "STATE_DIR", "FORMAT", "BULK_CONCURRENCY", "LOG_FILE", "REQUEST_TIMEOUT"} {
		t.Setenv(EnvPrefix+"_"+k, "")
		os.Unsetenv(EnvPrefix + "_" + k)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Format != "json" || cfg.BulkConcurrency != 8 || cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.File != "" {
		t.Fatalf("no config file expected, got %q", cfg.File)
	}
}

func TestLoad_FileEnvFlagPrecedence(t *testing.T) {
	dir := isolate(t)
	yaml := "server: http://file.example/\ntoken: from-file\nformat: edn\nbulk_concurrency: 3\nrequest_timeout: 5s\n"
	if err := os.WriteFile(filepath.Join(dir, ".expensectl.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EXPENSECTL_TOKEN", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("format", "json", "")
	fs.String("server", "", "")
	if err := fs.Parse([]string{"--format", "table"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != "http://file.example" {
		t.Fatalf("server from file (trailing slash trimmed): %q", cfg.Server)
	}
	if cfg.Token != "from-env" {
		t.Fatalf("env must beat file, got %q", cfg.Token)
	}
	if cfg.Format != "table" {
		t.Fatalf("flag must beat file, got %q", cfg.Format)
	}
	if cfg.BulkConcurrency != 3 || cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("file values: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.File, ".expensectl.yaml") {
		t.Fatalf("config file used: %q", cfg.File)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("EXPENSECTL_FORMAT", "xml")

	if _, err := Load(nil); err == nil || !strings.Contains(err.Error(), "format") {
		t.Fatalf("expected format validation error, got %v", err)
	}
}

func TestLoad_ExpandsStateDir(t *testing.T) {
	isolate(t)
	t.Setenv("EXPENSECTL_STATE_DIR", "/tmp/a/../state")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StateDir != "/tmp/state" {
		t.Fatalf("state dir %q", cfg.StateDir)
	}
}
