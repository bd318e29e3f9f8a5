package config

import (
	"os"
	"testing"
	"time"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"HTTP_PORT", "POLL_INTERVAL", "RETENTION", "MAX_UPLOAD_BYTES", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.HTTPPort != "5211" {
		t.Fatalf("expected default port 5211, got %s", cfg.HTTPPort)
	}
	if cfg.PollInterval != 20*time.Second {
		t.Fatalf("expected 20s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.JanitorInterval != 5*time.Minute || cfg.Retention != time.Hour {
		t.Fatalf("unexpected janitor defaults: interval=%s retention=%s", cfg.JanitorInterval, cfg.Retention)
	}
	if cfg.MaxUploadBytes != 20*1024*1024 {
		t.Fatalf("expected 20MiB upload ceiling, got %d", cfg.MaxUploadBytes)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected redis mirror disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("UPLOAD_S3_PATH_STYLE", "true")
	t.Setenv("RETENTION", "not-a-duration")

	cfg := Load()
	if cfg.HTTPPort != "9000" {
		t.Fatalf("expected port override, got %s", cfg.HTTPPort)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("expected 5s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.RedisDB)
	}
	if !cfg.UploadS3PathStyle {
		t.Fatalf("expected path style true")
	}
	if cfg.Retention != time.Hour {
		t.Fatalf("expected fallback retention on parse error, got %s", cfg.Retention)
	}
}
