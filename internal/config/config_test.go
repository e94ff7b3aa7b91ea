package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jcdorr003/marty-emulator/internal/ws"
)

func useTempDirs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MARTY_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("MARTY_LOG_DIR", filepath.Join(dir, "logs"))
	return dir
}

func TestLoadDefaultsWritesConfigFile(t *testing.T) {
	useTempDirs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.Mode() != ws.ModePermissive {
		t.Fatalf("expected permissive default, got %q", cfg.Mode())
	}
	if cfg.IdleTimeout() != 0 {
		t.Fatalf("expected no idle timeout by default")
	}
	if _, err := os.Stat(GetConfigFile()); err != nil {
		t.Fatalf("expected default config file: %v", err)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	useTempDirs(t)
	if err := EnsureDirs(); err != nil {
		t.Fatalf("dirs: %v", err)
	}
	if err := os.WriteFile(GetConfigFile(), []byte(`{"port": 9090, "handshakeMode": "strict"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MARTY_HOST", "127.0.0.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.Mode() != ws.ModeStrict {
		t.Fatalf("expected strict mode, got %q", cfg.Mode())
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	useTempDirs(t)
	t.Setenv("MARTY_HANDSHAKEMODE", "lenient")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown handshake mode")
	}
}

func TestValidateMaxFrameBytesBounds(t *testing.T) {
	useTempDirs(t)

	cfg := Default()
	cfg.MaxFrameBytes = ws.MaxPayloadCeiling + 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error above the payload ceiling")
	}

	cfg.MaxFrameBytes = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("0 should fall back to the ceiling: %v", err)
	}
}
