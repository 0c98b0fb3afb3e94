package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.PollWait != 25*time.Second || cfg.SaveBurst != 4 || cfg.SaveRate != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.HostTag() != language.AmericanEnglish || cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("tag=%v level=%v", cfg.HostTag(), cfg.SlogLevel())
	}
}

func TestLoadTrimsIDsAndReadsDotenv(t *testing.T) {
	t.Setenv("Y8_APP_ID", "  app-123 \n")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("Y8_APP_ID=from-file\nY8BRIDGE_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets only variables missing from the environment; register
	// cleanup for the one it will add.
	t.Setenv("Y8BRIDGE_LOG_LEVEL", "")
	os.Unsetenv("Y8BRIDGE_LOG_LEVEL")

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppID != "app-123" {
		t.Fatalf("app id=%q", cfg.AppID)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("level=%v", cfg.SlogLevel())
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("Y8BRIDGE_SAVE_BURST", "lots")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadRejectsUnusableSaveLimits(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"Y8BRIDGE_SAVE_BURST", "0", "Y8BRIDGE_SAVE_BURST"},
		{"Y8BRIDGE_SAVE_RATE", "0", "Y8BRIDGE_SAVE_RATE"},
		{"Y8BRIDGE_SAVE_RATE", "-1", "Y8BRIDGE_SAVE_RATE"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want mention of %s", err, tc.want)
			}
		})
	}
}
