package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ros2cal", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timezone != "Europe/Berlin" || cfg.CalendarName != "Roster" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestLoad_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	in := &Config{
		Timezone:               "Europe/Prague",
		CalendarName:           "Crew",
		DefaultDurationMinutes: 45,
		OCRModel:               "gpt-4.1",
		ParseModel:             "gpt-5.1",
	}
	if err := in.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *out != *in {
		t.Errorf("roundtrip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestNormalize_FillsDefaults(t *testing.T) {
	cfg := &Config{Timezone: "Europe/Prague"}
	cfg.Normalize()

	if cfg.CalendarName != "Roster" {
		t.Errorf("calendar name default missing: %q", cfg.CalendarName)
	}
	if cfg.DefaultDurationMinutes != 60 {
		t.Errorf("duration default missing: %d", cfg.DefaultDurationMinutes)
	}
	if cfg.Timezone != "Europe/Prague" {
		t.Error("explicit value overwritten")
	}
}

func TestDefaultDuration(t *testing.T) {
	cfg := &Config{DefaultDurationMinutes: 90}
	if cfg.DefaultDuration() != 90*time.Minute {
		t.Errorf("unexpected duration: %v", cfg.DefaultDuration())
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty config path")
	}
}
