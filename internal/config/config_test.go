package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadForkSchedule_EmptyPathIsShastaFromGenesisBufferOnly(t *testing.T) {
	schedule, err := loadForkSchedule("", 30)
	if err != nil {
		t.Fatalf("loadForkSchedule: %v", err)
	}
	if schedule.PacayaToShasta != 0 {
		t.Fatalf("PacayaToShasta = %d, want 0 for an unconfigured schedule", schedule.PacayaToShasta)
	}
	if schedule.TransitionBufferSec != 30 {
		t.Fatalf("TransitionBufferSec = %d, want 30", schedule.TransitionBufferSec)
	}
}

func TestLoadForkSchedule_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forks.yaml")
	if err := os.WriteFile(path, []byte("pacayaToShastaTimestamp: 1700000000\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	schedule, err := loadForkSchedule(path, 60)
	if err != nil {
		t.Fatalf("loadForkSchedule: %v", err)
	}
	if schedule.PacayaToShasta != 1700000000 {
		t.Fatalf("PacayaToShasta = %d, want 1700000000", schedule.PacayaToShasta)
	}
	if schedule.TransitionBufferSec != 60 {
		t.Fatalf("TransitionBufferSec = %d, want 60", schedule.TransitionBufferSec)
	}
}

func TestLoadForkSchedule_MissingFileErrors(t *testing.T) {
	if _, err := loadForkSchedule(filepath.Join(t.TempDir(), "missing.yaml"), 0); err == nil {
		t.Fatal("expected error reading a missing fork schedule file, got nil")
	}
}

func TestLoadForkSchedule_MalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forks.yaml")
	if err := os.WriteFile(path, []byte("not: [valid yaml"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := loadForkSchedule(path, 0); err == nil {
		t.Fatal("expected error parsing malformed YAML, got nil")
	}
}
