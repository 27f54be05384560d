package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-wordfmt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-wordfmt" {
			t.Errorf("expected path /tmp/test-wordfmt, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-wordfmt")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-wordfmt/config.yaml"},
		{"DownloadsDir", dir.DownloadsDir(), "/tmp/test-wordfmt/downloads"},
		{"Resolve relative", dir.Resolve("cache.db"), "/tmp/test-wordfmt/cache.db"},
		{"Resolve absolute", dir.Resolve("/var/lib/cache.db"), "/var/lib/cache.db"},
		{"Resolve empty", dir.Resolve(""), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	dir, err := New(filepath.Join(t.TempDir(), "wordfmt-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("expected directory to not exist yet")
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if !dir.Exists() {
		t.Error("expected directory to exist")
	}
	// Idempotent
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("second EnsureExists() error = %v", err)
	}

	if dir.ConfigExists() {
		t.Error("expected no config file")
	}
	if err := os.WriteFile(dir.ConfigPath(), []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if !dir.ConfigExists() {
		t.Error("expected config file to exist")
	}
}
