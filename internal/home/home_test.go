package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-lectern")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-lectern" {
			t.Errorf("expected path /tmp/test-lectern, got %s", dir.Path())
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
	dir, _ := New("/tmp/test-lectern")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"UploadsDir", dir.UploadsDir(), "/tmp/test-lectern/uploads"},
		{"DocumentsDir", dir.DocumentsDir(), "/tmp/test-lectern/documents"},
		{"DocumentDir", dir.DocumentDir("abc"), "/tmp/test-lectern/documents/abc"},
		{"OriginalPath", dir.OriginalPath("abc"), "/tmp/test-lectern/documents/abc/original.pdf"},
		{"RecordPath", dir.RecordPath("abc"), "/tmp/test-lectern/documents/abc/document.json"},
		{"ReportPath", dir.ReportPath("abc"), "/tmp/test-lectern/documents/abc/report.txt"},
		{"ResultPath", dir.ResultPath("abc"), "/tmp/test-lectern/documents/abc/result.json"},
		{"MetricsPath", dir.MetricsPath("abc"), "/tmp/test-lectern/documents/abc/metrics.json"},
		{"PageImagesDir", dir.PageImagesDir("abc"), "/tmp/test-lectern/documents/abc/pages"},
		{"PageImagePath", dir.PageImagePath("abc", 3), "/tmp/test-lectern/documents/abc/pages/page_0003.png"},
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-lectern/config.yaml"},
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
	// Use a temp directory
	tmpDir := t.TempDir()
	lecternDir := filepath.Join(tmpDir, "lectern-test")

	dir, err := New(lecternDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Directory shouldn't exist yet
	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	// Create it
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	// Now it should exist
	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}

	// Uploads and documents directories should also exist
	for _, sub := range []string{dir.UploadsDir(), dir.DocumentsDir()} {
		if _, err := os.Stat(sub); os.IsNotExist(err) {
			t.Errorf("%s should exist after EnsureExists", sub)
		}
	}
}

func TestDir_EnsureDocumentDir(t *testing.T) {
	dir, _ := New(t.TempDir())

	if err := dir.EnsureDocumentDir("doc-1"); err != nil {
		t.Fatalf("EnsureDocumentDir failed: %v", err)
	}
	if _, err := os.Stat(dir.DocumentDir("doc-1")); err != nil {
		t.Errorf("document dir should exist: %v", err)
	}

	if err := dir.EnsurePageImagesDir("doc-1"); err != nil {
		t.Fatalf("EnsurePageImagesDir failed: %v", err)
	}
	if _, err := os.Stat(dir.PageImagesDir("doc-1")); err != nil {
		t.Errorf("page images dir should exist: %v", err)
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	// Config doesn't exist
	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	// Create a config file
	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Now it should exist
	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}
