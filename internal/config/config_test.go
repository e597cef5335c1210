package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Pipeline.MaxFileSizeMB != 50 {
		t.Errorf("MaxFileSizeMB = %d, want 50", cfg.Pipeline.MaxFileSizeMB)
	}
	if cfg.Pipeline.ExtractWorkers < 1 || cfg.Pipeline.ExtractWorkers > 4 {
		t.Errorf("ExtractWorkers = %d, want 1..4", cfg.Pipeline.ExtractWorkers)
	}
	if cfg.Pipeline.QueueSize != 100 {
		t.Errorf("QueueSize = %d, want 100", cfg.Pipeline.QueueSize)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Pipeline.Workers)
	}
	if !cfg.OCR.Enabled {
		t.Error("OCR should be enabled by default")
	}
	if cfg.OCR.Engine != "tesseract" {
		t.Errorf("OCR.Engine = %q, want tesseract", cfg.OCR.Engine)
	}
	if cfg.OCR.MinTextChars != 200 {
		t.Errorf("MinTextChars = %d, want 200", cfg.OCR.MinTextChars)
	}
	wantPSMs := []int{6, 3, 13, 7, 8}
	if len(cfg.OCR.Tesseract.PSMModes) != len(wantPSMs) {
		t.Fatalf("PSMModes = %v, want %v", cfg.OCR.Tesseract.PSMModes, wantPSMs)
	}
	for i, m := range wantPSMs {
		if cfg.OCR.Tesseract.PSMModes[i] != m {
			t.Errorf("PSMModes[%d] = %d, want %d", i, cfg.OCR.Tesseract.PSMModes[i], m)
		}
	}
	if cfg.OCR.Vision.APIKey != "${OPENAI_API_KEY}" {
		t.Errorf("Vision.APIKey = %q, want env placeholder", cfg.OCR.Vision.APIKey)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	p := PipelineCfg{TableStrategyTimeoutSeconds: 30}
	if p.TableTimeout() != 30*time.Second {
		t.Errorf("TableTimeout() = %v, want 30s", p.TableTimeout())
	}

	v := VisionCfg{TimeoutSeconds: 120}
	if v.Timeout() != 120*time.Second {
		t.Errorf("Timeout() = %v, want 120s", v.Timeout())
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})

	t.Run("resolves embedded references", func(t *testing.T) {
		os.Setenv("TEST_REGION", "eu")
		defer os.Unsetenv("TEST_REGION")

		result := ResolveEnvVars("https://${TEST_REGION}.example.com")
		if result != "https://eu.example.com" {
			t.Errorf("expected https://eu.example.com, got %s", result)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
server:
  port: 9999
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Server.Port != 9999 {
			t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
		}

		// Keys the file does not mention keep their defaults.
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("Server.Host = %q, want default 127.0.0.1", cfg.Server.Host)
		}
		if cfg.Pipeline.MaxFileSizeMB != 50 {
			t.Errorf("MaxFileSizeMB = %d, want default 50", cfg.Pipeline.MaxFileSizeMB)
		}
		if len(cfg.OCR.Tesseract.PSMModes) != 5 {
			t.Errorf("PSMModes = %v, want the default five modes", cfg.OCR.Tesseract.PSMModes)
		}
	})

	t.Run("rejects invalid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
server:
  port: 99999
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		_, err := NewManager(configFile)
		if err == nil {
			t.Fatal("expected error for out-of-range port")
		}
		if !strings.Contains(err.Error(), "invalid config") {
			t.Errorf("error = %v, want invalid config message", err)
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("server:\n  port: 8080\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("server:\n  port: 8080\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Server.Port
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("server:\n  port: 8081\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Server.Port; got != 8081 {
		t.Errorf("initial Server.Port = %d, want 8081", got)
	}

	var callbackCount atomic.Int32
	var lastPort atomic.Int32

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastPort.Store(int32(cfg.Server.Port))
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("server:\n  port: 8082\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Server.Port; got != 8082 {
		t.Errorf("config not updated: Server.Port = %d, want 8082", got)
	}
	if lastPort.Load() != 8082 {
		t.Errorf("callback received port %d, want 8082", lastPort.Load())
	}
}

func TestWriteDefault(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# Lectern configuration") {
		t.Error("written config should start with the comment header")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.OCR.Engine != "tesseract" {
		t.Errorf("OCR.Engine = %q, want tesseract", cfg.OCR.Engine)
	}
	if len(cfg.OCR.Tesseract.PSMModes) != 5 {
		t.Errorf("PSMModes = %v, want five modes", cfg.OCR.Tesseract.PSMModes)
	}
}
