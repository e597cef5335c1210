// Package config loads lectern configuration from file, environment,
// and defaults, with hot reload on file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// The loaded configuration is checked against the embedded schema.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	setDefaults()

	// Environment variables with LECTERN_ prefix. The replacer maps
	// nested keys, e.g. LECTERN_SERVER_PORT -> server.port.
	viper.SetEnvPrefix("LECTERN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.lectern")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf key so partial config files keep the
// defaults for keys they do not mention.
func setDefaults() {
	d := DefaultConfig()

	viper.SetDefault("server.host", d.Server.Host)
	viper.SetDefault("server.port", d.Server.Port)

	viper.SetDefault("pipeline.max_file_size_mb", d.Pipeline.MaxFileSizeMB)
	viper.SetDefault("pipeline.extract_workers", d.Pipeline.ExtractWorkers)
	viper.SetDefault("pipeline.table_strategy_timeout_seconds", d.Pipeline.TableStrategyTimeoutSeconds)
	viper.SetDefault("pipeline.queue_size", d.Pipeline.QueueSize)
	viper.SetDefault("pipeline.workers", d.Pipeline.Workers)

	viper.SetDefault("ocr.enabled", d.OCR.Enabled)
	viper.SetDefault("ocr.engine", d.OCR.Engine)
	viper.SetDefault("ocr.min_text_chars", d.OCR.MinTextChars)
	viper.SetDefault("ocr.render_dpi", d.OCR.RenderDPI)
	viper.SetDefault("ocr.tesseract.binary", d.OCR.Tesseract.Binary)
	viper.SetDefault("ocr.tesseract.languages", d.OCR.Tesseract.Languages)
	viper.SetDefault("ocr.tesseract.psm_modes", d.OCR.Tesseract.PSMModes)
	viper.SetDefault("ocr.vision.model", d.OCR.Vision.Model)
	viper.SetDefault("ocr.vision.api_key", d.OCR.Vision.APIKey)
	viper.SetDefault("ocr.vision.max_retries", d.OCR.Vision.MaxRetries)
	viper.SetDefault("ocr.vision.timeout_seconds", d.OCR.Vision.TimeoutSeconds)
}

// load parses the current viper state into a validated Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. Reloads that fail
// to parse or validate keep the previous configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Lectern configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
