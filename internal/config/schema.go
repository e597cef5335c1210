package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Config holds lectern configuration.
// Stored at: ~/.lectern/config.yaml
type Config struct {
	Server   ServerCfg   `mapstructure:"server" yaml:"server" json:"server"`
	Pipeline PipelineCfg `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	OCR      OCRCfg      `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host" json:"host"`
	Port int    `mapstructure:"port" yaml:"port" json:"port"`
}

// PipelineCfg tunes pipeline execution.
type PipelineCfg struct {
	MaxFileSizeMB               int `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb" json:"max_file_size_mb"`
	ExtractWorkers              int `mapstructure:"extract_workers" yaml:"extract_workers" json:"extract_workers"`
	TableStrategyTimeoutSeconds int `mapstructure:"table_strategy_timeout_seconds" yaml:"table_strategy_timeout_seconds" json:"table_strategy_timeout_seconds"`
	QueueSize                   int `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"` // job queue buffer
	Workers                     int `mapstructure:"workers" yaml:"workers" json:"workers"`          // scheduler worker count
}

// TableTimeout returns the per-strategy table extraction timeout.
func (p PipelineCfg) TableTimeout() time.Duration {
	return time.Duration(p.TableStrategyTimeoutSeconds) * time.Second
}

// OCRCfg configures the OCR stage.
type OCRCfg struct {
	Enabled      bool         `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Engine       string       `mapstructure:"engine" yaml:"engine" json:"engine"` // "tesseract" or "vision"
	MinTextChars int          `mapstructure:"min_text_chars" yaml:"min_text_chars" json:"min_text_chars"`
	RenderDPI    int          `mapstructure:"render_dpi" yaml:"render_dpi" json:"render_dpi"`
	Tesseract    TesseractCfg `mapstructure:"tesseract" yaml:"tesseract" json:"tesseract"`
	Vision       VisionCfg    `mapstructure:"vision" yaml:"vision" json:"vision"`
}

// TesseractCfg configures the local tesseract engine.
type TesseractCfg struct {
	Binary    string `mapstructure:"binary" yaml:"binary" json:"binary"`
	Languages string `mapstructure:"languages" yaml:"languages" json:"languages"`
	PSMModes  []int  `mapstructure:"psm_modes" yaml:"psm_modes" json:"psm_modes"` // segmentation modes tried per page
}

// VisionCfg configures the vision-model engine.
type VisionCfg struct {
	Model          string `mapstructure:"model" yaml:"model" json:"model"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // supports ${ENV_VAR} syntax
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the vision engine HTTP timeout.
func (v VisionCfg) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Pipeline: PipelineCfg{
			MaxFileSizeMB:               50,
			ExtractWorkers:              defaultExtractWorkers(),
			TableStrategyTimeoutSeconds: 30,
			QueueSize:                   100,
			Workers:                     2,
		},
		OCR: OCRCfg{
			Enabled:      true,
			Engine:       "tesseract",
			MinTextChars: 200,
			RenderDPI:    300,
			Tesseract: TesseractCfg{
				Binary:    "tesseract",
				Languages: "eng",
				PSMModes:  []int{6, 3, 13, 7, 8},
			},
			Vision: VisionCfg{
				Model:          "gpt-4o-mini",
				APIKey:         "${OPENAI_API_KEY}",
				MaxRetries:     3,
				TimeoutSeconds: 120,
			},
		},
	}
}

// defaultExtractWorkers uses one worker per CPU, capped at four.
func defaultExtractWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	return n
}

// configSchema constrains config files. Unknown keys are allowed so old
// binaries tolerate newer config files.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "server": {
      "type": "object",
      "properties": {
        "host": {"type": "string", "minLength": 1},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535}
      }
    },
    "pipeline": {
      "type": "object",
      "properties": {
        "max_file_size_mb": {"type": "integer", "minimum": 1},
        "extract_workers": {"type": "integer", "minimum": 1},
        "table_strategy_timeout_seconds": {"type": "integer", "minimum": 1},
        "queue_size": {"type": "integer", "minimum": 1},
        "workers": {"type": "integer", "minimum": 1}
      }
    },
    "ocr": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "engine": {"type": "string", "enum": ["tesseract", "vision"]},
        "min_text_chars": {"type": "integer", "minimum": 0},
        "render_dpi": {"type": "integer", "minimum": 72, "maximum": 1200},
        "tesseract": {
          "type": "object",
          "properties": {
            "binary": {"type": "string", "minLength": 1},
            "languages": {"type": "string", "minLength": 1},
            "psm_modes": {
              "type": "array",
              "items": {"type": "integer", "minimum": 0, "maximum": 13},
              "minItems": 1
            }
          }
        },
        "vision": {
          "type": "object",
          "properties": {
            "model": {"type": "string", "minLength": 1},
            "api_key": {"type": "string"},
            "max_retries": {"type": "integer", "minimum": 0},
            "timeout_seconds": {"type": "integer", "minimum": 1}
          }
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("config.json", configSchema)

// Validate checks the configuration against the embedded schema.
func (c *Config) Validate() error {
	// Round-trip through JSON so the validator sees plain maps and
	// numbers instead of Go structs.
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid config: %s", formatValidationError(ve))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// formatValidationError flattens a validation error to its most specific
// cause, prefixed with the offending key path.
func formatValidationError(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	loc = strings.ReplaceAll(loc, "/", ".")
	if loc == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}
