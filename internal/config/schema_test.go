package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string // empty = valid
	}{
		{
			name:   "default config",
			mutate: func(c *Config) {},
		},
		{
			name: "vision engine",
			mutate: func(c *Config) {
				c.OCR.Engine = "vision"
				c.Server.Port = 9000
			},
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 99999 },
			wantErr: "server.port",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Server.Host = "" },
			wantErr: "server.host",
		},
		{
			name:    "unknown engine",
			mutate:  func(c *Config) { c.OCR.Engine = "abbyy" },
			wantErr: "ocr.engine",
		},
		{
			name:    "psm mode out of range",
			mutate:  func(c *Config) { c.OCR.Tesseract.PSMModes = []int{99} },
			wantErr: "psm_modes",
		},
		{
			name:    "empty psm list",
			mutate:  func(c *Config) { c.OCR.Tesseract.PSMModes = []int{} },
			wantErr: "psm_modes",
		},
		{
			name:    "zero max file size",
			mutate:  func(c *Config) { c.Pipeline.MaxFileSizeMB = 0 },
			wantErr: "max_file_size_mb",
		},
		{
			name:    "dpi too low",
			mutate:  func(c *Config) { c.OCR.RenderDPI = 10 },
			wantErr: "render_dpi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), "invalid config") {
				t.Errorf("error = %v, want invalid config prefix", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
