// Package jobcfg assembles pipeline runners from the application config.
// It bridges the config and pipeline packages so that the server and the
// local process command build runners the same way.
package jobcfg

import (
	"fmt"
	"log/slog"

	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/metrics"
	"github.com/jackzampolin/lectern/internal/ocr"
	"github.com/jackzampolin/lectern/internal/pipeline"
	"github.com/jackzampolin/lectern/internal/store"
)

// Deps holds the shared services a runner is built around.
type Deps struct {
	Home    *home.Dir
	Store   *store.Store
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// BuildRunner constructs a pipeline runner from the given config.
func BuildRunner(cfg *config.Config, deps Deps) (*pipeline.Runner, error) {
	engine, renderer, err := BuildOCR(cfg)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Config{
		Home:           deps.Home,
		Store:          deps.Store,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
		MaxSizeMB:      cfg.Pipeline.MaxFileSizeMB,
		ExtractWorkers: cfg.Pipeline.ExtractWorkers,
		TableTimeout:   cfg.Pipeline.TableTimeout(),
		OCREngine:      engine,
		OCRRenderer:    renderer,
		OCRMinChars:    cfg.OCR.MinTextChars,
	})
}

// BuildOCR constructs the configured OCR engine and page renderer.
// A disabled OCR section yields a nil engine, which the processor reports
// as OCR unavailable instead of failing the run.
func BuildOCR(cfg *config.Config) (ocr.Engine, ocr.Renderer, error) {
	if !cfg.OCR.Enabled {
		return nil, nil, nil
	}

	renderer := ocr.NewPopplerRenderer(cfg.OCR.RenderDPI)

	switch cfg.OCR.Engine {
	case ocr.TesseractName:
		eng := ocr.NewTesseractEngine(ocr.TesseractConfig{
			Binary:   cfg.OCR.Tesseract.Binary,
			Language: cfg.OCR.Tesseract.Languages,
			PSMs:     cfg.OCR.Tesseract.PSMModes,
		})
		return eng, renderer, nil

	case ocr.VisionName:
		key := config.ResolveEnvVars(cfg.OCR.Vision.APIKey)
		if key == "" {
			return nil, nil, fmt.Errorf("vision OCR requires an API key (set OPENAI_API_KEY or ocr.vision.api_key)")
		}
		eng := ocr.NewVisionEngine(ocr.VisionConfig{
			APIKey:     key,
			Model:      cfg.OCR.Vision.Model,
			MaxRetries: cfg.OCR.Vision.MaxRetries,
			Timeout:    cfg.OCR.Vision.Timeout(),
		})
		return eng, renderer, nil

	default:
		return nil, nil, fmt.Errorf("unknown OCR engine: %q", cfg.OCR.Engine)
	}
}
