package ocr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	TesseractName           = "tesseract"
	tesseractDefaultBinary  = "tesseract"
	tesseractDefaultLang    = "eng"
	tesseractDefaultOEM     = 1
	tesseractDefaultTimeout = 60 * time.Second
)

// tesseractDefaultPSMs are the page segmentation modes tried per page, in
// order: uniform block, auto page, raw line, single line, single word.
var tesseractDefaultPSMs = []int{6, 3, 13, 7, 8}

// TesseractConfig holds configuration for the tesseract engine.
type TesseractConfig struct {
	Binary   string        // Path to the tesseract binary
	Language string        // "eng" (default)
	OEM      int           // Engine mode; 1 = LSTM (default)
	PSMs     []int         // Segmentation modes to try
	Timeout  time.Duration // Per-invocation timeout
}

// TesseractEngine recognizes text by shelling out to tesseract, trying
// several page segmentation modes and keeping the highest-confidence run.
type TesseractEngine struct {
	binary   string
	language string
	oem      int
	psms     []int
	timeout  time.Duration
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewTesseractEngine creates a tesseract engine, filling defaults for
// anything unset.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	if cfg.Binary == "" {
		cfg.Binary = tesseractDefaultBinary
	}
	if cfg.Language == "" {
		cfg.Language = tesseractDefaultLang
	}
	if cfg.OEM <= 0 {
		cfg.OEM = tesseractDefaultOEM
	}
	if len(cfg.PSMs) == 0 {
		cfg.PSMs = tesseractDefaultPSMs
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = tesseractDefaultTimeout
	}

	return &TesseractEngine{
		binary:   cfg.Binary,
		language: cfg.Language,
		oem:      cfg.OEM,
		psms:     cfg.PSMs,
		timeout:  cfg.Timeout,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// Name returns the engine identifier.
func (e *TesseractEngine) Name() string {
	return TesseractName
}

// ProcessImage runs tesseract over the image once per configured
// segmentation mode and returns the highest-confidence result.
func (e *TesseractEngine) ProcessImage(ctx context.Context, image []byte, pageNum int) (*PageResult, error) {
	start := time.Now()

	tmp, err := os.CreateTemp("", "lectern-ocr-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp image: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp image: %w", err)
	}

	var (
		best     *PageResult
		firstErr error
	)
	for _, psm := range e.psms {
		runCtx, cancel := context.WithTimeout(ctx, e.timeout)
		out, err := e.run(runCtx, e.binary,
			tmpPath, "stdout",
			"--oem", strconv.Itoa(e.oem),
			"--psm", strconv.Itoa(psm),
			"-l", e.language,
			"tsv",
		)
		cancel()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("psm %d: %w", psm, err)
			}
			continue
		}

		text, conf := parseTSV(string(out))
		if best == nil || conf > best.Confidence {
			best = &PageResult{
				Success:    true,
				Text:       text,
				Confidence: conf,
				PSM:        psm,
				Engine:     TesseractName,
			}
		}
	}

	if best == nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("no segmentation mode produced output")
		}
		return &PageResult{
			Engine:        TesseractName,
			ErrorMessage:  firstErr.Error(),
			ExecutionTime: time.Since(start),
		}, firstErr
	}

	best.ExecutionTime = time.Since(start)
	return best, nil
}

// parseTSV assembles words from tesseract's TSV output into lines and
// averages word confidences. Structural rows carry conf -1 and are
// skipped.
func parseTSV(out string) (string, float64) {
	var (
		sb        strings.Builder
		lineWords []string
		lastKey   string
		confSum   float64
		confN     int
	)

	flush := func() {
		if len(lineWords) == 0 {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Join(lineWords, " "))
		lineWords = lineWords[:0]
	}

	for _, row := range strings.Split(out, "\n") {
		fields := strings.Split(row, "\t")
		if len(fields) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf <= 0 {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}

		key := fields[2] + ":" + fields[3] + ":" + fields[4]
		if key != lastKey {
			flush()
			lastKey = key
		}
		lineWords = append(lineWords, word)
		confSum += conf
		confN++
	}
	flush()

	if confN == 0 {
		return sb.String(), 0
	}
	mean := math.Round(confSum/float64(confN)*100) / 100
	return sb.String(), mean
}

// CheckTesseract verifies the tesseract binary is available on PATH.
func CheckTesseract(binary string) error {
	if binary == "" {
		binary = tesseractDefaultBinary
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("tesseract not found: %w", err)
	}
	return nil
}
