package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultRenderDPI is the resolution pages are rasterized at for
// recognition.
const DefaultRenderDPI = 300

// PopplerRenderer rasterizes PDF pages with pdftoppm (poppler-utils).
type PopplerRenderer struct {
	dpi int
}

// NewPopplerRenderer builds a renderer at the given resolution, or
// DefaultRenderDPI when dpi is zero or negative.
func NewPopplerRenderer(dpi int) *PopplerRenderer {
	if dpi <= 0 {
		dpi = DefaultRenderDPI
	}
	return &PopplerRenderer{dpi: dpi}
}

// RenderPage renders one page to PNG bytes.
func (r *PopplerRenderer) RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "lectern-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// pdftoppm with -singlefile creates: <prefix>.png
	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", r.dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}

// RenderAll renders every page of a PDF into outDir with sequential
// page_NNNN.png naming and returns the written paths.
func (r *PopplerRenderer) RenderAll(ctx context.Context, pdfPath, outDir string, pageCount int) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		data, err := r.RenderPage(ctx, pdfPath, page)
		if err != nil {
			return paths, fmt.Errorf("failed to render page %d: %w", page, err)
		}
		dstPath := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", page))
		if err := os.WriteFile(dstPath, data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write page image: %w", err)
		}
		paths = append(paths, dstPath)
	}
	return paths, nil
}

// CheckPoppler verifies pdftoppm is available on PATH.
func CheckPoppler() error {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return fmt.Errorf("pdftoppm not found (install poppler-utils): %w", err)
	}
	return nil
}
