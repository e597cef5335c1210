package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the lectern home directory.
	DefaultDirName = ".lectern"

	// UploadsDirName is the subdirectory incoming files land in before
	// validation.
	UploadsDirName = "uploads"

	// DocumentsDirName is the subdirectory holding one directory per
	// stored document.
	DocumentsDirName = "documents"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Per-document file names under documents/<id>/.
const (
	OriginalFileName = "original.pdf"
	RecordFileName   = "document.json"
	ReportFileName   = "report.txt"
	ResultFileName   = "result.json"
	MetricsFileName  = "metrics.json"
	PagesDirName     = "pages"
)

// Dir represents the lectern home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.lectern).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// UploadsDir returns the staging directory for incoming files.
func (d *Dir) UploadsDir() string {
	return filepath.Join(d.path, UploadsDirName)
}

// DocumentsDir returns the directory holding all stored documents.
func (d *Dir) DocumentsDir() string {
	return filepath.Join(d.path, DocumentsDirName)
}

// DocumentDir returns the directory for a single document.
func (d *Dir) DocumentDir(id string) string {
	return filepath.Join(d.DocumentsDir(), id)
}

// OriginalPath returns the stored copy of a document's uploaded PDF.
func (d *Dir) OriginalPath(id string) string {
	return filepath.Join(d.DocumentDir(id), OriginalFileName)
}

// RecordPath returns the path of a document's registry record.
func (d *Dir) RecordPath(id string) string {
	return filepath.Join(d.DocumentDir(id), RecordFileName)
}

// ReportPath returns the path of a document's rendered text report.
func (d *Dir) ReportPath(id string) string {
	return filepath.Join(d.DocumentDir(id), ReportFileName)
}

// ResultPath returns the path of a document's full pipeline result.
func (d *Dir) ResultPath(id string) string {
	return filepath.Join(d.DocumentDir(id), ResultFileName)
}

// MetricsPath returns the path of a document's stage metrics sidecar.
func (d *Dir) MetricsPath(id string) string {
	return filepath.Join(d.DocumentDir(id), MetricsFileName)
}

// PageImagesDir returns the directory for a document's rendered page
// images.
func (d *Dir) PageImagesDir(id string) string {
	return filepath.Join(d.DocumentDir(id), PagesDirName)
}

// PageImagePath returns the path to a specific page image.
// Page numbers are 1-indexed.
func (d *Dir) PageImagePath(id string, pageNum int) string {
	return filepath.Join(d.PageImagesDir(id), fmt.Sprintf("page_%04d.png", pageNum))
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.UploadsDir(), d.DocumentsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureDocumentDir creates the directory for a document.
func (d *Dir) EnsureDocumentDir(id string) error {
	return os.MkdirAll(d.DocumentDir(id), 0o755)
}

// EnsurePageImagesDir creates the page images directory for a document.
func (d *Dir) EnsurePageImagesDir(id string) error {
	return os.MkdirAll(d.PageImagesDir(id), 0o755)
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
