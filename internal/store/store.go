// Package store keeps the on-disk document registry. Each document
// lives under documents/<id>/ in the home directory: the uploaded PDF
// as original.pdf and the registry record as document.json. Records are
// written whole-file (write .tmp then rename) to prevent partial reads.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/lectern/internal/home"
)

// Status values a document moves through.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrNotFound is returned when no record exists for a document ID.
var ErrNotFound = errors.New("document not found")

// Document is one stored PDF and its processing state.
type Document struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Title       string     `json:"title,omitempty"`
	SizeBytes   int64      `json:"size_bytes"`
	PageCount   int        `json:"page_count,omitempty"`
	Status      string     `json:"status"`
	DocType     string     `json:"document_type,omitempty"`
	Confidence  float64    `json:"classification_confidence,omitempty"`
	Error       string     `json:"error,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ReportPath  string     `json:"report_path,omitempty"`
}

// Result carries the fields the pipeline fills in when a run ends.
// A non-empty Err marks the document failed; otherwise completed.
type Result struct {
	PageCount  int
	DocType    string
	Confidence float64
	ReportPath string
	Err        string
}

// Store is the document registry. All operations are safe for
// concurrent use.
type Store struct {
	home  *home.Dir
	mu    sync.Mutex
	newID func() string
	now   func() time.Time
}

// New creates a Store rooted at the given home directory.
func New(h *home.Dir) *Store {
	return &Store{
		home:  h,
		newID: func() string { return uuid.New().String() },
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create saves an uploaded PDF under a fresh document ID and writes its
// registry record. The document starts in status uploaded.
func (s *Store) Create(filename string, r io.Reader) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if err := s.home.EnsureDocumentDir(id); err != nil {
		return nil, fmt.Errorf("failed to create document dir: %w", err)
	}

	size, err := copyAtomic(s.home.OriginalPath(id), r)
	if err != nil {
		os.RemoveAll(s.home.DocumentDir(id))
		return nil, fmt.Errorf("failed to save %s: %w", filename, err)
	}

	doc := &Document{
		ID:         id,
		Filename:   filepath.Base(filename),
		Title:      deriveTitle(filename),
		SizeBytes:  size,
		Status:     StatusUploaded,
		UploadedAt: s.now(),
	}
	if err := s.save(doc); err != nil {
		os.RemoveAll(s.home.DocumentDir(id))
		return nil, err
	}
	return doc, nil
}

// Get returns the record for a document ID.
func (s *Store) Get(id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// List returns all document records, newest upload first. Directories
// without a readable record are skipped.
func (s *Store) List() ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.home.DocumentsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read documents dir: %w", err)
	}

	var docs []*Document
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		doc, err := s.load(e.Name())
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

// SetStatus updates a document's status and returns the new record.
func (s *Store) SetStatus(id, status string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}
	doc.Status = status
	if err := s.save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SetResult records a finished pipeline run on the document and stamps
// ProcessedAt.
func (s *Store) SetResult(id string, res Result) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc.ProcessedAt = &now
	if res.Err != "" {
		doc.Status = StatusFailed
		doc.Error = res.Err
	} else {
		doc.Status = StatusCompleted
		doc.Error = ""
	}
	if res.PageCount > 0 {
		doc.PageCount = res.PageCount
	}
	if res.DocType != "" {
		doc.DocType = res.DocType
		doc.Confidence = res.Confidence
	}
	if res.ReportPath != "" {
		doc.ReportPath = res.ReportPath
	}

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a document's directory and everything in it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.home.RecordPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to stat record: %w", err)
	}
	if err := os.RemoveAll(s.home.DocumentDir(id)); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// OriginalPath returns the stored PDF path for a document.
func (s *Store) OriginalPath(id string) string {
	return s.home.OriginalPath(id)
}

func (s *Store) load(id string) (*Document, error) {
	data, err := os.ReadFile(s.home.RecordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &doc, nil
}

func (s *Store) save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", doc.ID, err)
	}
	return writeFileAtomic(s.home.RecordPath(doc.ID), append(data, '\n'))
}

// deriveTitle turns an uploaded file name into a display title.
func deriveTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

func copyAtomic(path string, r io.Reader) (int64, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return n, nil
}
