package validate

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func lastCheck(t *testing.T, r *Report) Check {
	t.Helper()
	if len(r.Checks) == 0 {
		t.Fatal("no checks recorded")
	}
	return r.Checks[len(r.Checks)-1]
}

func TestHasPDFExtension(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"doc.pdf", true},
		{"DOC.PDF", true},
		{"doc.txt", false},
		{"pdf", false},
		{"", false},
		{"archive.pdf.gz", false},
	}
	for _, tt := range tests {
		if got := HasPDFExtension(tt.name); got != tt.want {
			t.Errorf("HasPDFExtension(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFileMissing(t *testing.T) {
	r := File(filepath.Join(t.TempDir(), "gone.pdf"), 0)
	if r.Valid {
		t.Fatal("missing file should not validate")
	}
	if c := lastCheck(t, r); c.Name != "exists" || c.Passed {
		t.Errorf("check = %+v", c)
	}
	if !strings.Contains(r.Error, "does not exist") {
		t.Errorf("error = %q", r.Error)
	}
}

func TestFileDirectory(t *testing.T) {
	r := File(t.TempDir(), 0)
	if r.Valid {
		t.Fatal("directory should not validate")
	}
	if !strings.Contains(r.Error, "not a regular file") {
		t.Errorf("error = %q", r.Error)
	}
}

func TestFileWrongExtension(t *testing.T) {
	r := File(writeTemp(t, "doc.txt", []byte("hello")), 0)
	if r.Valid {
		t.Fatal("non-PDF extension should not validate")
	}
	if c := lastCheck(t, r); c.Name != "extension" {
		t.Errorf("check = %+v", c)
	}
}

func TestFileEmpty(t *testing.T) {
	r := File(writeTemp(t, "empty.pdf", nil), 0)
	if r.Valid {
		t.Fatal("empty file should not validate")
	}
	if r.Error != "file is empty" {
		t.Errorf("error = %q", r.Error)
	}
}

func TestFileTooLarge(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 1<<20+1)
	r := File(writeTemp(t, "big.pdf", data), 1)
	if r.Valid {
		t.Fatal("oversized file should not validate")
	}
	if !strings.Contains(r.Error, "file too large") || !strings.Contains(r.Error, "max: 1MB") {
		t.Errorf("error = %q", r.Error)
	}
	if r.FileSize != int64(len(data)) {
		t.Errorf("file size = %d", r.FileSize)
	}
}

func TestFileBadMagic(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"text file", "hello world, definitely not a pdf"},
		{"truncated header", "%PD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := File(writeTemp(t, "fake.pdf", []byte(tt.data)), 0)
			if r.Valid {
				t.Fatal("bad magic should not validate")
			}
			if c := lastCheck(t, r); c.Name != "magic" {
				t.Errorf("check = %+v", c)
			}
		})
	}
}

func TestFileCorrupted(t *testing.T) {
	r := File(writeTemp(t, "corrupt.pdf", []byte("%PDF-1.4\nnot really a pdf")), 0)
	if r.Valid {
		t.Fatal("corrupted file should not validate")
	}
	if c := lastCheck(t, r); c.Name != "pdf" || !strings.Contains(c.Message, "corrupted PDF") {
		t.Errorf("check = %+v", c)
	}
	for _, c := range r.Checks[:len(r.Checks)-1] {
		if !c.Passed {
			t.Errorf("check %q should have passed before the open failure", c.Name)
		}
	}
}

func TestFileValid(t *testing.T) {
	fixture := filepath.Join("testdata", "sample.pdf")
	if _, err := os.Stat(fixture); err != nil {
		t.Skip("test fixture not found")
	}

	r := File(fixture, 0)
	if !r.Valid {
		t.Fatalf("fixture should validate: %s", r.Error)
	}
	if r.PageCount < 1 {
		t.Errorf("page count = %d", r.PageCount)
	}
	if r.FileSize == 0 {
		t.Error("file size not recorded")
	}
}
