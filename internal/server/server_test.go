package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/server/endpoints"
	"github.com/jackzampolin/lectern/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}

	srv, err := New(Config{
		Home:   h,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// multipartBody builds an upload request body. An empty filename omits the
// file part entirely.
func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// uploadFixture uploads testdata/sample.pdf and returns the created
// document ID. Skips the test when the fixture is absent.
func uploadFixture(t *testing.T, srv *Server, fields map[string]string) endpoints.UploadResponse {
	t.Helper()

	fixture := filepath.Join("testdata", "sample.pdf")
	data, err := os.ReadFile(fixture)
	if err != nil {
		t.Skip("test fixture not found")
	}

	body, ctype := multipartBody(t, "sample.pdf", data, fields)
	rec := doRequest(t, srv, "POST", "/api/documents/upload", body, ctype)
	if rec.Code != http.StatusCreated && rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp endpoints.UploadResponse
	decodeJSON(t, rec, &resp)
	if resp.ID == "" {
		t.Fatal("upload returned no document ID")
	}
	return resp
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp endpoints.HealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestServer_Ready(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/ready", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp endpoints.HealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "ok" || resp.Store != "ok" || resp.Scheduler != "ok" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp endpoints.StatusResponse
	decodeJSON(t, rec, &resp)
	if resp.SystemStatus != "operational" {
		t.Errorf("system_status = %q", resp.SystemStatus)
	}
	if resp.Documents.Total != 0 {
		t.Errorf("documents.total = %d", resp.Documents.Total)
	}
	if resp.Jobs.QueueCapacity != 100 {
		t.Errorf("queue_capacity = %d", resp.Jobs.QueueCapacity)
	}
	if !resp.OCR.Enabled || resp.OCR.Engine != "tesseract" {
		t.Errorf("ocr = %+v", resp.OCR)
	}
	if resp.MaxFileSizeMB != 50 {
		t.Errorf("max_file_size_mb = %d", resp.MaxFileSizeMB)
	}
	if resp.Version == "" {
		t.Error("version not set")
	}
}

func TestServer_UploadRejections(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantErr  string
	}{
		{"missing file", "", nil, "no file provided"},
		{"wrong extension", "notes.txt", []byte("hello"), "only PDF files"},
		{"corrupted pdf", "doc.pdf", []byte("%PDF-1.4\nnot really a pdf"), "corrupted PDF"},
		{"bad magic", "doc.pdf", []byte("plain text pretending"), "not a PDF file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ctype := multipartBody(t, tt.filename, tt.content, nil)
			rec := doRequest(t, srv, "POST", "/api/documents/upload", body, ctype)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}

			var resp endpoints.ErrorResponse
			decodeJSON(t, rec, &resp)
			if !strings.Contains(resp.Error, tt.wantErr) {
				t.Errorf("error = %q, want substring %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestServer_DocumentNotFound(t *testing.T) {
	srv := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/api/documents/nope"},
		{"DELETE", "/api/documents/nope"},
		{"POST", "/api/documents/nope/process"},
		{"GET", "/api/documents/nope/report"},
		{"GET", "/api/documents/nope/metrics"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rec := doRequest(t, srv, p.method, p.path, nil, "")
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_JobsEmpty(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/api/jobs", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp endpoints.ListJobsResponse
	decodeJSON(t, rec, &resp)
	if len(resp.Jobs) != 0 {
		t.Errorf("jobs = %d", len(resp.Jobs))
	}

	rec = doRequest(t, srv, "GET", "/api/jobs/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestServer_SwaggerUI(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/swagger", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "swagger-ui") {
		t.Error("swagger UI page not served")
	}
}

func TestServer_UploadLifecycle(t *testing.T) {
	srv := newTestServer(t)
	up := uploadFixture(t, srv, nil)

	if up.Status != store.StatusUploaded {
		t.Errorf("status = %q", up.Status)
	}
	if up.JobID != "" {
		t.Errorf("job queued without auto_process: %q", up.JobID)
	}

	// Listed newest first
	rec := doRequest(t, srv, "GET", "/api/documents", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list endpoints.ListDocumentsResponse
	decodeJSON(t, rec, &list)
	if list.Total != 1 || list.Documents[0].ID != up.ID {
		t.Fatalf("list = %+v", list)
	}

	// Fetch by ID
	rec = doRequest(t, srv, "GET", "/api/documents/"+up.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var doc store.Document
	decodeJSON(t, rec, &doc)
	if doc.Filename != "sample.pdf" {
		t.Errorf("filename = %q", doc.Filename)
	}

	// No report or metrics before processing
	if rec := doRequest(t, srv, "GET", "/api/documents/"+up.ID+"/report", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("report status = %d", rec.Code)
	}
	if rec := doRequest(t, srv, "GET", "/api/documents/"+up.ID+"/metrics", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("metrics status = %d", rec.Code)
	}

	// Delete and verify gone
	rec = doRequest(t, srv, "DELETE", "/api/documents/"+up.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := doRequest(t, srv, "GET", "/api/documents/"+up.ID, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestServer_ProcessQueuesJob(t *testing.T) {
	srv := newTestServer(t)
	up := uploadFixture(t, srv, nil)

	rec := doRequest(t, srv, "POST", "/api/documents/"+up.ID+"/process", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("process status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var proc endpoints.ProcessResponse
	decodeJSON(t, rec, &proc)
	if proc.JobID == "" || proc.DocumentID != up.ID {
		t.Fatalf("proc = %+v", proc)
	}

	// Job record is visible; no workers are running in this test so it
	// stays queued.
	rec = doRequest(t, srv, "GET", "/api/jobs/"+proc.JobID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("job status = %d", rec.Code)
	}
	rec = doRequest(t, srv, "GET", "/api/jobs?status=queued", nil, "")
	var list endpoints.ListJobsResponse
	decodeJSON(t, rec, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].DocumentID != up.ID {
		t.Fatalf("jobs = %+v", list.Jobs)
	}
}

func TestServer_UploadAutoProcess(t *testing.T) {
	srv := newTestServer(t)
	up := uploadFixture(t, srv, map[string]string{"auto_process": "true"})

	if up.JobID == "" {
		t.Fatal("auto_process did not queue a job")
	}

	rec := doRequest(t, srv, "GET", "/api/jobs/"+up.JobID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("job status = %d", rec.Code)
	}
}

func TestServer_StartStop(t *testing.T) {
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}

	srv, err := New(Config{
		Host:   "127.0.0.1",
		Port:   "18097",
		Home:   h,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Wait for the HTTP server to come up.
	url := fmt.Sprintf("http://%s/health", srv.Addr())
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not become healthy")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if !srv.IsRunning() {
		t.Error("IsRunning() = false while serving")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}
