package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/jobs"
	"github.com/jackzampolin/lectern/internal/svcctx"
	"github.com/jackzampolin/lectern/internal/validate"
)

// UploadResponse is returned after a successful document upload.
type UploadResponse struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Status    string `json:"status"`
	NeedsOCR  bool   `json:"needs_ocr,omitempty"`
	JobID     string `json:"job_id,omitempty"`
}

// UploadDocumentEndpoint handles POST /api/documents/upload.
type UploadDocumentEndpoint struct{}

var _ api.Endpoint = (*UploadDocumentEndpoint)(nil)

func (e *UploadDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/upload", e.handler
}

func (e *UploadDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Upload a PDF document
//	@Description	Validates and stores a PDF; auto_process=true also queues a processing job
//	@Tags			documents
//	@Accept			mpfd
//	@Produce		json
//	@Param			file			formData	file	true	"PDF file"
//	@Param			auto_process	formData	string	false	"Queue processing after upload (true/false)"
//	@Success		201				{object}	UploadResponse
//	@Success		202				{object}	UploadResponse
//	@Failure		400				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Router			/api/documents/upload [post]
func (e *UploadDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if !validate.HasPDFExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, "invalid file type, only PDF files are accepted")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not initialized")
		return
	}

	maxMB := validate.DefaultMaxSizeMB
	if mgr := svcctx.ConfigFrom(r.Context()); mgr != nil {
		maxMB = mgr.Get().Pipeline.MaxFileSizeMB
	}

	// Spool to a temp file so the upload can be validated before it
	// enters the store.
	tmp, err := os.CreateTemp("", "lectern-upload-*.pdf")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create temp file")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	rep := validate.File(tmpPath, maxMB)
	if !rep.Valid {
		writeError(w, http.StatusBadRequest, rep.Error)
		return
	}

	saved, err := os.Open(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}
	defer saved.Close()

	doc, err := st.Create(header.Filename, saved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store document: "+err.Error())
		return
	}

	resp := UploadResponse{
		ID:        doc.ID,
		Filename:  doc.Filename,
		SizeBytes: doc.SizeBytes,
		Status:    doc.Status,
		NeedsOCR:  rep.NeedsOCR,
	}

	if r.FormValue("auto_process") != "true" {
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	runner := svcctx.RunnerFrom(r.Context())
	sched := svcctx.SchedulerFrom(r.Context())
	if runner == nil || sched == nil {
		writeError(w, http.StatusServiceUnavailable, "processing not initialized")
		return
	}

	job := jobs.NewProcessJob(runner, doc.ID)
	if err := sched.Submit(job); err != nil {
		writeError(w, http.StatusServiceUnavailable,
			fmt.Sprintf("stored document %s but could not queue processing: %v", doc.ID, err))
		return
	}

	resp.JobID = job.ID()
	writeJSON(w, http.StatusAccepted, resp)
}

func (e *UploadDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var process bool
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			fields := map[string]string{}
			if process {
				fields["auto_process"] = "true"
			}

			var resp UploadResponse
			if err := client.UploadFile(cmd.Context(), "/api/documents/upload", args[0], fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&process, "process", false, "Queue processing after upload")
	cmd.Annotations = map[string]string{api.GroupAnnotation: "documents"}
	return cmd
}
