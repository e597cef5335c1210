package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/jobs"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// ProcessResponse is returned when a processing job is queued.
type ProcessResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// ProcessDocumentEndpoint handles POST /api/documents/{id}/process.
type ProcessDocumentEndpoint struct{}

var _ api.Endpoint = (*ProcessDocumentEndpoint)(nil)

func (e *ProcessDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/{id}/process", e.handler
}

func (e *ProcessDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Process document
//	@Description	Queue a pipeline run for a stored document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		202	{object}	ProcessResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/documents/{id}/process [post]
func (e *ProcessDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not initialized")
		return
	}

	if _, err := st.Get(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	runner := svcctx.RunnerFrom(r.Context())
	sched := svcctx.SchedulerFrom(r.Context())
	if runner == nil || sched == nil {
		writeError(w, http.StatusServiceUnavailable, "processing not initialized")
		return
	}

	job := jobs.NewProcessJob(runner, id)
	if err := sched.Submit(job); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, ProcessResponse{
		JobID:      job.ID(),
		DocumentID: id,
		Status:     string(job.Status()),
	})
}

func (e *ProcessDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <id>",
		Short: "Queue processing for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ProcessResponse
			if err := client.Post(cmd.Context(), "/api/documents/"+args[0]+"/process", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Annotations = map[string]string{api.GroupAnnotation: "documents"}
	return cmd
}
