package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/metrics"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// DocumentMetricsEndpoint handles GET /api/documents/{id}/metrics.
// It serves the live registry when the document was processed in this
// server's lifetime and falls back to the metrics sidecar on disk.
type DocumentMetricsEndpoint struct{}

var _ api.Endpoint = (*DocumentMetricsEndpoint)(nil)

func (e *DocumentMetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/metrics", e.handler
}

func (e *DocumentMetricsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Document stage metrics
//	@Description	Per-stage timing summary for a processed document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	metrics.Summary
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/documents/{id}/metrics [get]
func (e *DocumentMetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	if reg := svcctx.MetricsFrom(r.Context()); reg != nil {
		if rec, ok := reg.Get(id); ok {
			writeJSON(w, http.StatusOK, rec.Summary())
			return
		}
	}

	// Processed in a previous run; read the sidecar written next to the
	// document.
	if h := svcctx.HomeFrom(r.Context()); h != nil {
		if rec, err := metrics.ReadFile(h.MetricsPath(id)); err == nil {
			writeJSON(w, http.StatusOK, rec.Summary())
			return
		}
	}

	writeError(w, http.StatusNotFound, "no metrics recorded for document")
}

func (e *DocumentMetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics <id>",
		Short: "Show a document's stage metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var summary metrics.Summary
			if err := client.Get(cmd.Context(), "/api/documents/"+args[0]+"/metrics", &summary); err != nil {
				return err
			}
			return api.Output(summary)
		},
	}
	cmd.Annotations = map[string]string{api.GroupAnnotation: "documents"}
	return cmd
}
