package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// DocumentReportEndpoint handles GET /api/documents/{id}/report.
// The report is the flat text rendering of the processing results and is
// only available once a pipeline run has finished.
type DocumentReportEndpoint struct{}

var _ api.Endpoint = (*DocumentReportEndpoint)(nil)

func (e *DocumentReportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/report", e.handler
}

func (e *DocumentReportEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download processing report
//	@Description	Download the flat text report produced by the pipeline
//	@Tags			documents
//	@Produce		plain
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{string}	string
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/documents/{id}/report [get]
func (e *DocumentReportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	doc, err := st.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if doc.ReportPath == "" {
		writeError(w, http.StatusNotFound, "report not available, document has not been processed")
		return
	}

	data, err := os.ReadFile(doc.ReportPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "report file not found")
		return
	}

	name := strings.TrimSuffix(doc.Filename, ".pdf") + "_processed.txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

func (e *DocumentReportEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outputFile string
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Download a document's processing report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			text, err := client.GetText(cmd.Context(), "/api/documents/"+args[0]+"/report")
			if err != nil {
				return err
			}
			if outputFile != "" {
				return os.WriteFile(outputFile, []byte(text), 0o644)
			}
			fmt.Print(text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output-file", "f", "", "Write the report to a file")
	cmd.Annotations = map[string]string{api.GroupAnnotation: "documents"}
	return cmd
}
