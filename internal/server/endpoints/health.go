package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/svcctx"
	"github.com/jackzampolin/lectern/version"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store,omitempty"`
	Scheduler string `json:"scheduler,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server health
//	@Description	Liveness check; returns ok while the HTTP server responds
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

var _ api.Endpoint = (*ReadyEndpoint)(nil)

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server readiness
//	@Description	Readiness check; ok only when the store and scheduler are up
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "ok", Scheduler: "ok"}

	if svcctx.StoreFrom(r.Context()) == nil {
		resp.Status = "degraded"
		resp.Store = "not_initialized"
	}
	if svcctx.SchedulerFrom(r.Context()) == nil {
		resp.Status = "degraded"
		resp.Scheduler = "not_initialized"
	}

	if resp.Status != "ok" {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (store + scheduler)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:    %s\n", resp.Status)
			fmt.Printf("Store:     %s\n", resp.Store)
			fmt.Printf("Scheduler: %s\n", resp.Scheduler)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	SystemStatus  string         `json:"system_status"`
	Version       string         `json:"version"`
	Documents     DocumentCounts `json:"documents"`
	Jobs          JobCounts      `json:"jobs"`
	OCR           OCRStatus      `json:"ocr"`
	MaxFileSizeMB int            `json:"max_file_size_mb"`
}

// DocumentCounts breaks stored documents down by status.
type DocumentCounts struct {
	Total      int `json:"total"`
	Uploaded   int `json:"uploaded"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// JobCounts shows scheduler load.
type JobCounts struct {
	Active        int `json:"active"`
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`
}

// OCRStatus shows the configured OCR engine.
type OCRStatus struct {
	Enabled bool   `json:"enabled"`
	Engine  string `json:"engine,omitempty"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		System status
//	@Description	Document counts, scheduler load, and OCR configuration
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		SystemStatus: "operational",
		Version:      version.GitRelease,
	}

	if st := svcctx.StoreFrom(r.Context()); st != nil {
		docs, err := st.List()
		if err == nil {
			resp.Documents.Total = len(docs)
			for _, d := range docs {
				switch d.Status {
				case store.StatusUploaded:
					resp.Documents.Uploaded++
				case store.StatusProcessing:
					resp.Documents.Processing++
				case store.StatusCompleted:
					resp.Documents.Completed++
				case store.StatusFailed:
					resp.Documents.Failed++
				}
			}
		}
	}

	if sched := svcctx.SchedulerFrom(r.Context()); sched != nil {
		resp.Jobs.Active = sched.ActiveJobs()
		resp.Jobs.QueueDepth = sched.QueueDepth()
		resp.Jobs.QueueCapacity = sched.QueueCapacity()
	}

	cfg := config.DefaultConfig()
	if mgr := svcctx.ConfigFrom(r.Context()); mgr != nil {
		cfg = mgr.Get()
	}
	resp.OCR.Enabled = cfg.OCR.Enabled
	resp.OCR.Engine = cfg.OCR.Engine
	resp.MaxFileSizeMB = cfg.Pipeline.MaxFileSizeMB

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
