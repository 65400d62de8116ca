package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"gantry/internal/config"
	"gantry/internal/logging"
	"gantry/internal/registry"
	"gantry/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// TriggerResponse answers POST /api/triage/{itemID}.
type TriggerResponse struct {
	Status  string `json:"status"`
	RunID   string `json:"run_id"`
	JobID   string `json:"job_id,omitempty"`
	DAGID   string `json:"dag_id,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// StatusResponse answers GET /api/status/{runID}.
type StatusResponse struct {
	RunID    string       `json:"run_id"`
	ItemID   string       `json:"item_id"`
	Status   string       `json:"status"`
	Progress ProgressView `json:"progress"`
	JobID    string       `json:"job_id,omitempty"`
	DAGID    string       `json:"dag_id,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// ProgressView is the externally visible progress shape.
type ProgressView struct {
	Percent float64 `json:"percent"`
	Label   string  `json:"label,omitempty"`
}

// RunsResponse answers GET /api/runs.
type RunsResponse struct {
	Runs []StatusResponse `json:"runs"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/triage/", srv.handleTrigger)
	mux.HandleFunc("/api/status/", srv.handleStatus)
	mux.HandleFunc("/api/runs", srv.handleRuns)
	mux.HandleFunc("/api/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	itemID := strings.TrimPrefix(r.URL.Path, "/api/triage/")
	if itemID == "" || strings.Contains(itemID, "/") {
		s.writeError(w, http.StatusNotFound, "item not found")
		return
	}
	force := r.URL.Query().Get("force") == "1" || strings.EqualFold(r.URL.Query().Get("force"), "true")

	result, err := s.daemon.workflow.Trigger(r.Context(), itemID, force)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}

	code := http.StatusAccepted
	if result.Disposition != registry.DispositionStarted {
		code = http.StatusOK
	}
	s.writeJSON(w, code, TriggerResponse{
		Status:  string(result.Disposition),
		RunID:   result.Record.RunID,
		JobID:   result.Record.JobID,
		DAGID:   result.Record.DAGID,
		Warning: result.Warning,
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/status/")
	if runID == "" || strings.Contains(runID, "/") {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	record, err := s.daemon.workflow.Status(r.Context(), runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, statusView(record))
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	records, err := s.daemon.workflow.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := RunsResponse{Runs: make([]StatusResponse, 0, len(records))}
	for _, record := range records {
		resp.Runs = append(resp.Runs, statusView(record))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": s.daemon.Running(),
	})
}

func statusView(record *registry.Record) StatusResponse {
	return StatusResponse{
		RunID:  record.RunID,
		ItemID: record.ItemID,
		Status: string(record.State),
		Progress: ProgressView{
			Percent: record.ProgressPercent,
			Label:   record.ProgressLabel,
		},
		JobID: record.JobID,
		DAGID: record.DAGID,
		Error: record.ErrorMessage,
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(slog.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
