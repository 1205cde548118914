package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atlas-insights/sibyl/internal/executor"
	"github.com/atlas-insights/sibyl/internal/safety"
)

// ResultExporter uploads a query result and returns its object key.
type ResultExporter interface {
	Export(ctx context.Context, result executor.Result, sessionID string) (string, error)
}

// Runner re-executes a validated statement for export, without the
// interactive row cap semantics mattering to the caller.
type Runner interface {
	Execute(ctx context.Context, sqlText, originalQuestion string) (executor.Result, error)
}

// ExportHandler serves file exports of previously generated statements.
type ExportHandler struct {
	Runner   Runner
	Exporter ResultExporter
}

type exportRequest struct {
	SQL       string `json:"sql"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sqlText := strings.TrimSpace(req.SQL)
	if sqlText == "" {
		writeError(w, http.StatusBadRequest, "sql is required")
		return
	}

	// The statement came over the wire, so it gets the same screening as
	// freshly generated SQL: SELECT only, then the keyword guard.
	if !strings.HasPrefix(strings.ToLower(sqlText), "select") {
		writeError(w, http.StatusBadRequest, "Only SELECT statements can be exported.")
		return
	}
	if err := safety.Validate(sqlText); err != nil {
		writeError(w, http.StatusBadRequest, "The statement contains restricted operations and was not executed.")
		return
	}

	result, err := s.exporter.Runner.Execute(r.Context(), sqlText, "")
	if err != nil {
		status, message := mapPipelineError(err)
		s.logger.Warn("export execution failed", "session_id", req.SessionID, "error", err)
		writeError(w, status, message)
		return
	}

	key, err := s.exporter.Exporter.Export(r.Context(), result, req.SessionID)
	if err != nil {
		s.logger.Error("export upload failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "The export could not be written. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}
