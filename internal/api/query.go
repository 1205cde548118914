package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/atlas-insights/sibyl/internal/executor"
	"github.com/atlas-insights/sibyl/internal/format"
	"github.com/atlas-insights/sibyl/internal/llm"
	"github.com/atlas-insights/sibyl/internal/safety"
	"github.com/atlas-insights/sibyl/internal/sqlgen"
)

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type queryResponse struct {
	SessionID string          `json:"session_id"`
	Answer    string          `json:"answer"`
	SQL       string          `json:"sql,omitempty"`
	Columns   []string        `json:"columns,omitempty"`
	Rows      [][]any         `json:"rows,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
	Hint      string          `json:"hint,omitempty"`
	GraphData json.RawMessage `json:"graph_data,omitempty"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	answer, err := s.pipeline.Process(r.Context(), req.Question, sessionID)
	if err != nil {
		status, message := mapPipelineError(err)
		s.logger.Warn("question failed", "session_id", sessionID, "status", status, "error", err)
		writeError(w, status, message)
		return
	}

	markers := format.ParseMarkers(answer.Explanation)
	writeJSON(w, http.StatusOK, queryResponse{
		SessionID: sessionID,
		Answer:    markers.Explanation,
		SQL:       answer.SQL,
		Columns:   answer.Columns,
		Rows:      answer.Rows,
		Truncated: answer.Truncated,
		Hint:      markers.Hint,
		GraphData: markers.GraphData,
	})
}

// mapPipelineError translates the pipeline's typed errors into user-facing
// responses. Internal detail stays in the logs.
func mapPipelineError(err error) (int, string) {
	var verr *safety.ValidationError
	var dataErr *executor.DataError
	var connErr *executor.ConnectionError

	switch {
	case errors.Is(err, sqlgen.ErrPromptInjection):
		return http.StatusBadRequest, "That request looks like an attempt to override the assistant's instructions. Please ask a plain question about the data."
	case errors.As(err, &verr):
		return http.StatusBadRequest, "The generated query contains restricted operations and was not executed. Try rephrasing your question."
	case errors.As(err, &dataErr):
		return http.StatusUnprocessableEntity, "The query could not be run against the data. Try rephrasing your question or naming the table or field differently."
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable, "The database is currently unreachable. Please try again in a moment."
	case errors.Is(err, llm.ErrConnection), errors.Is(err, llm.ErrEmptyResponse):
		return http.StatusServiceUnavailable, "The language model is currently unavailable. Please try again in a moment."
	default:
		return http.StatusInternalServerError, "Something went wrong while answering your question."
	}
}
