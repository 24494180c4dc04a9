package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

// UserHeader carries the identity recorded as performedBy.
const UserHeader = "X-User"

// maxBodyBytes bounds action payloads.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response except a not-found
// action, which also carries the outcome.
type ErrorResponse struct {
	Error    string               `json:"error"`
	Fields   []actions.FieldError `json:"fields,omitempty"`
	ActionID string               `json:"actionId,omitempty"`
}

// CreateResponse is the body of POST /api/actions/{kind}.
type CreateResponse struct {
	*actions.Outcome
	Error string `json:"error,omitempty"`
}

func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "read body: " + err.Error()})
		return
	}

	var opts []actions.Option
	if v := r.URL.Query().Get("batchSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "batchSize must be a positive integer"})
			return
		}
		opts = append(opts, actions.WithBatchSize(n))
	}

	out, err := s.deps.Engine.CreateAction(r.Context(), kind, body, r.Header.Get(UserHeader), opts...)
	if err != nil {
		if out != nil {
			s.writeJSON(w, statusFor(err), CreateResponse{Outcome: out, Error: err.Error()})
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, CreateResponse{Outcome: out})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.ActionFilter{
		PerformedBy:    q.Get("performedBy"),
		IncompleteOnly: q.Get("incomplete") == "true",
	}
	if k := q.Get("kind"); k != "" {
		kind, ok := models.ParseKind(k)
		if !ok {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid action kind: " + k})
			return
		}
		filter.Kind = kind
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		filter.Limit = n
	}

	list, err := s.deps.Audit.ListActions(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := s.deps.Audit.GetAction(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if a == nil {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "action (" + id + ") not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := actions.Schema(models.Kind(r.PathValue("kind")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Metrics.Snapshot())
}

// statusFor maps the engine's error taxonomy onto HTTP.
func statusFor(err error) int {
	var verr *actions.ValidationError
	switch {
	case errors.Is(err, actions.ErrInvalidActionKind), errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, actions.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrTransactionConflict), errors.Is(err, db.ErrEntityAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var verr *actions.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	var serr *actions.StoreError
	if errors.As(err, &serr) {
		resp.ActionID = serr.ActionID
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.deps.Logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Logger.Warn("failed to write response", "error", err)
	}
}
