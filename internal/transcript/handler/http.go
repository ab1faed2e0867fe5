// Package handler exposes transcript storage over HTTP. Every route expects an authenticated
// principal in the request context.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"

	"interview-analyzer/internal/security"
	"interview-analyzer/internal/server/httputil"
	"interview-analyzer/internal/server/interceptors"
	"interview-analyzer/internal/transcript/domain"
	"interview-analyzer/internal/transcript/service"
)

// maxUploadBody bounds the JSON upload, including the QA pairs.
const maxUploadBody = 8 << 20

// TranscriptAPI is the transcript service as seen by the HTTP layer.
type TranscriptAPI interface {
	Save(ctx context.Context, in service.SaveInput) (*domain.Transcript, error)
	Get(ctx context.Context, userID, id string) (*service.Document, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*domain.Transcript, error)
	Delete(ctx context.Context, userID, id string) error
	VerifyIntegrity(ctx context.Context, userID, id string) error
}

// Server serves the /transcripts routes.
type Server struct {
	svc    TranscriptAPI
	logger logr.Logger
}

// NewServer returns a new transcript HTTP server.
func NewServer(svc TranscriptAPI, logger logr.Logger) *Server {
	return &Server{svc: svc, logger: logger.WithName("transcripts-http")}
}

// Register adds the transcript routes to r, which must be behind the auth middleware.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/transcripts", s.Create).Methods(http.MethodPost)
	r.HandleFunc("/transcripts", s.List).Methods(http.MethodGet)
	r.HandleFunc("/transcripts/{id}", s.Get).Methods(http.MethodGet)
	r.HandleFunc("/transcripts/{id}", s.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/transcripts/{id}/integrity", s.Integrity).Methods(http.MethodGet)
}

type createRequest struct {
	Filename             string          `json:"filename"`
	Content              string          `json:"content"`
	QAPairs              []domain.QAPair `json:"qa_pairs"`
	ProcessingDurationMs int64           `json:"processing_duration_ms"`
}

type transcriptResponse struct {
	ID                   string          `json:"id"`
	Filename             string          `json:"filename"`
	ContentHash          string          `json:"content_hash"`
	FileSize             int64           `json:"file_size"`
	QAPairsCount         int             `json:"qa_pairs_count"`
	QAPairs              []domain.QAPair `json:"qa_pairs,omitempty"`
	ProcessingDurationMs int64           `json:"processing_duration_ms"`
	CreatedAt            time.Time       `json:"created_at"`
	Content              *string         `json:"content,omitempty"`
}

func toResponse(t *domain.Transcript, withPairs bool) transcriptResponse {
	res := transcriptResponse{
		ID:                   t.ID,
		Filename:             t.OriginalFilename,
		ContentHash:          t.ContentHash,
		FileSize:             t.FileSize,
		QAPairsCount:         t.QAPairsCount,
		ProcessingDurationMs: t.ProcessingDurationMs,
		CreatedAt:            t.CreatedAt,
	}
	if withPairs {
		res.QAPairs = t.QAPairs
	}
	return res
}

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := interceptors.GetUserID(r.Context())
	if !ok || id == "" {
		httputil.WriteUnauthorized(w)
		return "", false
	}
	return id, true
}

// Create stores an uploaded transcript for the caller.
func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := httputil.DecodeJSON(w, r, maxUploadBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
		return
	}
	t, err := s.svc.Save(r.Context(), service.SaveInput{
		UserID:             userID,
		Filename:           req.Filename,
		Content:            []byte(req.Content),
		QAPairs:            req.QAPairs,
		ProcessingDuration: time.Duration(req.ProcessingDurationMs) * time.Millisecond,
	})
	if err != nil {
		httputil.WriteServiceError(w, s.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(t, true))
}

// List returns the caller's transcript metadata, newest first. Query parameters: limit, offset.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeBadRequest, "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeBadRequest, "offset must be an integer")
		return
	}
	list, err := s.svc.List(r.Context(), userID, limit, offset)
	if err != nil {
		httputil.WriteServiceError(w, s.logger, err)
		return
	}
	out := make([]transcriptResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toResponse(t, false))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transcripts": out})
}

// Get returns one transcript with its decrypted content. Corrupt content is a
// content_integrity_failure error, never an empty body.
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	doc, err := s.svc.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, s.logger, err)
		return
	}
	res := toResponse(doc.Transcript, true)
	content := string(doc.Content)
	res.Content = &content
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Delete removes one of the caller's transcripts.
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Integrity reports whether a transcript's stored content still decrypts and matches its hash.
func (s *Server) Integrity(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	err := s.svc.VerifyIntegrity(r.Context(), userID, id)
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "valid": true})
	case errors.Is(err, security.ErrHashMismatch):
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "valid": false, "reason": "hash_mismatch"})
	case service.IsIntegrityFailure(err):
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "valid": false, "reason": "decryption_failed"})
	default:
		httputil.WriteServiceError(w, s.logger, err)
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
