// Package httputil holds the JSON envelope and error mapping shared by the HTTP handlers.
package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/goccy/go-json"

	identityservice "interview-analyzer/internal/identity/service"
	sessionrepo "interview-analyzer/internal/session/repository"
	transcriptrepo "interview-analyzer/internal/transcript/repository"
	transcriptservice "interview-analyzer/internal/transcript/service"
	userrepo "interview-analyzer/internal/user/repository"
)

// Error codes returned in the error envelope.
const (
	CodeUnauthorized         = "unauthorized"
	CodeAuthenticationFailed = "authentication_failed"
	CodeBadRequest           = "bad_request"
	CodeNotFound             = "not_found"
	CodeIntegrityFailure     = "content_integrity_failure"
	CodeStorageUnavailable   = "storage_unavailable"
	CodeInternal             = "internal_error"
)

// MsgUnauthorized is the single message for every rejected or missing credential.
const MsgUnauthorized = "missing or invalid authorization"

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// WriteUnauthorized writes the uniform 401 used for missing, invalid, expired and revoked credentials.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, MsgUnauthorized)
}

// DecodeJSON decodes a single JSON object of at most maxBytes from the request body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}

// Status maps a service error to an HTTP status and error code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, identityservice.ErrRejected):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, identityservice.ErrAuthenticationFailed):
		return http.StatusUnauthorized, CodeAuthenticationFailed
	case errors.Is(err, transcriptservice.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, transcriptservice.ErrInvalidInput):
		return http.StatusBadRequest, CodeBadRequest
	case transcriptservice.IsIntegrityFailure(err):
		return http.StatusInternalServerError, CodeIntegrityFailure
	case errors.Is(err, sessionrepo.ErrStorageUnavailable),
		errors.Is(err, transcriptrepo.ErrStorageUnavailable),
		errors.Is(err, userrepo.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeStorageUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// WriteServiceError maps err with Status and writes it. Server-side failures are logged; their
// details never reach the client.
func WriteServiceError(w http.ResponseWriter, logger logr.Logger, err error) {
	status, code := Status(err)
	switch code {
	case CodeUnauthorized:
		WriteUnauthorized(w)
		return
	case CodeAuthenticationFailed:
		WriteError(w, status, code, "identity assertion could not be verified")
		return
	case CodeNotFound:
		WriteError(w, status, code, "not found")
		return
	case CodeBadRequest:
		WriteError(w, status, code, err.Error())
		return
	case CodeIntegrityFailure:
		logger.Error(err, "content integrity failure")
		WriteError(w, status, code, "stored content failed integrity verification")
		return
	case CodeStorageUnavailable:
		logger.Error(err, "storage unavailable")
		WriteError(w, status, code, "service temporarily unavailable")
		return
	}
	logger.Error(err, "request failed")
	WriteError(w, status, CodeInternal, "internal error")
}
