package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identityservice "interview-analyzer/internal/identity/service"
	"interview-analyzer/internal/security"
	sessionrepo "interview-analyzer/internal/session/repository"
	transcriptservice "interview-analyzer/internal/transcript/service"
	userrepo "interview-analyzer/internal/user/repository"
)

func TestStatus(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"rejected", identityservice.ErrRejected, http.StatusUnauthorized, CodeUnauthorized},
		{"authentication failed", fmt.Errorf("%w: bad signature", identityservice.ErrAuthenticationFailed), http.StatusUnauthorized, CodeAuthenticationFailed},
		{"not found", transcriptservice.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"invalid input", transcriptservice.ErrInvalidInput, http.StatusBadRequest, CodeBadRequest},
		{"integrity", security.ErrIntegrity, http.StatusInternalServerError, CodeIntegrityFailure},
		{"hash mismatch", security.ErrHashMismatch, http.StatusInternalServerError, CodeIntegrityFailure},
		{"session storage", fmt.Errorf("%w: conn refused", sessionrepo.ErrStorageUnavailable), http.StatusServiceUnavailable, CodeStorageUnavailable},
		{"user storage", userrepo.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, CodeStorageUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := Status(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}

func TestStatus_CanceledMemoryLookupIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sessionrepo.NewMemoryRepository().GetByID(ctx, "s1")
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteServiceError(rec, logr.Discard(), err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeStorageUnavailable)
}

func TestWriteServiceError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, logr.Discard(), errors.New("pq: password authentication failed for user app"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.JSONEq(t, `{"error":{"code":"internal_error","message":"internal error"}}`, rec.Body.String())
}

func TestWriteUnauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteUnauthorized(rec)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), MsgUnauthorized)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	testCases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"a"}`, false},
		{"unknown field", `{"name":"a","extra":1}`, true},
		{"two objects", `{"name":"a"}{"name":"b"}`, true},
		{"malformed", `{"name":`, true},
		{"too large", `{"name":"` + strings.Repeat("x", 100) + `"}`, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, 64, &p)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", p.Name)
		})
	}
}
