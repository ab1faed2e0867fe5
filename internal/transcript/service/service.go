// Package service stores and retrieves user transcripts, encrypting the text at rest and
// verifying its content hash on every read.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"interview-analyzer/internal/logutil"
	"interview-analyzer/internal/security"
	"interview-analyzer/internal/transcript/domain"
	"interview-analyzer/internal/transcript/repository"
)

var (
	// ErrNotFound is returned for transcripts that do not exist or belong to another user.
	ErrNotFound = errors.New("transcript not found")
	// ErrInvalidInput is returned by Save for requests missing an owner or a filename.
	ErrInvalidInput = errors.New("invalid transcript")
)

// DefaultListLimit is the page size used by List when none is given.
const DefaultListLimit = 50

// maxListLimit caps the page size accepted by List.
const maxListLimit = 200

// Sealer is the cipher vault as seen by the transcript service.
type Sealer interface {
	Encrypt(plaintext []byte) (string, error)
	Open(envelope, storedHash string) ([]byte, error)
	ContentHash(plaintext []byte) string
}

// SaveInput is a transcript upload after QA extraction.
type SaveInput struct {
	UserID             string
	Filename           string
	Content            []byte
	QAPairs            []domain.QAPair
	ProcessingDuration time.Duration
}

// Document is a transcript together with its decrypted text.
type Document struct {
	Transcript *domain.Transcript
	Content    []byte
}

// Service implements transcript persistence over a repository and a vault.
type Service struct {
	repo   repository.Repository
	vault  Sealer
	logger logr.Logger
	nowF   func() time.Time
	tracer trace.Tracer
}

// NewService returns a Service storing through repo and sealing content with vault.
func NewService(repo repository.Repository, vault Sealer, logger logr.Logger) *Service {
	return &Service{
		repo:   repo,
		vault:  vault,
		logger: logger.WithName("transcripts"),
		nowF:   time.Now,
		tracer: otel.Tracer("interview-analyzer/transcript"),
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.nowF = now
	}
	return s
}

// Save encrypts in.Content, hashes it and persists the envelope with plaintext metadata.
func (s *Service) Save(ctx context.Context, in SaveInput) (*domain.Transcript, error) {
	ctx, span := s.tracer.Start(ctx, "transcripts.Save")
	defer span.End()

	filename := strings.TrimSpace(in.Filename)
	if in.UserID == "" || filename == "" {
		return nil, ErrInvalidInput
	}
	envelope, err := s.vault.Encrypt(in.Content)
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.logger, "failed to encrypt transcript", err, "userID", in.UserID)
	}
	pairs := append([]domain.QAPair(nil), in.QAPairs...)
	t := &domain.Transcript{
		ID:                   uuid.New().String(),
		UserID:               in.UserID,
		OriginalFilename:     filename,
		EncryptedContent:     envelope,
		ContentHash:          s.vault.ContentHash(in.Content),
		FileSize:             int64(len(in.Content)),
		QAPairs:              pairs,
		QAPairsCount:         len(pairs),
		ProcessingDurationMs: in.ProcessingDuration.Milliseconds(),
		CreatedAt:            s.nowF().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create")
		return nil, logutil.LogAndWrapErr(s.logger, "failed to store transcript", err, "userID", in.UserID)
	}
	span.SetAttributes(attribute.String("transcript.id", t.ID), attribute.Int64("transcript.size", t.FileSize))
	s.logger.V(1).Info("transcript stored", "transcriptID", t.ID, "userID", t.UserID, "size", t.FileSize)
	return t, nil
}

// owned loads id and hides records that belong to someone else.
func (s *Service) owned(ctx context.Context, userID, id string) (*domain.Transcript, error) {
	if userID == "" || id == "" {
		return nil, ErrNotFound
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.UserID != userID {
		return nil, ErrNotFound
	}
	return t, nil
}

// Get returns userID's transcript id with its decrypted text. Decryption failures return
// security.ErrIntegrity and hash failures security.ErrHashMismatch; content is never substituted.
func (s *Service) Get(ctx context.Context, userID, id string) (*Document, error) {
	ctx, span := s.tracer.Start(ctx, "transcripts.Get")
	defer span.End()

	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	content, err := s.vault.Open(t.EncryptedContent, t.ContentHash)
	if err != nil {
		s.logger.Error(err, "transcript content integrity failure", "transcriptID", t.ID, "userID", userID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "integrity")
		return nil, err
	}
	return &Document{Transcript: t, Content: content}, nil
}

// List returns metadata for userID's transcripts, newest first. limit <= 0 selects DefaultListLimit.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*domain.Transcript, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Transcript, len(list))
	for i, t := range list {
		out[i] = t.Metadata()
	}
	return out, nil
}

// Delete removes userID's transcript id.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return ErrNotFound
	}
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.logger.V(1).Info("transcript deleted", "transcriptID", id, "userID", userID)
	return nil
}

// VerifyIntegrity decrypts userID's transcript id and checks its hash without returning content.
// It returns nil, ErrNotFound, security.ErrIntegrity or security.ErrHashMismatch.
func (s *Service) VerifyIntegrity(ctx context.Context, userID, id string) error {
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if _, err := s.vault.Open(t.EncryptedContent, t.ContentHash); err != nil {
		s.logger.Error(err, "transcript failed integrity verification", "transcriptID", t.ID)
		return err
	}
	return nil
}

// IsIntegrityFailure reports whether err means stored content is corrupt or inconsistent.
func IsIntegrityFailure(err error) bool {
	return errors.Is(err, security.ErrIntegrity) || errors.Is(err, security.ErrHashMismatch)
}
