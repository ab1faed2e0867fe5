package domain

import "time"

// Session represents a logged-in device or browser instance.
type Session struct {
	ID     string
	UserID string
	// Secret is the opaque bearer anchor. It is populated only on the record returned at creation
	// and is never read back from storage; only SecretHash is persisted.
	Secret     string
	SecretHash string
	ExpiresAt  time.Time
	Active     bool
	CreatedAt  time.Time
}

// IsValid reports whether the session is active and not yet expired at now.
func (s *Session) IsValid(now time.Time) bool {
	return s != nil && s.Active && now.Before(s.ExpiresAt)
}

// RemainingLifetime returns the time left before expiry at now, or zero if already expired.
func (s *Session) RemainingLifetime(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Redacted returns a copy of s without its secret.
func (s *Session) Redacted() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Secret = ""
	return &c
}
