package domain

import (
	"testing"
	"time"
)

func TestSession_IsValid(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		s    *Session
		want bool
	}{
		{"active and unexpired", &Session{Active: true, ExpiresAt: now.Add(time.Second)}, true},
		{"inactive", &Session{Active: false, ExpiresAt: now.Add(time.Hour)}, false},
		{"expires exactly now", &Session{Active: true, ExpiresAt: now}, false},
		{"expired", &Session{Active: true, ExpiresAt: now.Add(-time.Second)}, false},
		{"nil", nil, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.IsValid(now); got != tc.want {
				t.Errorf("IsValid = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSession_RemainingLifetime(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now.Add(90 * time.Minute)}
	if got := s.RemainingLifetime(now); got != 90*time.Minute {
		t.Errorf("RemainingLifetime = %v, want 90m", got)
	}
	if got := s.RemainingLifetime(now.Add(2 * time.Hour)); got != 0 {
		t.Errorf("RemainingLifetime after expiry = %v, want 0", got)
	}
}

func TestSession_Redacted(t *testing.T) {
	s := &Session{ID: "s1", Secret: "top-secret", SecretHash: "h"}
	r := s.Redacted()
	if r.Secret != "" {
		t.Error("Redacted should clear Secret")
	}
	if s.Secret != "top-secret" {
		t.Error("Redacted must not modify the original")
	}
	if r.ID != "s1" || r.SecretHash != "h" {
		t.Errorf("Redacted lost fields: %+v", r)
	}
}
