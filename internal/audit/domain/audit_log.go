package domain

import "time"

// Audit actions emitted by the auth gateway.
const (
	ActionLogin        = "login"
	ActionLoginFailure = "login_failure"
	ActionRefresh      = "refresh"
	ActionLogout       = "logout"
	ActionLogoutAll    = "logout_all"
)

// AuditEvent is a single security-relevant event. UserID and SessionID may be empty for failures.
type AuditEvent struct {
	Action    string
	UserID    string
	SessionID string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
