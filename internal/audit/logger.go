package audit

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"

	"interview-analyzer/internal/audit/domain"
)

// scopeName is the instrumentation scope of audit log records.
const scopeName = "interview-analyzer/audit"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort and never fails the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, action, userID, sessionID, metadata string)
}

// RecordEmitter is the subset of an OTel log.Logger used to emit audit records.
type RecordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// Logger implements AuditLogger by emitting OpenTelemetry log records.
type Logger struct {
	emitter     RecordEmitter
	ipExtractor IPExtractor
	nowF        func() time.Time
}

// NewLogger returns a Logger emitting through provider. A nil provider yields a Logger that drops events.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(provider otellog.LoggerProvider, ipExtractor IPExtractor) *Logger {
	if provider == nil {
		return &Logger{ipExtractor: ipExtractor, nowF: time.Now}
	}
	return NewLoggerWithEmitter(provider.Logger(scopeName), ipExtractor)
}

// NewLoggerWithEmitter returns a Logger that sends records to e.
func NewLoggerWithEmitter(e RecordEmitter, ipExtractor IPExtractor) *Logger {
	return &Logger{emitter: e, ipExtractor: ipExtractor, nowF: time.Now}
}

// LogEvent emits one audit record.
func (l *Logger) LogEvent(ctx context.Context, action, userID, sessionID, metadata string) {
	if l == nil || l.emitter == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	l.emit(ctx, domain.AuditEvent{
		Action:    action,
		UserID:    userID,
		SessionID: sessionID,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.nowF().UTC(),
	})
}

func (l *Logger) emit(ctx context.Context, ev domain.AuditEvent) {
	var rec otellog.Record
	rec.SetTimestamp(ev.CreatedAt)
	rec.SetEventName("audit." + ev.Action)
	rec.SetSeverity(severityFor(ev.Action))
	rec.SetSeverityText(severityFor(ev.Action).String())
	if ev.Metadata != "" {
		rec.SetBody(otellog.StringValue(ev.Metadata))
	}
	rec.AddAttributes(
		otellog.String("action", ev.Action),
		otellog.String("ip", ev.IP),
	)
	if ev.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", ev.UserID))
	}
	if ev.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", ev.SessionID))
	}
	l.emitter.Emit(ctx, rec)
}

func severityFor(action string) otellog.Severity {
	if action == domain.ActionLoginFailure {
		return otellog.SeverityWarn
	}
	return otellog.SeverityInfo
}
