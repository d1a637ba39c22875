package auth

import (
	"context"

	"opsauth/internal/domain/auth"

	"github.com/rs/zerolog/log"
)

// AuditSink records authentication audit events
type AuditSink interface {
	Record(ctx context.Context, event auth.AuditEvent)
}

// LogAuditSink writes audit events to the global zerolog logger
type LogAuditSink struct{}

// Record implements AuditSink
func (LogAuditSink) Record(_ context.Context, e auth.AuditEvent) {
	evt := log.Info()
	if e.Event == auth.EventLoginFailure {
		evt = log.Warn()
	}
	evt.Bool("audit", true).
		Time("timestamp", e.Timestamp).
		Str("event", string(e.Event)).
		Str("email", e.Email).
		Str("uid", e.UID).
		Str("reason", e.Reason).
		Str("code", string(e.Code)).
		Msg("auth event")
}

// audit emits one event with a context detached from client cancellation
func (s *Service) audit(ctx context.Context, kind auth.AuditEventKind, email, uid, reason string, code auth.ErrorCode) {
	s.auditSink.Record(context.WithoutCancel(ctx), auth.AuditEvent{
		Timestamp: s.now().UTC(),
		Event:     kind,
		Email:     auth.NormalizeEmail(email),
		UID:       uid,
		Reason:    reason,
		Code:      code,
	})
}
