package auth

import "time"

// AuditEventKind is the kind of an authentication audit event
type AuditEventKind string

const (
	EventLoginAttempt      AuditEventKind = "login_attempt"
	EventLoginSuccess      AuditEventKind = "login_success"
	EventLoginFailure      AuditEventKind = "login_failure"
	EventLogout            AuditEventKind = "logout"
	EventSessionValidation AuditEventKind = "session_validation"
)

// AuditEvent is the durable record of an authentication outcome
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     AuditEventKind `json:"event"`
	Email     string         `json:"email,omitempty"`
	UID       string         `json:"uid,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Code      ErrorCode      `json:"code,omitempty"`
}
