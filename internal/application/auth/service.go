package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opsauth/internal/domain/auth"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "opsauth/auth"

	DefaultHealthTimeout = 10 * time.Second
	DefaultVerifyTimeout = 10 * time.Second
)

// Service handles login, logout and session validation
type Service struct {
	verifier  auth.TokenVerifier
	directory auth.IdentityDirectory
	health    auth.HealthChecker
	policy    *auth.EmailPolicy

	auditSink     AuditSink
	recorder      Recorder
	tracer        trace.Tracer
	healthTimeout time.Duration
	verifyTimeout time.Duration
	now           func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithAuditSink sets where audit events are written
func WithAuditSink(sink AuditSink) Option {
	return func(s *Service) { s.auditSink = sink }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithTracer sets the tracer used for spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithTimeouts bounds the backend health check and token verification calls
func WithTimeouts(health, verify time.Duration) Option {
	return func(s *Service) {
		if health > 0 {
			s.healthTimeout = health
		}
		if verify > 0 {
			s.verifyTimeout = verify
		}
	}
}

// WithClock overrides the audit clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new authentication service.
// A nil health checker skips the backend pre-flight check.
func NewService(verifier auth.TokenVerifier, directory auth.IdentityDirectory, health auth.HealthChecker, policy *auth.EmailPolicy, opts ...Option) *Service {
	s := &Service{
		verifier:      verifier,
		directory:     directory,
		health:        health,
		policy:        policy,
		auditSink:     LogAuditSink{},
		recorder:      nopRecorder{},
		tracer:        otel.Tracer(tracerName),
		healthTimeout: DefaultHealthTimeout,
		verifyTimeout: DefaultVerifyTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the email policy enforced at login
func (s *Service) Policy() *auth.EmailPolicy {
	return s.policy
}

// Login verifies an identity token, enforces the email policy and creates the session
func (s *Service) Login(ctx context.Context, store auth.SessionStore, idToken string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	s.audit(ctx, auth.EventLoginAttempt, "", "", "", "")

	result, err := s.login(ctx, store, idToken)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recorder.LoginOutcome("error")
	case !result.Success:
		span.SetAttributes(attribute.String("auth.code", string(result.Code)))
		s.recorder.LoginOutcome(string(result.Code))
	default:
		s.recorder.LoginOutcome(outcome(""))
	}
	return result, err
}

func (s *Service) login(ctx context.Context, store auth.SessionStore, idToken string) (*LoginResult, error) {
	if err := s.checkBackend(ctx); err != nil {
		log.Error().Err(err).Msg("backend unavailable, refusing login")
		s.audit(ctx, auth.EventLoginFailure, "", "", "Backend unavailable", auth.CodeAPIUnavailable)
		return loginFailure(auth.CodeAPIUnavailable, msgServiceUnavailable, map[string]any{
			"message":   msgBackendUnreachable,
			"apiStatus": "unreachable",
		}), nil
	}

	if err := s.verifier.Available(ctx); err != nil {
		log.Error().Err(err).Msg("identity verifier unavailable")
		s.audit(ctx, auth.EventLoginFailure, "", "", "Identity verifier unavailable", auth.CodeAuthUnavailable)
		return loginFailure(auth.CodeAuthUnavailable, msgServiceUnavailable, nil), nil
	}

	if idToken == "" {
		s.audit(ctx, auth.EventLoginFailure, "", "", "Missing token", auth.CodeTokenInvalid)
		return loginFailure(auth.CodeTokenInvalid, msgMissingToken, nil), nil
	}

	claims, err := s.verify(ctx, idToken)
	if err != nil {
		return s.rejectCredential(ctx, store, err), nil
	}

	if claims.Email == "" {
		log.Warn().Str("uid", claims.SubjectID).Msg("login attempt without email")
		s.audit(ctx, auth.EventLoginFailure, "", claims.SubjectID, "No email", auth.CodeEmailRequired)
		s.DeleteIdentity(ctx, claims.SubjectID)
		return loginFailure(auth.CodeEmailRequired, msgEmailRequired, nil), nil
	}

	validation := s.policy.ValidateEmail(claims.Email)
	if !validation.IsValid {
		code := validation.Code()
		log.Warn().Str("email", auth.NormalizeEmail(claims.Email)).Str("reason", validation.Reason).Msg("login refused by email policy")
		s.audit(ctx, auth.EventLoginFailure, claims.Email, claims.SubjectID, validation.Reason, code)
		s.DeleteIdentity(ctx, claims.SubjectID)
		label := s.policy.AllowedDomainLabel()
		return loginFailure(code, fmt.Sprintf(msgAccessRestricted, label), map[string]any{
			"attempted_email": claims.Email,
			"allowed_domain":  label,
			"policy":          auth.PolicyName,
		}), nil
	}

	user := s.buildUser(ctx, claims)
	if err := store.Create(idToken, auth.CreateOptions{}); err != nil {
		s.audit(ctx, auth.EventLoginFailure, claims.Email, claims.SubjectID, "Session creation failed", "")
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Info().Str("email", validation.NormalizedEmail).Str("uid", claims.SubjectID).Msg("login authorized")
	s.audit(ctx, auth.EventLoginSuccess, claims.Email, claims.SubjectID, "", "")
	return &LoginResult{Success: true, User: user}, nil
}

// rejectCredential handles a failed token verification during login
func (s *Service) rejectCredential(ctx context.Context, store auth.SessionStore, err error) *LoginResult {
	verr := classifyVerifyError(err)
	code := verr.Code()
	log.Warn().Err(err).Str("kind", verr.Kind.String()).Msg("token verification failed")

	reason := "Token verification failed"
	if verr.Kind == auth.VerifyExpired {
		reason = "Token expired"
	}
	s.audit(ctx, auth.EventLoginFailure, "", verr.Subject, reason, code)

	if verr.Subject != "" {
		s.DeleteIdentity(ctx, verr.Subject)
	}

	switch verr.Kind {
	case auth.VerifyUnavailable:
		return loginFailure(code, msgServiceUnavailable, nil)
	case auth.VerifyExpired:
		s.clearSession(store)
		return loginFailure(code, msgTokenExpired, nil)
	default:
		s.clearSession(store)
		return loginFailure(code, msgInvalidToken, nil)
	}
}

// Logout clears the session credential
func (s *Service) Logout(ctx context.Context, store auth.SessionStore) *LogoutResult {
	_, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	s.audit(ctx, auth.EventLogout, "", "", "", "")
	if err := store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear session on logout")
		span.RecordError(err)
		return &LogoutResult{Error: msgLogoutFailed}
	}
	return &LogoutResult{Success: true, Message: msgLogoutSuccessful}
}

// CurrentUser returns the user of the current session
func (s *Service) CurrentUser(ctx context.Context, store auth.SessionStore) *LoginResult {
	validation := s.ValidateSession(ctx, store)
	if !validation.IsValid {
		s.audit(ctx, auth.EventSessionValidation, "", "", validation.ErrorMessage, validation.ErrorCode)
		return loginFailure(validation.ErrorCode, validation.ErrorMessage, nil)
	}
	s.audit(ctx, auth.EventSessionValidation, validation.User.Email, validation.User.ID, "", "")
	return &LoginResult{Success: true, User: validation.User}
}

// RequireAuth is CurrentUser for protected route boundaries.
// Bad session state has already been cleared by the validator.
func (s *Service) RequireAuth(ctx context.Context, store auth.SessionStore) *LoginResult {
	return s.CurrentUser(ctx, store)
}

// checkBackend runs the pre-flight health check of the dependent backend
func (s *Service) checkBackend(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "auth.CheckBackend")
	defer span.End()

	status, err := s.health.CheckHealth(ctx)
	if err == nil && (status == nil || !status.Healthy) {
		reported := ""
		if status != nil {
			reported = status.Status
		}
		err = fmt.Errorf("backend reported status %q", reported)
	}
	s.recorder.BackendHealth(err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend unhealthy")
		return err
	}
	return nil
}

// BackendHealth reports the dependent backend's health.
// Transport failures are reported as an unreachable backend.
func (s *Service) BackendHealth(ctx context.Context) *auth.HealthStatus {
	if s.health == nil {
		return &auth.HealthStatus{Healthy: true, Status: "unchecked", CheckedAt: s.now()}
	}
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()

	status, err := s.health.CheckHealth(ctx)
	if err != nil || status == nil {
		log.Warn().Err(err).Msg("backend health check failed")
		s.recorder.BackendHealth(false)
		return &auth.HealthStatus{Healthy: false, Status: "unreachable", Error: msgBackendUnreachable, CheckedAt: s.now()}
	}
	s.recorder.BackendHealth(status.Healthy)
	return status
}

// verify runs the token verifier with a bounded timeout
func (s *Service) verify(ctx context.Context, token string) (*auth.DecodedClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "auth.VerifyToken")
	defer span.End()

	start := s.now()
	claims, err := s.verifier.Verify(ctx, token)
	kind := "valid"
	if err != nil {
		kind = classifyVerifyError(err).Kind.String()
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
	}
	s.recorder.ObserveVerify(kind, s.now().Sub(start))
	return claims, err
}

// clearSession clears the credential after a credential failure
func (s *Service) clearSession(store auth.SessionStore) {
	if err := store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear session cookie")
	}
}

// classifyVerifyError maps a verifier error to a VerifyError.
// A verification cut short by the call deadline counts as an outage.
func classifyVerifyError(err error) *auth.VerifyError {
	var verr *auth.VerifyError
	if errors.As(err, &verr) {
		return verr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return auth.NewVerifyError(auth.VerifyUnavailable, "", err)
	}
	return auth.AsVerifyError(err)
}
