package auth

import (
	"context"

	"opsauth/internal/domain/auth"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// ValidateSession re-derives the current user from the stored session credential.
// The credential is cleared on expired or invalid tokens and left alone on outages.
func (s *Service) ValidateSession(ctx context.Context, store auth.SessionStore) *SessionValidationResult {
	ctx, span := s.tracer.Start(ctx, "auth.ValidateSession")
	defer span.End()

	result := s.validateSession(ctx, store)
	span.SetAttributes(attribute.Bool("auth.session_valid", result.IsValid))
	if !result.IsValid {
		span.SetAttributes(attribute.String("auth.code", string(result.ErrorCode)))
	}
	s.recorder.SessionValidation(outcome(string(result.ErrorCode)))
	return result
}

func (s *Service) validateSession(ctx context.Context, store auth.SessionStore) *SessionValidationResult {
	token, ok := store.Token()
	if !ok || token == "" {
		return invalidSession(auth.CodeTokenInvalid, msgNoSessionCookie)
	}

	if err := s.verifier.Available(ctx); err != nil {
		log.Error().Err(err).Msg("identity verifier unavailable, keeping session")
		return invalidSession(auth.CodeAuthUnavailable, msgAuthUnavailable)
	}

	claims, err := s.verify(ctx, token)
	if err != nil {
		verr := classifyVerifyError(err)
		if verr.Kind == auth.VerifyUnavailable {
			log.Error().Err(err).Msg("identity verifier failed mid-request, keeping session")
			return invalidSession(auth.CodeAuthUnavailable, msgAuthUnavailable)
		}

		log.Debug().Err(err).Str("kind", verr.Kind.String()).Msg("session token rejected")
		s.clearSession(store)
		if verr.Kind == auth.VerifyExpired {
			return invalidSession(auth.CodeTokenExpired, msgSessionExpired)
		}
		return invalidSession(auth.CodeTokenInvalid, msgInvalidSessionToken)
	}

	return &SessionValidationResult{IsValid: true, User: s.buildUser(ctx, claims)}
}
