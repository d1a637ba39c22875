package auth

import (
	"context"
	"errors"

	"opsauth/internal/domain/auth"

	"github.com/rs/zerolog/log"
)

// FetchCustomClaims returns the custom claims of a subject.
// Directory failures degrade to an empty claim set so login grants no extra privileges.
func (s *Service) FetchCustomClaims(ctx context.Context, subjectID string) map[string]any {
	if s.directory == nil || subjectID == "" {
		return map[string]any{}
	}
	claims, err := s.directory.GetCustomClaims(ctx, subjectID)
	if err != nil {
		log.Warn().Err(err).Str("uid", subjectID).Msg("failed to fetch custom claims")
		return map[string]any{}
	}
	if claims == nil {
		return map[string]any{}
	}
	return claims
}

// DeleteIdentity removes a rejected identity from the provider.
// It never fails the caller; the outcome is logged on its own.
func (s *Service) DeleteIdentity(ctx context.Context, subjectID string) bool {
	if s.directory == nil {
		log.Warn().Str("uid", subjectID).Msg("cannot delete identity: no identity directory configured")
		s.recorder.Cleanup(false)
		return false
	}
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "auth.DeleteIdentity")
	defer span.End()

	err := s.directory.DeleteIdentity(ctx, subjectID)
	if errors.Is(err, auth.ErrIdentityNotFound) {
		log.Info().Str("uid", subjectID).Msg("rejected identity already absent")
		s.recorder.Cleanup(true)
		return true
	}
	if err != nil {
		log.Error().Err(err).Str("uid", subjectID).Msg("failed to delete rejected identity")
		span.RecordError(err)
		s.recorder.Cleanup(false)
		return false
	}
	log.Info().Str("uid", subjectID).Msg("rejected identity deleted")
	s.recorder.Cleanup(true)
	return true
}

func (s *Service) buildUser(ctx context.Context, claims *auth.DecodedClaims) *auth.AuthUser {
	return auth.NewAuthUser(claims, s.FetchCustomClaims(ctx, claims.SubjectID))
}
