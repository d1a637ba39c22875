package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"opsauth/internal/domain/auth"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultClaimsTTL = 5 * time.Minute
	claimsKeyPrefix  = "opsauth:claims:"
)

// Cmdable is the subset of the go-redis client used by the cache
type Cmdable interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// ClaimsCache caches custom claims in front of an identity directory.
// Redis failures fall through to the directory.
type ClaimsCache struct {
	next   auth.IdentityDirectory
	client Cmdable
	ttl    time.Duration
}

var _ auth.IdentityDirectory = (*ClaimsCache)(nil)

// NewClaimsCache wraps next with a Redis cache of the given TTL
func NewClaimsCache(next auth.IdentityDirectory, client Cmdable, ttl time.Duration) *ClaimsCache {
	if ttl <= 0 {
		ttl = defaultClaimsTTL
	}
	return &ClaimsCache{next: next, client: client, ttl: ttl}
}

func (c *ClaimsCache) key(subjectID string) string {
	return claimsKeyPrefix + subjectID
}

// GetCustomClaims returns cached claims, loading them from the directory on a miss
func (c *ClaimsCache) GetCustomClaims(ctx context.Context, subjectID string) (map[string]any, error) {
	val, err := c.client.Get(ctx, c.key(subjectID)).Result()
	switch {
	case err == nil:
		var claims map[string]any
		if jsonErr := json.Unmarshal([]byte(val), &claims); jsonErr == nil {
			return claims, nil
		}
		log.Warn().Str("uid", subjectID).Msg("discarding undecodable cached claims")
	case !errors.Is(err, goredis.Nil):
		log.Warn().Err(err).Str("uid", subjectID).Msg("claims cache read failed")
	}

	claims, err := c.next.GetCustomClaims(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(claims)
	if err != nil {
		return claims, nil
	}
	if err := c.client.Set(ctx, c.key(subjectID), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("uid", subjectID).Msg("claims cache write failed")
	}
	return claims, nil
}

// DeleteIdentity deletes the subject and evicts its cached claims
func (c *ClaimsCache) DeleteIdentity(ctx context.Context, subjectID string) error {
	err := c.next.DeleteIdentity(ctx, subjectID)
	if delErr := c.client.Del(ctx, c.key(subjectID)).Err(); delErr != nil {
		log.Warn().Err(delErr).Str("uid", subjectID).Msg("claims cache eviction failed")
	}
	return err
}

// Invalidate evicts the cached claims of a subject
func (c *ClaimsCache) Invalidate(ctx context.Context, subjectID string) error {
	return c.client.Del(ctx, c.key(subjectID)).Err()
}
