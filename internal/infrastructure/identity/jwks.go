package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"opsauth/internal/domain/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Config configures the token verifiers
type Config struct {
	IssuerURL          string        // Expected "iss" claim, also used for discovery
	Audience           string        // Expected "aud" claim (project or client ID); empty skips the check
	JWKSURL            string        // JWKS endpoint; discovered from the issuer when empty
	CacheTTL           time.Duration // How long fetched keys are trusted (default: 1h)
	MinRefreshInterval time.Duration // Minimum delay between refreshes for unknown key IDs (default: 1m)
	Leeway             time.Duration // Clock skew tolerance on exp/nbf/iat (default: 5s)
	HTTPClient         *http.Client
}

// DefaultLeeway is the clock skew accepted when Config.Leeway is unset
const DefaultLeeway = 5 * time.Second

func (c *Config) setDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.MinRefreshInterval <= 0 {
		c.MinRefreshInterval = time.Minute
	}
	if c.Leeway <= 0 {
		c.Leeway = DefaultLeeway
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// JWKSVerifier verifies RS256 identity tokens against the provider's published keys
type JWKSVerifier struct {
	cfg        Config
	discoverer *Discoverer
	group      singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	fetchedAt time.Time
}

var _ auth.TokenVerifier = (*JWKSVerifier)(nil)

// NewJWKSVerifier creates a verifier. Keys are fetched lazily.
func NewJWKSVerifier(cfg Config) (*JWKSVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}
	cfg.setDefaults()
	return &JWKSVerifier{
		cfg:        cfg,
		discoverer: NewDiscoverer(cfg.HTTPClient, cfg.CacheTTL),
		keys:       map[string]*rsa.PublicKey{},
	}, nil
}

// Leeway returns the clock skew accepted on time claims
func (v *JWKSVerifier) Leeway() time.Duration { return v.cfg.Leeway }

// Available reports whether signing keys are loaded or can be fetched
func (v *JWKSVerifier) Available(ctx context.Context) error {
	v.mu.RLock()
	fresh := len(v.keys) > 0 && time.Now().Before(v.expiresAt)
	v.mu.RUnlock()
	if fresh {
		return nil
	}
	if err := v.refresh(ctx); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrVerifierUnavailable, err)
	}
	return nil
}

// Verify validates the token and returns its claims
func (v *JWKSVerifier) Verify(ctx context.Context, tokenString string) (*auth.DecodedClaims, error) {
	// Parse the token without validation first to get the header
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, auth.NewVerifyError(auth.VerifyInvalid, "", fmt.Errorf("invalid token format: %w", err))
	}
	kid, ok := unverified.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, auth.NewVerifyError(auth.VerifyInvalid, "", fmt.Errorf("token missing kid header"))
	}

	publicKey, err := v.publicKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(v.cfg.IssuerURL),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.cfg.Leeway),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	claims := jwt.MapClaims{}
	_, err = jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return publicKey, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	decoded := toDecodedClaims(claims)
	if decoded.SubjectID == "" {
		return nil, auth.NewVerifyError(auth.VerifyInvalid, "", fmt.Errorf("token missing sub claim"))
	}
	return decoded, nil
}

// classifyParseError maps golang-jwt errors to verification kinds.
// A token rejected on its claims was minted for another issuer, audience or time,
// so its subject never names an identity to clean up.
func classifyParseError(err error) *auth.VerifyError {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return auth.NewVerifyError(auth.VerifyExpired, "", err)
	}
	return auth.NewVerifyError(auth.VerifyInvalid, "", err)
}

// publicKey returns the key for kid, refreshing the key set when needed
func (v *JWKSVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, known := v.keys[kid]
	fresh := time.Now().Before(v.expiresAt)
	recent := time.Since(v.fetchedAt) < v.cfg.MinRefreshInterval
	v.mu.RUnlock()

	if known && fresh {
		return key, nil
	}
	// Unknown key IDs only trigger a refetch once per interval
	if fresh && recent {
		return nil, auth.NewVerifyError(auth.VerifyInvalid, "", fmt.Errorf("key %s not found in JWKS", kid))
	}

	if err := v.refresh(ctx); err != nil {
		return nil, auth.NewVerifyError(auth.VerifyUnavailable, "", err)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, auth.NewVerifyError(auth.VerifyInvalid, "", fmt.Errorf("key %s not found in JWKS", kid))
}

// refresh fetches the key set once for all concurrent callers
func (v *JWKSVerifier) refresh(ctx context.Context) error {
	_, err, _ := v.group.Do("jwks", func() (interface{}, error) {
		keys, err := v.fetchKeys(ctx)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		v.mu.Lock()
		v.keys = keys
		v.fetchedAt = now
		v.expiresAt = now.Add(v.cfg.CacheTTL)
		v.mu.Unlock()
		log.Debug().Int("keys", len(keys)).Msg("JWKS refreshed")
		return nil, nil
	})
	return err
}

func (v *JWKSVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	jwksURL := v.cfg.JWKSURL
	if jwksURL == "" {
		discovery, err := v.discoverer.Discover(ctx, v.cfg.IssuerURL)
		if err != nil {
			return nil, err
		}
		jwksURL = discovery.JwksURI
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch JWKS: status %d", resp.StatusCode)
	}
	return decodeKeySet(resp.Body)
}

func toDecodedClaims(claims map[string]interface{}) *auth.DecodedClaims {
	issued := make(map[string]any, len(claims))
	for k, v := range claims {
		issued[k] = v
	}
	return &auth.DecodedClaims{
		SubjectID:     getStringClaim(claims, "sub"),
		Email:         getStringClaim(claims, "email"),
		DisplayName:   getStringClaim(claims, "name"),
		PictureURL:    getStringClaim(claims, "picture"),
		EmailVerified: getBoolClaim(claims, "email_verified"),
		IssuedClaims:  issued,
	}
}

// Helper functions to extract claims
func getStringClaim(claims map[string]interface{}, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func getBoolClaim(claims map[string]interface{}, key string) bool {
	if val, ok := claims[key].(bool); ok {
		return val
	}
	return false
}
