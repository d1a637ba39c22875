package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"opsauth/internal/domain/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAudience = "ops-dashboard"

// testProvider serves discovery and JWKS documents for a generated key
type testProvider struct {
	server    *httptest.Server
	key       *rsa.PrivateKey
	kid       string
	jwksHits  atomic.Int32
	jwksDown  atomic.Bool
	discovery atomic.Int32
}

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &testProvider{key: key, kid: "key-1"}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		p.discovery.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                p.server.URL,
			"jwks_uri":                              p.server.URL + "/jwks",
			"authorization_endpoint":                p.server.URL + "/auth",
			"token_endpoint":                        p.server.URL + "/token",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		p.jwksHits.Add(1)
		if p.jwksDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []any{publicJWK(p.kid, &p.key.PublicKey)}})
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func publicJWK(kid string, pub *rsa.PublicKey) map[string]any {
	return map[string]any{
		"kid": kid,
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func (p *testProvider) claims(overrides map[string]any) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            p.server.URL,
		"aud":            testAudience,
		"sub":            "uid-1",
		"email":          "alice@jhmh.com",
		"email_verified": true,
		"name":           "Alice",
		"picture":        "https://example.com/alice.png",
		"iat":            now.Add(-time.Minute).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}
	return claims
}

func (p *testProvider) sign(t *testing.T, claims jwt.MapClaims, key *rsa.PrivateKey, kid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func (p *testProvider) token(t *testing.T, overrides map[string]any) string {
	return p.sign(t, p.claims(overrides), p.key, p.kid)
}

func newTestVerifier(t *testing.T, p *testProvider, mutate func(*Config)) *JWKSVerifier {
	t.Helper()
	cfg := Config{IssuerURL: p.server.URL, Audience: testAudience}
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := NewJWKSVerifier(cfg)
	require.NoError(t, err)
	return v
}

func requireVerifyError(t *testing.T, err error, kind auth.VerifyErrorKind) *auth.VerifyError {
	t.Helper()
	var verr *auth.VerifyError
	require.True(t, errors.As(err, &verr), "expected *auth.VerifyError, got %v", err)
	assert.Equal(t, kind, verr.Kind, "unexpected kind for %v", err)
	return verr
}

func TestNewJWKSVerifier_RequiresIssuer(t *testing.T) {
	_, err := NewJWKSVerifier(Config{})
	assert.Error(t, err)
}

func TestJWKSVerifier_ValidToken(t *testing.T) {
	p := newTestProvider(t)
	v := newTestVerifier(t, p, nil)

	claims, err := v.Verify(context.Background(), p.token(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "uid-1", claims.SubjectID)
	assert.Equal(t, "alice@jhmh.com", claims.Email)
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.Equal(t, "https://example.com/alice.png", claims.PictureURL)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, testAudience, claims.IssuedClaims["aud"])
	assert.Equal(t, int32(1), p.discovery.Load(), "JWKS URL is discovered from the issuer")
}

func TestJWKSVerifier_ExpiredToken(t *testing.T) {
	p := newTestProvider(t)
	v := newTestVerifier(t, p, nil)

	token := p.token(t, map[string]any{
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err := v.Verify(context.Background(), token)

	verr := requireVerifyError(t, err, auth.VerifyExpired)
	assert.Empty(t, verr.Subject, "expired tokens never carry a cleanup subject")
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestJWKSVerifier_ClaimFailuresCarryNoSubject(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   error
	}{
		{"wrong audience", map[string]any{"aud": "someone-else"}, jwt.ErrTokenInvalidAudience},
		{"wrong issuer", map[string]any{"iss": "https://evil.example.com"}, jwt.ErrTokenInvalidIssuer},
		{"issued in the future", map[string]any{
			"iat": time.Now().Add(time.Hour).Unix(),
			"exp": time.Now().Add(2 * time.Hour).Unix(),
		}, jwt.ErrTokenUsedBeforeIssued},
		{"not valid yet", map[string]any{"nbf": time.Now().Add(time.Hour).Unix()}, jwt.ErrTokenNotValidYet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t)
			v := newTestVerifier(t, p, nil)

			_, err := v.Verify(context.Background(), p.token(t, tt.overrides))

			verr := requireVerifyError(t, err, auth.VerifyInvalid)
			assert.Empty(t, verr.Subject, "a token minted for another party must not name an identity to delete")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJWKSVerifier_ToleratesClockSkew(t *testing.T) {
	p := newTestProvider(t)
	// Issued slightly ahead of the local clock
	token := p.token(t, map[string]any{"iat": time.Now().Add(3 * time.Second).Unix()})

	v := newTestVerifier(t, p, nil)
	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err, "default leeway absorbs small drift")
	assert.Equal(t, "uid-1", claims.SubjectID)

	strict := newTestVerifier(t, p, func(c *Config) { c.Leeway = time.Nanosecond })
	_, err = strict.Verify(context.Background(), p.token(t, map[string]any{"iat": time.Now().Add(30 * time.Second).Unix()}))
	verr := requireVerifyError(t, err, auth.VerifyInvalid)
	assert.Empty(t, verr.Subject)
}

func TestConfig_DefaultLeeway(t *testing.T) {
	cfg := Config{}
	cfg.setDefaults()
	assert.Equal(t, DefaultLeeway, cfg.Leeway)

	cfg = Config{Leeway: time.Minute}
	cfg.setDefaults()
	assert.Equal(t, time.Minute, cfg.Leeway)
}

func TestJWKSVerifier_ForgedSignature(t *testing.T) {
	p := newTestProvider(t)
	v := newTestVerifier(t, p, nil)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), p.sign(t, p.claims(map[string]any{"aud": "x"}), otherKey, p.kid))

	verr := requireVerifyError(t, err, auth.VerifyInvalid)
	assert.Empty(t, verr.Subject, "untrusted tokens never carry a cleanup subject")
}

func TestJWKSVerifier_MalformedTokens(t *testing.T) {
	p := newTestProvider(t)
	v := newTestVerifier(t, p, nil)

	tests := map[string]string{
		"garbage":     "not-a-token",
		"missing kid": p.sign(t, p.claims(nil), p.key, ""),
		"missing sub": p.token(t, map[string]any{"sub": ""}),
		"missing exp": p.sign(t, func() jwt.MapClaims { c := p.claims(nil); delete(c, "exp"); return c }(), p.key, p.kid),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			requireVerifyError(t, err, auth.VerifyInvalid)
		})
	}
}

func TestJWKSVerifier_JWKSUnavailable(t *testing.T) {
	p := newTestProvider(t)
	p.jwksDown.Store(true)
	v := newTestVerifier(t, p, nil)

	err := v.Available(context.Background())
	assert.ErrorIs(t, err, auth.ErrVerifierUnavailable)

	_, err = v.Verify(context.Background(), p.token(t, nil))
	requireVerifyError(t, err, auth.VerifyUnavailable)
}

func TestJWKSVerifier_CachesKeys(t *testing.T) {
	p := newTestProvider(t)
	v := newTestVerifier(t, p, func(c *Config) { c.JWKSURL = p.server.URL + "/jwks" })
	token := p.token(t, nil)
	require.NoError(t, v.Available(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(context.Background(), token)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.jwksHits.Load(), "keys are fetched once per TTL")
	assert.Equal(t, int32(0), p.discovery.Load(), "configured JWKS URL skips discovery")
}

func TestJWKSVerifier_UnknownKidIsRateLimited(t *testing.T) {
	p := newTestProvider(t)
	v := newTestVerifier(t, p, nil)
	require.NoError(t, v.Available(context.Background()))
	hits := p.jwksHits.Load()

	for i := 0; i < 5; i++ {
		_, err := v.Verify(context.Background(), p.sign(t, p.claims(nil), p.key, "rotated"))
		requireVerifyError(t, err, auth.VerifyInvalid)
	}

	assert.Equal(t, hits, p.jwksHits.Load())
}

func TestJWKSVerifier_PicksUpRotatedKey(t *testing.T) {
	p := newTestProvider(t)
	v := newTestVerifier(t, p, func(c *Config) { c.MinRefreshInterval = time.Nanosecond })
	require.NoError(t, v.Available(context.Background()))

	newKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p.key, p.kid = newKey, "key-2"
	time.Sleep(time.Millisecond)

	_, err = v.Verify(context.Background(), p.token(t, nil))
	assert.NoError(t, err)
}

func TestDecodeKeySet(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	doc := map[string]any{"keys": []any{
		publicJWK("good", &key.PublicKey),
		map[string]any{"kid": "ec", "kty": "EC"},
		map[string]any{"kid": "enc", "kty": "RSA", "use": "enc", "n": "AQAB", "e": "AQAB"},
		map[string]any{"kid": "no-n", "kty": "RSA", "e": "AQAB"},
		map[string]any{"kid": "no-e", "kty": "RSA", "n": "AQAB"},
	}}
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	keys, err := decodeKeySet(strings.NewReader(string(body)))
	require.NoError(t, err)

	require.Len(t, keys, 1)
	assert.Equal(t, 0, keys["good"].N.Cmp(key.PublicKey.N))
	assert.Equal(t, key.PublicKey.E, keys["good"].E)
}

func TestDecodeKeySet_NoUsableKey(t *testing.T) {
	_, err := decodeKeySet(strings.NewReader(`{"keys":[{"kid":"ec","kty":"EC"}]}`))
	assert.Error(t, err)

	_, err = decodeKeySet(strings.NewReader(`not json`))
	assert.Error(t, err)
}
