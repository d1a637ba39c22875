package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"opsauth/internal/domain/auth"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier verifies ID tokens with go-oidc using provider discovery
type OIDCVerifier struct {
	cfg Config

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

var _ auth.TokenVerifier = (*OIDCVerifier)(nil)

// NewOIDCVerifier creates a verifier. The provider is discovered on first use,
// so an unreachable issuer at startup is reported as an outage instead of a crash.
func NewOIDCVerifier(cfg Config) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}
	cfg.setDefaults()
	return &OIDCVerifier{cfg: cfg}, nil
}

// Available reports whether the provider has been discovered
func (v *OIDCVerifier) Available(ctx context.Context) error {
	if _, err := v.idTokenVerifier(ctx); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrVerifierUnavailable, err)
	}
	return nil
}

// Verify validates the ID token and returns its claims
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*auth.DecodedClaims, error) {
	verifier, err := v.idTokenVerifier(ctx)
	if err != nil {
		return nil, auth.NewVerifyError(auth.VerifyUnavailable, "", err)
	}

	// go-oidc flattens key set errors into text, so fetch failures are reported on the side
	outcome := &keyFetchOutcome{}
	idToken, err := verifier.Verify(oidc.ClientContext(withKeyFetchOutcome(ctx, outcome), v.cfg.HTTPClient), token)
	if err != nil {
		if fetchErr := outcome.get(); fetchErr != nil {
			return nil, auth.NewVerifyError(auth.VerifyUnavailable, "", fetchErr)
		}
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, auth.NewVerifyError(auth.VerifyExpired, "", err)
		}
		return nil, auth.NewVerifyError(auth.VerifyInvalid, "", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, auth.NewVerifyError(auth.VerifyInvalid, "", fmt.Errorf("id_token claims parse failed: %w", err))
	}
	decoded := toDecodedClaims(claims)
	decoded.SubjectID = idToken.Subject
	return decoded, nil
}

func (v *OIDCVerifier) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier, nil
	}

	// The key set keeps this context for later fetches, so it must outlive the request
	providerCtx := oidc.ClientContext(context.WithoutCancel(ctx), v.cfg.HTTPClient)
	provider, err := oidc.NewProvider(providerCtx, v.cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider: %w", err)
	}

	jwksURL := v.cfg.JWKSURL
	if jwksURL == "" {
		var metadata struct {
			JWKSURL string `json:"jwks_uri"`
		}
		if err := provider.Claims(&metadata); err != nil {
			return nil, fmt.Errorf("failed to read provider metadata: %w", err)
		}
		jwksURL = metadata.JWKSURL
	}
	if jwksURL == "" {
		return nil, fmt.Errorf("provider %s publishes no jwks_uri", v.cfg.IssuerURL)
	}

	keysClient := &http.Client{
		Transport: &keyFetchTransport{base: v.cfg.HTTPClient.Transport},
		Timeout:   v.cfg.HTTPClient.Timeout,
	}
	remote := oidc.NewRemoteKeySet(oidc.ClientContext(context.WithoutCancel(ctx), keysClient), jwksURL)

	v.verifier = oidc.NewVerifier(v.cfg.IssuerURL, &outageAwareKeySet{remote: remote}, &oidc.Config{
		ClientID:          v.cfg.Audience,
		SkipClientIDCheck: v.cfg.Audience == "",
	})
	return v.verifier, nil
}

// keyFetchError marks a key set download that failed at the transport or HTTP level
type keyFetchError struct {
	err error
}

func (e *keyFetchError) Error() string { return "fetching signing keys: " + e.err.Error() }

func (e *keyFetchError) Unwrap() error { return e.err }

// keyFetchTransport turns non-200 key set responses into keyFetchError values
type keyFetchTransport struct {
	base http.RoundTripper
}

func (t *keyFetchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, &keyFetchError{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &keyFetchError{err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return resp, nil
}

type keyFetchOutcomeKey struct{}

// keyFetchOutcome records the fetch failure seen while verifying one token
type keyFetchOutcome struct {
	mu  sync.Mutex
	err error
}

func (o *keyFetchOutcome) set(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

func (o *keyFetchOutcome) get() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func withKeyFetchOutcome(ctx context.Context, o *keyFetchOutcome) context.Context {
	return context.WithValue(ctx, keyFetchOutcomeKey{}, o)
}

// outageAwareKeySet reports key download failures to the caller's keyFetchOutcome
type outageAwareKeySet struct {
	remote *oidc.RemoteKeySet
}

func (k *outageAwareKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.remote.VerifySignature(ctx, jwt)
	if err != nil && isKeyFetchFailure(err) {
		if o, ok := ctx.Value(keyFetchOutcomeKey{}).(*keyFetchOutcome); ok {
			o.set(err)
		}
	}
	return payload, err
}

func isKeyFetchFailure(err error) bool {
	var fetchErr *keyFetchError
	var urlErr *url.Error
	return errors.As(err, &fetchErr) ||
		errors.As(err, &urlErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
