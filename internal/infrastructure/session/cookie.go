package session

import (
	"net/http"
	"strings"
	"time"

	"opsauth/internal/domain/auth"
)

// CookieConfig is the security posture of the session cookie
type CookieConfig struct {
	Name   string        // Cookie name (default: "session")
	Path   string        // Cookie path (default: "/")
	Domain string        // Optional cookie domain
	Secure bool          // Set the Secure flag on created sessions
	MaxAge time.Duration // Session lifetime (default: 7 days)
}

// ConfigForEnvironment returns the cookie configuration of a deployment environment.
// Production-like environments always get Secure cookies.
func ConfigForEnvironment(environment string, maxAge time.Duration) CookieConfig {
	return CookieConfig{
		Secure: IsProduction(environment),
		MaxAge: maxAge,
	}
}

// IsProduction reports whether an environment name is production-like
func IsProduction(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "production", "prod", "staging":
		return true
	}
	return false
}

// Manager creates request-bound session stores
type Manager struct {
	cfg CookieConfig
}

// NewManager creates a cookie manager, filling unset fields with defaults
func NewManager(cfg CookieConfig) *Manager {
	if cfg.Name == "" {
		cfg.Name = auth.SessionCookieName
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = auth.DefaultSessionMaxAge
	}
	return &Manager{cfg: cfg}
}

// Config returns the effective cookie configuration
func (m *Manager) Config() CookieConfig {
	return m.cfg
}

// Bind returns the session store of one request/response pair.
// A nil writer gives a read-only store.
func (m *Manager) Bind(w http.ResponseWriter, r *http.Request) *RequestStore {
	s := &RequestStore{cfg: m.cfg, w: w}
	if r != nil {
		if c, err := r.Cookie(m.cfg.Name); err == nil && c.Value != "" {
			s.token, s.present = c.Value, true
		}
	}
	return s
}

// RequestStore implements auth.SessionStore over the cookies of one request.
// Writes are visible to later reads within the same request.
type RequestStore struct {
	cfg     CookieConfig
	w       http.ResponseWriter
	token   string
	present bool
}

var _ auth.SessionStore = (*RequestStore)(nil)

// Token returns the session credential
func (s *RequestStore) Token() (string, bool) {
	return s.token, s.present
}

// Create writes the session cookie
func (s *RequestStore) Create(token string, opts auth.CreateOptions) error {
	if s.w == nil {
		return auth.ErrNoResponseWriter
	}
	maxAge := s.cfg.MaxAge
	if opts.MaxAge > 0 {
		maxAge = opts.MaxAge
	}
	s.write(&http.Cookie{
		Name:     s.cfg.Name,
		Value:    token,
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.Secure || opts.ForceSecure,
		SameSite: http.SameSiteLaxMode,
	})
	s.token, s.present = token, true
	return nil
}

// Clear expires the session cookie with the strictest flags regardless of environment
func (s *RequestStore) Clear() error {
	if s.w == nil {
		if !s.present {
			return nil
		}
		return auth.ErrNoResponseWriter
	}
	s.write(&http.Cookie{
		Name:     s.cfg.Name,
		Value:    "",
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		MaxAge:   -1, // Max-Age=0
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	s.token, s.present = "", false
	return nil
}

// write sets the cookie, dropping earlier Set-Cookie headers for the same name
func (s *RequestStore) write(c *http.Cookie) {
	h := s.w.Header()
	prefix := c.Name + "="
	kept := make([]string, 0, len(h.Values("Set-Cookie")))
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	h.Add("Set-Cookie", c.String())
}
