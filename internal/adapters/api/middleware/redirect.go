package middleware

import (
	"net/http"
	"net/url"
	"strings"

	domainAuth "opsauth/internal/domain/auth"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PageGuardConfig lists the page prefixes handled by PageGuard
type PageGuardConfig struct {
	CookieName string   // Session cookie name (default: "session")
	Protected  []string // Pages that need a session (default: /home)
	Public     []string // Pages for anonymous users only (default: /login, /signup)
	LoginPath  string   // default: /login
	HomePath   string   // default: /home
}

func (c *PageGuardConfig) setDefaults() {
	if c.CookieName == "" {
		c.CookieName = domainAuth.SessionCookieName
	}
	if len(c.Protected) == 0 {
		c.Protected = []string{"/home"}
	}
	if len(c.Public) == 0 {
		c.Public = []string{"/login", "/signup"}
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.HomePath == "" {
		c.HomePath = "/home"
	}
}

// PageGuard redirects page navigations on the presence of a session cookie only.
// It does not verify the token; protected API routes use RequireAuth.
func PageGuard(cfg PageGuardConfig) gin.HandlerFunc {
	cfg.setDefaults()
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		cookie, err := c.Cookie(cfg.CookieName)
		authenticated := err == nil && cookie != ""

		var target string
		switch {
		case path == "/":
			target = cfg.HomePath
			if !authenticated {
				target = loginURL(cfg.LoginPath, "/")
			}
		case hasAnyPrefix(path, cfg.Public) && authenticated:
			target = cfg.HomePath
		case hasAnyPrefix(path, cfg.Protected) && !authenticated:
			target = loginURL(cfg.LoginPath, path)
		}

		if target != "" {
			log.Debug().Str("path", path).Bool("authenticated", authenticated).Str("target", target).Msg("page redirect")
			c.Redirect(http.StatusTemporaryRedirect, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

func loginURL(loginPath, returnPath string) string {
	return loginPath + "?" + url.Values{"redirect": {returnPath}}.Encode()
}

// hasAnyPrefix matches a prefix as a whole path segment, so /home does not cover /homepage
func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		base := strings.TrimSuffix(prefix, "/")
		if path == prefix || path == base || strings.HasPrefix(path, base+"/") {
			return true
		}
	}
	return false
}
