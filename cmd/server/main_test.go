package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsauth/internal/config"
	"opsauth/internal/infrastructure/identity"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:    "8080",
		Environment: "development",
		Log:         config.LogConfig{Level: "info"},
		Auth: config.AuthConfig{
			Verifier:       "jwks",
			IssuerURL:      "https://issuer.example.com",
			Audience:       "ops-dashboard",
			JWKSCacheTTL:   60,
			AllowedDomains: []string{"jhmh.com"},
			SessionMaxAge:  24 * time.Hour,
			ClockSkew:      30 * time.Second,
		},
	}
}

func staticLoader(cfg *config.Config) configLoader {
	return func() (*config.Config, error) { return cfg, nil }
}

func TestCookieConfig(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		forceSecure bool
		wantSecure  bool
	}{
		{"development", "development", false, false},
		{"development forced secure", "development", true, true},
		{"production", "production", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Environment = tt.environment
			cfg.Auth.ForceSecure = tt.forceSecure
			cfg.Auth.CookieDomain = "ops.jhmh.com"

			cookies := cookieConfig(cfg)

			assert.Equal(t, tt.wantSecure, cookies.Secure)
			assert.Equal(t, 24*time.Hour, cookies.MaxAge)
			assert.Equal(t, "ops.jhmh.com", cookies.Domain)
		})
	}
}

func TestNewVerifier(t *testing.T) {
	cfg := testConfig()

	v, err := newVerifier(cfg)
	require.NoError(t, err)
	assert.IsType(t, &identity.JWKSVerifier{}, v)
	assert.Equal(t, 30*time.Second, v.(*identity.JWKSVerifier).Leeway())

	cfg.Auth.Verifier = "oidc"
	v, err = newVerifier(cfg)
	require.NoError(t, err)
	assert.IsType(t, &identity.OIDCVerifier{}, v)

	cfg.Auth.IssuerURL = ""
	_, err = newVerifier(cfg)
	assert.Error(t, err)
}

func TestNewEmailPolicy(t *testing.T) {
	cfg := testConfig()
	policy := newEmailPolicy(cfg)
	assert.False(t, policy.AllowlistEnabled())
	assert.True(t, policy.ValidateEmail("Alice@JHMH.com").IsValid)

	cfg.Auth.Allowlist = []string{"bob@jhmh.com"}
	policy = newEmailPolicy(cfg)
	assert.True(t, policy.AllowlistEnabled())
	assert.False(t, policy.ValidateEmail("alice@jhmh.com").IsValid)
	assert.True(t, policy.ValidateEmail("bob@jhmh.com").IsValid)
}

func TestCheckEmailCmd(t *testing.T) {
	tests := []struct {
		email   string
		wantErr string
		wantOut string
	}{
		{email: "alice@jhmh.com", wantOut: `"normalizedEmail": "alice@jhmh.com"`},
		{email: "bob@gmail.com", wantErr: "DOMAIN_NOT_ALLOWED", wantOut: "Domain gmail.com is not allowed"},
		{email: "@jhmh.com", wantErr: "DOMAIN_NOT_ALLOWED", wantOut: "Email cannot start with @"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			cmd := checkEmailCmd(staticLoader(testConfig()))
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs([]string{tt.email})

			err := cmd.ExecuteContext(context.Background())

			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestMigrateCmd_RequiresDatabase(t *testing.T) {
	cmd := migrateCmd(staticLoader(testConfig()))
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_ENABLED")
}

func TestClaimsCmd_RequiresDatabase(t *testing.T) {
	cmd := claimsCmd(staticLoader(testConfig()))
	cmd.SetArgs([]string{"set", "uid-1", "--roles", "admin"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_ENABLED")
}

func TestVersionCmd(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version, strings.TrimSpace(out.String()))
}

func TestSetupLogging_Level(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := testConfig()
	cfg.Log.Level = "DEBUG"
	setupLogging(cfg)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	cfg.Log.Level = "chatty"
	setupLogging(cfg)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
