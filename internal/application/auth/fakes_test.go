package auth

import (
	"context"
	"errors"
	"sync"

	"opsauth/internal/domain/auth"
)

// fakeVerifier implements auth.TokenVerifier for testing
type fakeVerifier struct {
	mu          sync.Mutex
	tokens      map[string]*auth.DecodedClaims
	errs        map[string]error
	unavailable error
	calls       int
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		tokens: make(map[string]*auth.DecodedClaims),
		errs:   make(map[string]error),
	}
}

func (f *fakeVerifier) Available(ctx context.Context) error {
	return f.unavailable
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*auth.DecodedClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[token]; ok {
		return nil, err
	}
	if claims, ok := f.tokens[token]; ok {
		return claims, nil
	}
	return nil, auth.NewVerifyError(auth.VerifyInvalid, "", errors.New("unknown token"))
}

// fakeDirectory implements auth.IdentityDirectory for testing
type fakeDirectory struct {
	mu        sync.Mutex
	claims    map[string]map[string]any
	claimsErr error
	deleteErr error
	deleted   []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{claims: make(map[string]map[string]any)}
}

func (f *fakeDirectory) GetCustomClaims(ctx context.Context, subjectID string) (map[string]any, error) {
	if f.claimsErr != nil {
		return nil, f.claimsErr
	}
	return f.claims[subjectID], nil
}

func (f *fakeDirectory) DeleteIdentity(ctx context.Context, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, subjectID)
	return f.deleteErr
}

// fakeHealth implements auth.HealthChecker for testing
type fakeHealth struct {
	status *auth.HealthStatus
	err    error
	block  bool
	calls  int
}

func (f *fakeHealth) CheckHealth(ctx context.Context) (*auth.HealthStatus, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.status, f.err
}

func healthy() *fakeHealth {
	return &fakeHealth{status: &auth.HealthStatus{Healthy: true, Status: "healthy"}}
}

// recordingAudit collects audit events
type recordingAudit struct {
	events []auth.AuditEvent
}

func (r *recordingAudit) Record(ctx context.Context, e auth.AuditEvent) {
	r.events = append(r.events, e)
}

func (r *recordingAudit) kinds() []auth.AuditEventKind {
	kinds := make([]auth.AuditEventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Event
	}
	return kinds
}

// memoryStore implements auth.SessionStore for testing
type memoryStore struct {
	token     string
	present   bool
	lastOpts  auth.CreateOptions
	creates   int
	clears    int
	createErr error
	clearErr  error
}

func (m *memoryStore) Token() (string, bool) {
	return m.token, m.present
}

func (m *memoryStore) Create(token string, opts auth.CreateOptions) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.creates++
	m.token, m.present, m.lastOpts = token, true, opts
	return nil
}

func (m *memoryStore) Clear() error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clears++
	m.token, m.present = "", false
	return nil
}

// testEnv bundles a service and its fakes
type testEnv struct {
	service   *Service
	verifier  *fakeVerifier
	directory *fakeDirectory
	health    *fakeHealth
	audit     *recordingAudit
}

func newTestEnv(opts ...Option) *testEnv {
	env := &testEnv{
		verifier:  newFakeVerifier(),
		directory: newFakeDirectory(),
		health:    healthy(),
		audit:     &recordingAudit{},
	}
	policy := auth.NewEmailPolicy([]string{"jhmh.com"}, nil)
	opts = append([]Option{WithAuditSink(env.audit)}, opts...)
	env.service = NewService(env.verifier, env.directory, env.health, policy, opts...)
	return env
}

func validClaims(uid, email string) *auth.DecodedClaims {
	return &auth.DecodedClaims{
		SubjectID:     uid,
		Email:         email,
		DisplayName:   "Test User",
		PictureURL:    "https://example.com/avatar.png",
		EmailVerified: true,
		IssuedClaims:  map[string]any{"sub": uid, "email": email},
	}
}
