package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Discovery represents the OpenID provider metadata fields we need
type Discovery struct {
	Issuer  string `json:"issuer"`
	JwksURI string `json:"jwks_uri"`
}

type cachedDiscovery struct {
	value     *Discovery
	expiresAt time.Time
}

// Discoverer fetches and caches provider metadata per issuer
type Discoverer struct {
	client *http.Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cachedDiscovery
}

// NewDiscoverer creates a discoverer; metadata is kept for ttl
func NewDiscoverer(client *http.Client, ttl time.Duration) *Discoverer {
	if client == nil {
		client = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Discoverer{client: client, ttl: ttl, cache: map[string]cachedDiscovery{}}
}

// Discover returns provider metadata, performing a network request only when necessary
func (d *Discoverer) Discover(ctx context.Context, issuerURL string) (*Discovery, error) {
	issuerURL = strings.TrimSuffix(issuerURL, "/")
	d.mu.RLock()
	item, found := d.cache[issuerURL]
	d.mu.RUnlock()
	if found && time.Now().Before(item.expiresAt) {
		return item.value, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURL+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}
	var doc Discovery
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse discovery document: %w", err)
	}
	if doc.JwksURI == "" {
		return nil, fmt.Errorf("discovery document has no jwks_uri")
	}

	d.mu.Lock()
	d.cache[issuerURL] = cachedDiscovery{value: &doc, expiresAt: time.Now().Add(d.ttl)}
	d.mu.Unlock()
	return &doc, nil
}
