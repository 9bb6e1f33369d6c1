package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lestrrat-go/jwx/jwk"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/probe"
)

// DefaultJWKSCacheTTL is how long a fetched key set is served before the
// provider is consulted again.
const DefaultJWKSCacheTTL = 24 * time.Hour

const discoveryPath = "/.well-known/openid-configuration"

// JWKSCache fetches and caches issuer key sets. On a miss it resolves the
// provider's discovery document, follows jwks_uri and caches the parsed set
// per issuer. Fetches are serialized by a mutex with a double-check after
// acquiring it, so a thundering herd on an expired entry results in one
// upstream fetch.
type JWKSCache struct {
	client *http.Client
	probe  probe.AuthProbe

	mu    sync.Mutex
	cache *expirable.LRU[string, jwk.Set]
}

// NewJWKSCache creates a cache with the given TTL; zero means
// DefaultJWKSCacheTTL. client may be nil for http.DefaultClient.
func NewJWKSCache(ttl time.Duration, client *http.Client, p probe.AuthProbe) *JWKSCache {
	if ttl <= 0 {
		ttl = DefaultJWKSCacheTTL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if p == nil {
		p = probe.NopAuthProbe{}
	}
	return &JWKSCache{
		client: client,
		probe:  p,
		cache:  expirable.NewLRU[string, jwk.Set](16, nil, ttl),
	}
}

// Keys returns the issuer's key set, fetching on cache miss.
func (c *JWKSCache) Keys(ctx context.Context, issuer string) (jwk.Set, error) {
	if set, ok := c.cache.Get(issuer); ok {
		return set, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have fetched while we waited on the mutex.
	if set, ok := c.cache.Get(issuer); ok {
		return set, nil
	}

	set, err := c.fetch(ctx, issuer)
	if err != nil {
		c.probe.JWKSFetchFailed(issuer, err)
		return nil, unauthenticated(ReasonJWKSFetchFailed, err)
	}
	c.cache.Add(issuer, set)
	c.probe.JWKSFetched(issuer)
	return set, nil
}

// Invalidate drops the issuer's cached set, forcing a refetch on next use.
func (c *JWKSCache) Invalidate(issuer string) {
	c.cache.Remove(issuer)
}

func (c *JWKSCache) fetch(ctx context.Context, issuer string) (jwk.Set, error) {
	jwksURI, err := c.resolveJWKSURI(ctx, issuer)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, jwksURI)
	if err != nil {
		return nil, err
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse jwks from %s: %w", jwksURI, err)
	}
	return set, nil
}

func (c *JWKSCache) resolveJWKSURI(ctx context.Context, issuer string) (string, error) {
	body, err := c.get(ctx, strings.TrimSuffix(issuer, "/")+discoveryPath)
	if err != nil {
		return "", err
	}

	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("discovery document for %s has no jwks_uri", issuer)
	}
	return doc.JWKSURI, nil
}

func (c *JWKSCache) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
