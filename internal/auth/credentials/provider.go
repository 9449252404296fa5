package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Fetcher performs one login against a carrier and returns a fresh
// token.
type Fetcher func(ctx context.Context) (string, error)

// Provider caches one token and refreshes it lazily when the TTL
// elapses. Concurrent refreshes may race; the last writer wins, which
// costs a redundant login call but never a stale token.
type Provider struct {
	fetch Fetcher
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

func New(ttl time.Duration, fetch Fetcher) *Provider {
	return &Provider{
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock overrides the time source (tests).
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && p.now().Sub(p.fetchedAt) < p.ttl {
		tok := p.token
		p.mu.Unlock()
		return tok, nil
	}
	p.mu.Unlock()

	// Fetch outside the lock so a slow carrier login does not serialize
	// every caller.
	tok, err := p.fetch(ctx)
	if err != nil {
		return "", errors.Wrap(err, "fetch token")
	}
	if tok == "" {
		return "", errors.New("empty token")
	}

	p.mu.Lock()
	p.token = tok
	p.fetchedAt = p.now()
	p.mu.Unlock()
	return tok, nil
}
