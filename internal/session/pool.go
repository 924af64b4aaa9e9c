package session

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"go.uber.org/zap"
)

const DefaultTTL = 10 * time.Minute

// Pool hands out long lived HTTP sessions, one per org domain URL, so that
// invocations for the same org reuse connections. Sessions idle for longer than the
// TTL are evicted and their connections closed.
type Pool struct {
	logger *zap.Logger

	sessionCache            *ttlcache.Cache
	sessionMutexLookup      map[string]*sync.Mutex
	sessionMutexLookupMutex sync.Mutex
}

func NewPool(ttl time.Duration, logger *zap.Logger) *Pool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	p := &Pool{
		logger:             logger,
		sessionCache:       ttlcache.NewCache(),
		sessionMutexLookup: map[string]*sync.Mutex{},
	}
	_ = p.sessionCache.SetTTL(ttl)
	p.sessionCache.SetExpirationCallback(p.onExpired)
	return p
}

func newSession() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// The same session serves many invocations, possibly for different users of
	// the org, so it never keeps cookies.
	return &http.Client{Transport: transport, Jar: nil}
}

func (p *Pool) onExpired(orgDomainURL string, value interface{}) {
	client, ok := value.(*http.Client)
	if !ok {
		return
	}
	p.logger.Debug("closing idle session", zap.String("orgDomainUrl", orgDomainURL))
	client.CloseIdleConnections()
}

func (p *Pool) getMutexForSession(orgDomainURL string) *sync.Mutex {
	p.sessionMutexLookupMutex.Lock()
	defer p.sessionMutexLookupMutex.Unlock()

	sessionMutex, ok := p.sessionMutexLookup[orgDomainURL]
	if !ok {
		sessionMutex = &sync.Mutex{}
		p.sessionMutexLookup[orgDomainURL] = sessionMutex
	}
	return sessionMutex
}

// Get returns the session for orgDomainURL, creating it on first use.
func (p *Pool) Get(orgDomainURL string) (*http.Client, error) {
	if value, err := p.lookup(orgDomainURL); err == nil {
		return value, nil
	}

	sessionMutex := p.getMutexForSession(orgDomainURL)
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	// Another invocation may have created it while we waited.
	if value, err := p.lookup(orgDomainURL); err == nil {
		return value, nil
	}

	client := newSession()
	if err := p.sessionCache.Set(orgDomainURL, client); err != nil {
		return nil, fmt.Errorf("unable to store session for %s: %w", orgDomainURL, err)
	}
	p.logger.Debug("created session", zap.String("orgDomainUrl", orgDomainURL))
	return client, nil
}

func (p *Pool) lookup(orgDomainURL string) (*http.Client, error) {
	value, err := p.sessionCache.Get(orgDomainURL)
	if err != nil {
		return nil, err
	}

	client, ok := value.(*http.Client)
	if !ok {
		return nil, fmt.Errorf("unable to type assert session: %v", value)
	}
	return client, nil
}

// Len reports the number of live sessions.
func (p *Pool) Len() int {
	return p.sessionCache.Count()
}

// Close closes every pooled session. The pool must not be used afterwards.
func (p *Pool) Close() error {
	for _, key := range p.sessionCache.GetKeys() {
		if client, err := p.lookup(key); err == nil {
			client.CloseIdleConnections()
		}
	}
	return p.sessionCache.Close()
}
