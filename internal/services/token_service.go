package services

import (
	"context"
	"sync"
	"time"

	"mpesa-service/internal/gateway"
	"mpesa-service/internal/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenLifetime applies when the gateway does not report expires_in.
	DefaultTokenLifetime = 3599 * time.Second
	// TokenSafetyMargin is how long before expiry a cached token stops being served.
	TokenSafetyMargin = 5 * time.Second
)

// TokenSource performs the credential exchange.
type TokenSource interface {
	GenerateToken(ctx context.Context) (*gateway.TokenResponse, error)
}

// AccessTokenCache holds one bearer token and refreshes it on expiry.
// Concurrent callers that find it stale share a single exchange.
type AccessTokenCache struct {
	source TokenSource
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	refresh singleflight.Group
}

func NewAccessTokenCache(source TokenSource) *AccessTokenCache {
	return &AccessTokenCache{
		source: source,
		now:    time.Now,
	}
}

// Token returns a token with more than TokenSafetyMargin left, fetching a new
// one when needed. A failed exchange leaves the cached pair unchanged.
func (c *AccessTokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	// Waiters share the exchange, so it must not die with the caller that led it.
	exchangeCtx := context.WithoutCancel(ctx)
	v, err, _ := c.refresh.Do("token", func() (interface{}, error) {
		// Another caller may have refreshed while this one waited on the group.
		if token, ok := c.cached(); ok {
			return token, nil
		}

		res, err := c.source.GenerateToken(exchangeCtx)
		if err != nil {
			metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
			logrus.WithField("component", "token_cache").WithError(err).Error("credential exchange failed")
			return "", err
		}

		lifetime := DefaultTokenLifetime
		if secs := res.Lifetime(); secs > 0 {
			lifetime = time.Duration(secs) * time.Second
		}

		c.mu.Lock()
		c.token = res.AccessToken
		c.expiresAt = c.now().Add(lifetime)
		c.mu.Unlock()

		metrics.TokenRefreshesTotal.WithLabelValues("ok").Inc()
		logrus.WithField("component", "token_cache").WithField("lifetime", lifetime).Debug("access token refreshed")
		return res.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ExpiresAt reports when the cached token lapses; zero when empty.
func (c *AccessTokenCache) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

func (c *AccessTokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || c.now().Add(TokenSafetyMargin).After(c.expiresAt) {
		return "", false
	}
	return c.token, true
}
