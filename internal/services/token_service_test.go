package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mpesa-service/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIsCached(t *testing.T) {
	src := &fakeTokenSource{token: "tok-1", lifetime: "3599"}
	cache := NewAccessTokenCache(src)

	for i := 0; i < 3; i++ {
		tok, err := cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, 1, src.Calls())
}

func TestTokenRefreshesInsideSafetyMargin(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeTokenSource{token: "tok-1", lifetime: "60"}
	cache := NewAccessTokenCache(src)
	cache.now = fixedClock(start)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start.Add(60*time.Second), cache.ExpiresAt())

	cache.now = fixedClock(start.Add(54 * time.Second))
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.Calls())

	src.set("tok-2", nil)
	cache.now = fixedClock(start.Add(56 * time.Second))
	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, 2, src.Calls())
}

func TestTokenDefaultLifetime(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewAccessTokenCache(&fakeTokenSource{token: "tok"})
	cache.now = fixedClock(start)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start.Add(DefaultTokenLifetime), cache.ExpiresAt())
}

func TestTokenFailureLeavesCacheUnchanged(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeTokenSource{token: "tok-1", lifetime: "60"}
	cache := NewAccessTokenCache(src)
	cache.now = fixedClock(start)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	expiry := cache.ExpiresAt()

	src.set("", &apperrors.UpstreamAuthError{StatusCode: 400})
	cache.now = fixedClock(start.Add(2 * time.Minute))
	_, err = cache.Token(context.Background())

	var authErr *apperrors.UpstreamAuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, expiry, cache.ExpiresAt())

	src.set("tok-2", nil)
	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
}

func TestConcurrentRefreshSharesOneExchange(t *testing.T) {
	src := &fakeTokenSource{token: "tok", lifetime: "3599", delay: 50 * time.Millisecond}
	cache := NewAccessTokenCache(src)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := cache.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, src.Calls())
}

func TestRefreshSurvivesLeaderCancellation(t *testing.T) {
	src := &fakeTokenSource{token: "tok", lifetime: "3599", delay: 100 * time.Millisecond}
	cache := NewAccessTokenCache(src)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() {
		_, err := cache.Token(leaderCtx)
		leader <- err
	}()
	time.Sleep(20 * time.Millisecond)

	waiter := make(chan string, 1)
	go func() {
		tok, err := cache.Token(context.Background())
		assert.NoError(t, err)
		waiter <- tok
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.NoError(t, <-leader)
	assert.Equal(t, "tok", <-waiter)
	assert.Equal(t, 1, src.Calls())
}
