package gitrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(git.ErrRemoteNotFound))
	assert.False(t, isTransient(transport.ErrAuthenticationRequired))
	assert.True(t, isTransient(errors.New("connection reset by peer")))
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		JitterFraction: 0.0, // no jitter for deterministic test
	}

	assert.Equal(t, 100*time.Millisecond, cfg.backoff(0))
	assert.Equal(t, 200*time.Millisecond, cfg.backoff(1))
	assert.Equal(t, 400*time.Millisecond, cfg.backoff(2))
}

func TestRetryConfig_BackoffCapped(t *testing.T) {
	cfg := &RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, 5*time.Second, cfg.backoff(10))
}

func TestRetryConfig_RetriesTransient(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	calls := 0
	err := cfg.do(context.Background(), "fetch", func() error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryConfig_GivesUp(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	calls := 0
	err := cfg.do(context.Background(), "fetch", func() error {
		calls++
		return errors.New("timeout")
	})

	assert.ErrorContains(t, err, "after 2 retries")
	assert.Equal(t, 3, calls)
}

func TestRetryConfig_StopsOnPermanent(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 5, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	calls := 0
	err := cfg.do(context.Background(), "fetch", func() error {
		calls++
		return git.ErrRemoteNotFound
	})

	assert.ErrorIs(t, err, git.ErrRemoteNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetryConfig_CancelledDuringBackoff(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cfg.do(ctx, "fetch", func() error { return errors.New("timeout") })

	assert.ErrorContains(t, err, "retry cancelled")
}
