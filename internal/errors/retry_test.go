package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetryConfig keeps test runtime negligible.
func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return TranscriptError("rate limited", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return TranscriptError("rate limited", nil)
	})

	require.Error(t, err)
	// Initial attempt plus MaxRetries.
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestRetry_TerminalErrorNotRetried(t *testing.T) {
	calls := 0
	terminal := IndexError("write rejected", nil)
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return terminal
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, terminal, err)
}

func TestRetry_UnclassifiedErrorIsRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return fmt.Errorf("connection reset")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestRetry_CustomClassifier(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryIf = func(error) bool { return false }

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return fmt.Errorf("anything")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	cfg := fastRetryConfig()
	cfg.InitialDelay = time.Hour // Would hang without cancellation.

	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, cfg, func() error {
			calls++
			return TranscriptError("rate limited", nil)
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, TranscriptError("rate limited", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
