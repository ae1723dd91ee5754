package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPath(t *testing.T) {
	assert.Equal(t, "//button[normalize-space()='Log On']", ButtonXPath("Log On"))
	assert.Equal(t,
		"//label[normalize-space()='Date of Birth (mm/dd/yyyy)']/following::input[1]",
		LabelInputXPath("Date of Birth (mm/dd/yyyy)"),
	)
	assert.Equal(t, `"Don't"`, xpathLiteral("Don't"))
	assert.Equal(t, `concat('say "hi" it', "'", 's')`, xpathLiteral(`say "hi" it's`))
}

func TestRetryInterceptedThenSuccess(t *testing.T) {
	delay := 20 * time.Millisecond
	calls := 0
	start := time.Now()

	err := Retry(context.Background(), ClickAttempts, delay, "Log On", func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return ErrClickIntercepted
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), ClickAttempts, time.Millisecond, "OK", func(ctx context.Context) error {
		calls++
		return ErrClickIntercepted
	})

	require.ErrorIs(t, err, ErrClickRetriesExhausted)
	assert.Equal(t, ClickAttempts, calls)
}

func TestRetryOtherErrorIsNotRetried(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), ClickAttempts, time.Millisecond, "OK", func(ctx context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Retry(ctx, ClickAttempts, time.Hour, "OK", func(ctx context.Context) error {
		cancel()
		return ErrClickIntercepted
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitUntil(t *testing.T) {
	polls := 0
	err := WaitUntil(context.Background(), time.Second, func(ctx context.Context) (bool, error) {
		polls++
		return polls == 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, polls)
}

func TestWaitUntilTimeout(t *testing.T) {
	err := WaitUntil(context.Background(), 50*time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestNewUnsupportedBrowser(t *testing.T) {
	_, err := New(context.Background(), Options{Browser: "safari"})
	require.ErrorIs(t, err, ErrUnsupportedBrowser)
}
