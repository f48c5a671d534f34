package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fastRetry returns a retrier with millisecond backoffs.
func fastRetry(attempts int) retrier {
	return retrier{
		override: RetryConfig{
			MaxAttempts:       attempts,
			InitialBackoff:    5 * time.Millisecond,
			MaxBackoff:        20 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		logger: zerolog.Nop(),
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want 10s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		name             string
		errorClass       ErrorClass
		expectedInitial  time.Duration
		expectedMax      time.Duration
		expectedAttempts int
	}{
		{
			name:             "server error config",
			errorClass:       ErrorClassServer,
			expectedInitial:  500 * time.Millisecond,
			expectedMax:      10 * time.Second,
			expectedAttempts: 3,
		},
		{
			name:             "rate limit config",
			errorClass:       ErrorClassRateLimit,
			expectedInitial:  2 * time.Second,
			expectedMax:      30 * time.Second,
			expectedAttempts: 3,
		},
		{
			name:             "network error config",
			errorClass:       ErrorClassNetwork,
			expectedInitial:  1 * time.Second,
			expectedMax:      10 * time.Second,
			expectedAttempts: 3,
		},
		{
			name:             "unknown error class uses default",
			errorClass:       "",
			expectedInitial:  500 * time.Millisecond,
			expectedMax:      10 * time.Second,
			expectedAttempts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := RetryConfigForErrorClass(tt.errorClass)

			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxBackoff != tt.expectedMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.expectedMax)
			}
			if config.MaxAttempts != tt.expectedAttempts {
				t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, tt.expectedAttempts)
			}
		})
	}
}

func TestRetryConfig_WithDefaults(t *testing.T) {
	got := RetryConfig{MaxAttempts: 1}.withDefaults()

	if got.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", got.MaxAttempts)
	}
	if got.InitialBackoff != DefaultRetryConfig().InitialBackoff {
		t.Errorf("InitialBackoff = %v, want default", got.InitialBackoff)
	}
	if got.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", got.BackoffMultiplier)
	}
}

func TestRetrier_Success(t *testing.T) {
	callCount := 0
	err := fastRetry(3).do(context.Background(), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetrier_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := fastRetry(3).do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return &RecordsError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "unavailable"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetrier_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	testErr := &RecordsError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "boom"}

	err := fastRetry(3).do(context.Background(), func() error {
		callCount++
		return testErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	var recErr *RecordsError
	if !errors.As(err, &recErr) || recErr.StatusCode != 500 {
		t.Errorf("Expected wrapped RecordsError with status 500, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetrier_NetworkErrorRetried(t *testing.T) {
	callCount := 0
	err := fastRetry(2).do(context.Background(), func() error {
		callCount++
		return errors.New("connection refused")
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if callCount != 2 {
		t.Errorf("Expected 2 calls, got %d", callCount)
	}
}

func TestRetrier_ClientErrorNoRetry(t *testing.T) {
	callCount := 0
	testErr := &RecordsError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "not found"}

	err := fastRetry(3).do(context.Background(), func() error {
		callCount++
		return testErr
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for client errors), got %d", callCount)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not return ErrRetryExhausted for client errors (no retry attempted)")
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	r := retrier{
		override: RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second},
		logger:   zerolog.Nop(),
	}
	err := r.do(ctx, func() error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return errors.New("error")
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected wrapped context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestRetrier_ContextErrorNotRetried(t *testing.T) {
	callCount := 0
	err := fastRetry(3).do(context.Background(), func() error {
		callCount++
		return context.DeadlineExceeded
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call for context error, got %d", callCount)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRetrier_BackoffCapped(t *testing.T) {
	r := retrier{
		override: RetryConfig{
			MaxAttempts:       4,
			InitialBackoff:    10 * time.Millisecond,
			MaxBackoff:        10 * time.Millisecond,
			BackoffMultiplier: 10,
		},
		logger: zerolog.Nop(),
	}

	start := time.Now()
	_ = r.do(context.Background(), func() error { return errors.New("down") })
	elapsed := time.Since(start)

	// Three waits of at most 12ms each (10ms + 20% jitter).
	if elapsed > 200*time.Millisecond {
		t.Errorf("Backoff not capped: took %v", elapsed)
	}
}
