package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	result := Retry(context.Background(), fastConfig(), func() error {
		return nil
	})
	if result.LastError != nil {
		t.Errorf("unexpected error: %v", result.LastError)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	result := Retry(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if result.LastError != nil {
		t.Errorf("unexpected error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	result := Retry(context.Background(), fastConfig(), func() error {
		return boom
	})
	if !errors.Is(result.LastError, ErrMaxRetriesExceeded) {
		t.Errorf("expected ErrMaxRetriesExceeded, got %v", result.LastError)
	}
	if !errors.Is(result.LastError, boom) {
		t.Errorf("expected wrapped original error, got %v", result.LastError)
	}
	// 1 initial attempt + 3 retries
	if result.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", result.Attempts)
	}
}

func TestRetry_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := Retry(ctx, fastConfig(), func() error {
		return errors.New("always fails")
	})
	if !errors.Is(result.LastError, ErrContextCanceled) {
		t.Errorf("expected ErrContextCanceled, got %v", result.LastError)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryIf = DefaultRetryIf()

	calls := 0
	result := Retry(context.Background(), cfg, func() error {
		calls++
		return MarkNonRetryable(errors.New("user declined"))
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if result.LastError == nil {
		t.Fatal("expected error")
	}
}

func TestRetryWithValue(t *testing.T) {
	calls := 0
	val, result := RetryWithValue(context.Background(), fastConfig(), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 99, nil
	})
	if result.LastError != nil {
		t.Fatalf("unexpected error: %v", result.LastError)
	}
	if val != 99 {
		t.Errorf("val = %d, want 99", val)
	}
}

func TestIsNonRetryable(t *testing.T) {
	if IsNonRetryable(errors.New("plain")) {
		t.Error("plain error must not be non-retryable")
	}
	if !IsNonRetryable(MarkNonRetryable(errors.New("x"))) {
		t.Error("marked error must be non-retryable")
	}
	if MarkNonRetryable(nil) != nil {
		t.Error("MarkNonRetryable(nil) must be nil")
	}
}
