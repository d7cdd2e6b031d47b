package report

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region constants

const (
	maxRetries   = 2 // max 2 retries = 3 total attempts
	retryBackoff = 200 * time.Millisecond
)

// #endregion

// #region should-retry

// shouldRetry reports whether a failed attempt may be repeated. attempts
// counts the calls made so far. Only transient transport failures qualify.
func shouldRetry(err error, attempts int) bool {
	if err == nil || attempts > maxRetries {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted:
		return true
	}
	return false
}

// wait sleeps for the backoff of the given attempt, doubling each time.
func wait(ctx context.Context, attempts int) error {
	t := time.NewTimer(retryBackoff << (attempts - 1))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion
