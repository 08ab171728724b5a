package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrResolutionExhausted is returned when every configured gateway has been
// tried once for a reference and all attempts failed. Callers fall back to a
// placeholder asset.
var ErrResolutionExhausted = errors.New("all gateways exhausted for reference")

// ErrNoMediaURL is returned for references that cannot be parsed into any
// known scheme; resolution short-circuits instead of probing gateways.
var ErrNoMediaURL = errors.New("no resolvable media reference")

// PersistenceError wraps a counter mutation that still failed after its retry
// budget. The play or like is reported as failed, never silently dropped.
type PersistenceError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// isTransientStoreError classifies Firestore failures worth retrying:
// transaction contention and transport-level flakes.
func isTransientStoreError(err error) bool {
	switch status.Code(err) {
	case codes.Aborted, codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}

// withRetry runs fn up to attempts times, backing off between transient
// failures. Non-transient errors surface immediately.
func withRetry(ctx context.Context, op string, attempts int, fn func(context.Context) error) error {
	backoff := 100 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !isTransientStoreError(err) {
			return err
		}
		// No backoff after the last attempt; the caller gets the failure now.
		if i == attempts-1 {
			break
		}
		storeRetriesTotal.WithLabelValues(op).Inc()
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return &PersistenceError{Op: op, Attempts: attempts, Err: err}
}
