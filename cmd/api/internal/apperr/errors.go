// Package apperr defines the error kinds produced while fetching and
// installing snapshots.
package apperr

import (
	"errors"
	"fmt"
)

// ErrSubscriptionClosed is returned by a listener whose trigger stream ended
// while the listener was still running.
var ErrSubscriptionClosed = errors.New("refresh subscription closed")

// FetchError is a network failure or non-2xx response from an HTTP upstream.
type FetchError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError is a malformed payload from any upstream.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StoreError is a key/value or pub/sub connectivity failure.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SubscribeError means a refresh listener could not subscribe to its channel
// at all. It is fatal for that listener only.
type SubscribeError struct {
	Channel string
	Err     error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Channel, e.Err)
}

func (e *SubscribeError) Unwrap() error { return e.Err }

// BootstrapError is any failure during the initial population of the cache.
type BootstrapError struct {
	Domain string
	Err    error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Domain, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }
