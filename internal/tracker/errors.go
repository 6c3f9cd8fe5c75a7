package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrNoUser is returned by every document operation before a user is set.
	ErrNoUser = errors.New("no active user: run `officecal user <name>` first")

	// ErrNotConnected is returned by a foreground sync without stored tokens.
	ErrNotConnected = errors.New("strava is not connected")

	// ErrReconnectRequired means the activity source rejected the token. The
	// stored tokens have already been cleared.
	ErrReconnectRequired = errors.New("strava authorization expired: reconnect to keep syncing activities")
)

// RemoteError wraps a failed store or activity source call. The tracker's
// state is left as it was before the call.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
