// Package telephony holds the contract types shared by outbound call channel
// implementations.
package telephony

import (
	"context"
	"errors"
	"time"
)

// Call is a live outbound call. Receive returns ErrReceiveTimeout when the
// remote party stays silent and ErrDisconnected once the channel has dropped.
type Call interface {
	ID() string
	Send(ctx context.Context, text string) error
	Receive(ctx context.Context, timeout time.Duration) (string, error)
	Hangup() error
}

var (
	// ErrConnectFailed signals that an outbound call could not be placed or
	// did not connect.
	ErrConnectFailed = errors.New("call failed to connect")

	// ErrReceiveTimeout signals that the remote party said nothing within
	// the receive window. The call is still up.
	ErrReceiveTimeout = errors.New("no utterance received before timeout")

	// ErrDisconnected signals that the call channel dropped. Any negotiation
	// in progress must abort immediately.
	ErrDisconnected = errors.New("call disconnected")
)
