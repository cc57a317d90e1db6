package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/zabari/chatspeaker/internal/message"
)

// Adapter is the uniform contract every platform connector implements.
// Connect establishes the transport and starts background delivery of
// normalized events into the channel the adapter was constructed with;
// it returns once the transport is ready or with a *ConnectionError.
// Disconnect tears the transport down and is a no-op when not connected.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	Platform() message.Platform
}

// Sentinel causes for connection failures. Adapters wrap these in a
// ConnectionError so callers can both identify the platform and test
// the cause with errors.Is.
var (
	ErrMissingCredential = errors.New("required credential not supplied")
	ErrNotLive           = errors.New("stream is not currently live")
	ErrChannelNotFound   = errors.New("channel not found")
	ErrSessionMissing    = errors.New("session not found, run the login flow first")
)

// ConnectionError reports that one platform's transport could not be
// established. It is fatal to that adapter only; other platforms keep
// running.
type ConnectionError struct {
	Platform message.Platform
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connect: %v", e.Platform, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
