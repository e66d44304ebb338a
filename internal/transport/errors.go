package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport classifies connect, handshake and send failures.
	ErrTransport = errors.New("transport error")
	// ErrConnectionClosed is returned when the feed connection is gone.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrTimeout is returned when no message arrived within the receive timeout.
	ErrTimeout = errors.New("receive timeout")
	// ErrTooManyRetries is returned when a configured reconnect ceiling is reached.
	ErrTooManyRetries = errors.New("too many reconnect attempts")
	// ErrSessionClosed is returned by operations on a CLOSED session.
	ErrSessionClosed = errors.New("session closed")
)

// TransportError carries the failing operation. It matches both ErrTransport and
// the underlying cause with errors.Is.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Recoverable reports whether err should trigger a reconnect rather than end the stream.
func Recoverable(err error) bool {
	return errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrTransport)
}
