package protocol

import (
	"errors"
	"fmt"

	"tempest_bridge/internal/frame"
)

// ErrAckMismatch reports a reply that does not acknowledge the pending command.
var ErrAckMismatch = errors.New("command acknowledgment mismatch")

// ValidateAck checks a reply against the correlation id of the pending command.
// connection_opened, a matching ack and a successful nested status are accepted.
func ValidateAck(ev frame.Event, expectedID string) error {
	switch {
	case ev.Type == frame.TypeConnectionOpened:
		return nil
	case ev.Type == frame.TypeAck && ev.ID == expectedID:
		return nil
	case ev.Status.OK():
		return nil
	case ev.Type == frame.TypeAck:
		return fmt.Errorf("%w: ack id %q, expected %q", ErrAckMismatch, ev.ID, expectedID)
	case ev.Status != nil:
		return fmt.Errorf("%w: status %s", ErrAckMismatch, ev.Status)
	case ev.Type == "":
		return fmt.Errorf("%w: reply without type", ErrAckMismatch)
	default:
		return fmt.Errorf("%w: unexpected %q reply", ErrAckMismatch, ev.Type)
	}
}

// ValidateWelcome checks the first frame after connect.
func ValidateWelcome(ev frame.Event) error {
	if ev.Type == frame.TypeConnectionOpened || ev.Status.OK() {
		return nil
	}
	return fmt.Errorf("%w: expected %s, got %q", ErrAckMismatch, frame.TypeConnectionOpened, ev.Type)
}
