package transport

// State is the session lifecycle position.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingWelcome
	StateSubscribing
	StateActive
	StateReconnecting
	StateClosing
	StateClosed
)

var stateNames = [...]string{
	StateDisconnected:    "DISCONNECTED",
	StateConnecting:      "CONNECTING",
	StateAwaitingWelcome: "AWAITING_WELCOME",
	StateSubscribing:     "SUBSCRIBING",
	StateActive:          "ACTIVE",
	StateReconnecting:    "RECONNECTING",
	StateClosing:         "CLOSING",
	StateClosed:          "CLOSED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}
