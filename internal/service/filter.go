package service

import "time"

// LogFilter selects journal entries.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "CONNECTED", "RECONNECTING", "ACK_MISMATCH", ...
	Limit int       // <= 0 means no limit
}
