package models

import "time"

// Session event types recorded in the journal.
const (
	EventConnected       = "CONNECTED"
	EventSubscribed      = "SUBSCRIBED"
	EventReconnecting    = "RECONNECTING"
	EventClosed          = "CLOSED"
	EventAckMismatch     = "ACK_MISMATCH"
	EventStationOnline   = "STATION_ONLINE"
	EventStationOffline  = "STATION_OFFLINE"
	EventDeviceOnline    = "DEVICE_ONLINE"
	EventDeviceOffline   = "DEVICE_OFFLINE"
	EventPrecipStart     = "PRECIP_START"
	EventTransportFailed = "TRANSPORT_FAILED"
)

// SessionEvent is a single session lifecycle journal entry.
type SessionEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECTED | SUBSCRIBED | RECONNECTING | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
