package models

import "time"

// SessionStatus is a point-in-time view of the bridge.
type SessionStatus struct {
	State           string    `json:"state"`
	Endpoint        string    `json:"endpoint"`
	DeviceID        string    `json:"device_id"`
	StationID       string    `json:"station_id"`
	FieldMap        string    `json:"field_map"`
	Reconnects      int64     `json:"reconnects"`
	RecordsEmitted  int64     `json:"records_emitted"`
	MalformedFrames int64     `json:"malformed_frames"`
	LastRecordAt    time.Time `json:"last_record_at,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
