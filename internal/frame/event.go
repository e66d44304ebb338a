// Package frame decodes raw feed payloads into typed domain events.
package frame

import (
	"fmt"
	"strings"
)

// Kind identifies a decoded event variant.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindObservationSummary
	KindRapidWind
	KindLightningStrike
	KindPrecipitationStart
	KindStationOnline
	KindStationOffline
	KindDeviceOnline
	KindDeviceOffline
	KindAcknowledgment
)

var kindNames = map[Kind]string{
	KindUnrecognized:       "unrecognized",
	KindObservationSummary: "observation_summary",
	KindRapidWind:          "rapid_wind",
	KindLightningStrike:    "lightning_strike",
	KindPrecipitationStart: "precipitation_start",
	KindStationOnline:      "station_online",
	KindStationOffline:     "station_offline",
	KindDeviceOnline:       "device_online",
	KindDeviceOffline:      "device_offline",
	KindAcknowledgment:     "acknowledgment",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Feed discriminators carried in the "type" field.
const (
	TypeObservation      = "obs_st"
	TypeRapidWind        = "rapid_wind"
	TypeStrike           = "evt_strike"
	TypePrecip           = "evt_precip"
	TypeStationOnline    = "evt_station_online"
	TypeStationOffline   = "evt_station_offline"
	TypeDeviceOnline     = "evt_device_online"
	TypeDeviceOffline    = "evt_device_offline"
	TypeAck              = "ack"
	TypeConnectionOpened = "connection_opened"
)

var kindByType = map[string]Kind{
	TypeObservation:      KindObservationSummary,
	TypeRapidWind:        KindRapidWind,
	TypeStrike:           KindLightningStrike,
	TypePrecip:           KindPrecipitationStart,
	TypeStationOnline:    KindStationOnline,
	TypeStationOffline:   KindStationOffline,
	TypeDeviceOnline:     KindDeviceOnline,
	TypeDeviceOffline:    KindDeviceOffline,
	TypeAck:              KindAcknowledgment,
	TypeConnectionOpened: KindAcknowledgment,
}

// Value is one position of a feed field sequence; the feed sends null for
// sensors that did not report.
type Value struct {
	V     float64
	Valid bool
}

// Status is the nested status object some feed replies carry. Code is nil when
// the reply omits status_code.
type Status struct {
	Code    *int   `json:"status_code"`
	Message string `json:"status_message"`
}

// OK reports whether the status signals success: code 0, or no code and a
// SUCCESS message.
func (s *Status) OK() bool {
	if s == nil {
		return false
	}
	if s.Code != nil {
		return *s.Code == 0
	}
	return strings.EqualFold(s.Message, "SUCCESS")
}

func (s *Status) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.Code == nil {
		return fmt.Sprintf("no code %q", s.Message)
	}
	return fmt.Sprintf("%d %q", *s.Code, s.Message)
}

// Event is one decoded inbound frame.
type Event struct {
	Kind      Kind
	Type      string // raw discriminator as received
	ID        string // correlation id echoed by acknowledgments
	DeviceID  string
	StationID string
	Timestamp int64 // epoch seconds, 0 when the variant carries none
	Fields    []Value
	Status    *Status
}

// Arity is the number of positions the feed delivered.
func (e Event) Arity() int { return len(e.Fields) }

// Field returns the value at index i. Out-of-range and null positions report false.
func (e Event) Field(i int) (float64, bool) {
	if i < 0 || i >= len(e.Fields) || !e.Fields[i].Valid {
		return 0, false
	}
	return e.Fields[i].V, true
}

// IsObservation reports whether the event can yield an observation record.
func (e Event) IsObservation() bool {
	switch e.Kind {
	case KindObservationSummary, KindRapidWind, KindLightningStrike:
		return true
	}
	return false
}

// IsInformational reports feed notices that carry no translatable fields.
func (e Event) IsInformational() bool {
	switch e.Kind {
	case KindPrecipitationStart, KindStationOnline, KindStationOffline, KindDeviceOnline, KindDeviceOffline:
		return true
	}
	return false
}

// IsReply reports whether the frame could answer a command: acknowledgments,
// status replies and anything unrecognized.
func (e Event) IsReply() bool {
	return e.Kind == KindAcknowledgment || e.Kind == KindUnrecognized || e.Status != nil
}
