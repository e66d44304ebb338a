package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned for payloads that cannot be decoded.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnrecognizedEvent marks frames with a missing or unknown discriminator.
	ErrUnrecognizedEvent = errors.New("unrecognized event")
)

type wireFrame struct {
	Type      string          `json:"type"`
	ID        json.RawMessage `json:"id"`
	DeviceID  json.RawMessage `json:"device_id"`
	StationID json.RawMessage `json:"station_id"`
	Obs       [][]*float64    `json:"obs"`
	Ob        []*float64      `json:"ob"`
	Evt       []*float64      `json:"evt"`
	Status    *Status         `json:"status"`
}

// Decode parses one raw payload. Malformed payloads return an error wrapping
// ErrMalformedFrame; unknown types decode to KindUnrecognized without error.
func Decode(raw []byte) (Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Event{}, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedFrame)
	}

	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	ev := Event{
		Kind:      kindByType[w.Type],
		Type:      w.Type,
		ID:        rawText(w.ID),
		DeviceID:  rawText(w.DeviceID),
		StationID: rawText(w.StationID),
		Status:    w.Status,
	}

	var seq []*float64
	switch ev.Kind {
	case KindObservationSummary:
		if len(w.Obs) == 0 || len(w.Obs[0]) == 0 {
			return Event{}, fmt.Errorf("%w: %s without obs sequence", ErrMalformedFrame, w.Type)
		}
		seq = w.Obs[0]
	case KindRapidWind:
		if len(w.Ob) == 0 {
			return Event{}, fmt.Errorf("%w: %s without ob sequence", ErrMalformedFrame, w.Type)
		}
		seq = w.Ob
	case KindLightningStrike:
		if len(w.Evt) == 0 {
			return Event{}, fmt.Errorf("%w: %s without evt sequence", ErrMalformedFrame, w.Type)
		}
		seq = w.Evt
	case KindPrecipitationStart, KindStationOnline, KindStationOffline, KindDeviceOnline, KindDeviceOffline:
		seq = w.Evt
	}

	ev.Fields = toValues(seq)
	if ts, ok := ev.Field(0); ok {
		ev.Timestamp = int64(ts)
	}
	return ev, nil
}

func toValues(seq []*float64) []Value {
	if len(seq) == 0 {
		return nil
	}
	out := make([]Value, len(seq))
	for i, p := range seq {
		if p != nil {
			out[i] = Value{V: *p, Valid: true}
		}
	}
	return out
}

// rawText renders an id that may arrive as a JSON string or number.
func rawText(r json.RawMessage) string {
	if len(r) == 0 || string(r) == "null" {
		return ""
	}
	if r[0] == '"' {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			return s
		}
	}
	return string(r)
}

// Err returns ErrUnrecognizedEvent for frames the decoder could not classify.
func (e Event) Err() error {
	if e.Kind == KindUnrecognized {
		if e.Type == "" {
			return fmt.Errorf("%w: missing type", ErrUnrecognizedEvent)
		}
		return fmt.Errorf("%w: %q", ErrUnrecognizedEvent, e.Type)
	}
	return nil
}
