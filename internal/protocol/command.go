// Package protocol builds feed control frames and validates their acknowledgments.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CommandType is the "type" of an outbound control frame.
type CommandType string

const (
	StartRapid         CommandType = "listen_rapid_start"
	StopRapid          CommandType = "listen_rapid_stop"
	StartListen        CommandType = "listen_start"
	StopListen         CommandType = "listen_stop"
	StartStationEvents CommandType = "listen_start_events"
	StopStationEvents  CommandType = "listen_stop_events"
)

// Subscribe and unsubscribe orders. Each command is acknowledged before the next is sent.
var (
	SubscribeSequence   = []CommandType{StartRapid, StartListen, StartStationEvents}
	UnsubscribeSequence = []CommandType{StopRapid, StopListen, StopStationEvents}
)

// Target selects which identifier a command addresses.
type Target int

const (
	TargetDevice Target = iota
	TargetStation
)

func (t CommandType) Target() Target {
	switch t {
	case StartStationEvents, StopStationEvents:
		return TargetStation
	default:
		return TargetDevice
	}
}

// Inverse returns the command that cancels t.
func (t CommandType) Inverse() CommandType {
	switch t {
	case StartRapid:
		return StopRapid
	case StopRapid:
		return StartRapid
	case StartListen:
		return StopListen
	case StopListen:
		return StartListen
	case StartStationEvents:
		return StopStationEvents
	case StopStationEvents:
		return StartStationEvents
	}
	return t
}

// Command is one outbound control request.
type Command struct {
	Type     CommandType
	TargetID string
	ID       string // correlation id echoed by the ack
}

// MarshalJSON renders {"type":…, "device_id"|"station_id": <number>, "id":…}.
func (c Command) MarshalJSON() ([]byte, error) {
	key := "device_id"
	if c.Type.Target() == TargetStation {
		key = "station_id"
	}
	return json.Marshal(map[string]any{
		"type": string(c.Type),
		key:    json.Number(c.TargetID),
		"id":   c.ID,
	})
}

// Encode returns the wire form of c.
func Encode(c Command) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.Type, err)
	}
	return b, nil
}

// Builder creates commands for one device/station pair.
type Builder struct {
	DeviceID  string
	StationID string
	NewID     func() string
}

func NewBuilder(deviceID, stationID string) *Builder {
	return &Builder{DeviceID: deviceID, StationID: stationID, NewID: uuid.NewString}
}

// Build creates a command of type t with a fresh correlation id.
func (b *Builder) Build(t CommandType) Command {
	target := b.DeviceID
	if t.Target() == TargetStation {
		target = b.StationID
	}
	newID := b.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return Command{Type: t, TargetID: target, ID: fmt.Sprintf("%s-%s", t, newID())}
}

// Subscribe returns the commands that bring a session to ACTIVE.
func (b *Builder) Subscribe() []Command { return b.sequence(SubscribeSequence) }

// Unsubscribe returns the commands issued on close.
func (b *Builder) Unsubscribe() []Command { return b.sequence(UnsubscribeSequence) }

func (b *Builder) sequence(types []CommandType) []Command {
	out := make([]Command, 0, len(types))
	for _, t := range types {
		out = append(out, b.Build(t))
	}
	return out
}
