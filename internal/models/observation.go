package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// UnitSystem is the unit-system tag carried by every record (weewx numbering).
type UnitSystem int

const (
	UnitsUS       UnitSystem = 0x01
	UnitsMetric   UnitSystem = 0x10
	UnitsMetricWX UnitSystem = 0x11
)

func (u UnitSystem) String() string {
	switch u {
	case UnitsUS:
		return "US"
	case UnitsMetric:
		return "METRIC"
	case UnitsMetricWX:
		return "METRICWX"
	default:
		return fmt.Sprintf("UnitSystem(%d)", int(u))
	}
}

// Measurement names used as record keys.
const (
	FieldDateTime             = "dateTime"
	FieldUSUnits              = "usUnits"
	FieldOutTemp              = "outTemp"
	FieldOutHumidity          = "outHumidity"
	FieldPressure             = "pressure"
	FieldWindSpeed            = "windSpeed"
	FieldWindGust             = "windGust"
	FieldWindDir              = "windDir"
	FieldUV                   = "UV"
	FieldRadiation            = "radiation"
	FieldRain                 = "rain"
	FieldLightningDistance    = "lightning_distance"
	FieldLightningStrikeCount = "lightning_strike_count"
	FieldLightningEnergy      = "lightning_energy"
	FieldSupplyVoltage        = "supplyVoltage"
)

// ObservationRecord is one normalized observation handed to the consumer.
// Only the measurements relevant to the source event are present in Fields.
type ObservationRecord struct {
	DateTime int64              `json:"dateTime"`
	USUnits  UnitSystem         `json:"usUnits"`
	Fields   map[string]float64 `json:"-"`
}

// Empty reports whether the record carries no measurements.
func (r ObservationRecord) Empty() bool {
	return len(r.Fields) == 0
}

// Value returns a measurement and whether it is present.
func (r ObservationRecord) Value(name string) (float64, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Names returns the measurement names in sorted order.
func (r ObservationRecord) Names() []string {
	out := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Packet flattens the record into a weewx-style loop packet.
func (r ObservationRecord) Packet() map[string]any {
	p := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		p[k] = v
	}
	p[FieldDateTime] = r.DateTime
	p[FieldUSUnits] = int(r.USUnits)
	return p
}

// MarshalJSON encodes the record as a flat packet.
func (r ObservationRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Packet())
}

// UnmarshalJSON decodes a flat packet produced by MarshalJSON.
func (r *ObservationRecord) UnmarshalJSON(b []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.DateTime = int64(raw[FieldDateTime])
	r.USUnits = UnitSystem(int(raw[FieldUSUnits]))
	delete(raw, FieldDateTime)
	delete(raw, FieldUSUnits)
	r.Fields = raw
	return nil
}
