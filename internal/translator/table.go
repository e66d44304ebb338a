// Package translator maps decoded feed events to named observation records using
// versioned index tables.
package translator

import (
	"errors"
	"fmt"
	"sort"

	"tempest_bridge/internal/frame"
	"tempest_bridge/internal/models"
)

var ErrUnknownVersion = errors.New("unknown field map version")

// FieldMap maps a measurement name to its position in a feed field sequence.
type FieldMap map[string]int

// Table is one feed generation's layout for every observation-bearing variant.
type Table struct {
	Version  string
	Variants map[frame.Kind]FieldMap
}

// Built-in versions. They differ where the feed moved the rain accumulation.
const (
	VersionV1 = "v1"
	VersionV2 = "v2"
)

var rapidWindMap = FieldMap{
	models.FieldDateTime:  0,
	models.FieldWindSpeed: 1,
	models.FieldWindDir:   2,
}

var strikeMap = FieldMap{
	models.FieldDateTime:          0,
	models.FieldLightningDistance: 1,
	models.FieldLightningEnergy:   2,
}

func summaryMap(rainIndex int) FieldMap {
	return FieldMap{
		models.FieldDateTime:             0,
		models.FieldWindSpeed:            1,
		models.FieldWindGust:             3,
		models.FieldWindDir:              4,
		models.FieldPressure:             6,
		models.FieldOutTemp:              7,
		models.FieldOutHumidity:          8,
		models.FieldUV:                   10,
		models.FieldRadiation:            11,
		models.FieldRain:                 rainIndex,
		models.FieldLightningDistance:    14,
		models.FieldLightningStrikeCount: 15,
		models.FieldSupplyVoltage:        16,
	}
}

var builtin = map[string]Table{
	VersionV1: {
		Version: VersionV1,
		Variants: map[frame.Kind]FieldMap{
			frame.KindObservationSummary: summaryMap(12),
			frame.KindRapidWind:          rapidWindMap,
			frame.KindLightningStrike:    strikeMap,
		},
	},
	VersionV2: {
		Version: VersionV2,
		Variants: map[frame.Kind]FieldMap{
			frame.KindObservationSummary: summaryMap(19),
			frame.KindRapidWind:          rapidWindMap,
			frame.KindLightningStrike:    strikeMap,
		},
	},
}

// Versions lists the built-in table versions.
func Versions() []string {
	out := make([]string, 0, len(builtin))
	for v := range builtin {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Lookup returns a private copy of a built-in table.
func Lookup(version string) (Table, error) {
	t, ok := builtin[version]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownVersion, version, Versions())
	}
	return t.clone(), nil
}

// WithOverrides returns a copy whose observation-summary positions are replaced
// by the given measurement → index pairs.
func (t Table) WithOverrides(overrides map[string]int) (Table, error) {
	out := t.clone()
	if len(overrides) == 0 {
		return out, nil
	}
	fm, ok := out.Variants[frame.KindObservationSummary]
	if !ok {
		fm = FieldMap{}
		out.Variants[frame.KindObservationSummary] = fm
	}
	for name, idx := range overrides {
		if name == "" || idx < 0 {
			return Table{}, fmt.Errorf("invalid field override %q=%d", name, idx)
		}
		fm[name] = idx
	}
	out.Version = t.Version + "+overrides"
	return out, nil
}

func (t Table) clone() Table {
	out := Table{Version: t.Version, Variants: make(map[frame.Kind]FieldMap, len(t.Variants))}
	for k, fm := range t.Variants {
		cp := make(FieldMap, len(fm))
		for name, idx := range fm {
			cp[name] = idx
		}
		out.Variants[k] = cp
	}
	return out
}
