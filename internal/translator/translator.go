package translator

import (
	"tempest_bridge/internal/frame"
	"tempest_bridge/internal/models"
)

// Translator turns observation-bearing events into records. It keeps no state
// between calls.
type Translator struct {
	table Table
	units models.UnitSystem
}

func New(table Table) *Translator {
	return &Translator{table: table, units: models.UnitsMetricWX}
}

// Version reports the active table version.
func (tr *Translator) Version() string { return tr.table.Version }

// Translate copies the mapped positions of ev into a fresh record. It returns false
// when the variant has no table entry or none of its measurements were present.
func (tr *Translator) Translate(ev frame.Event) (models.ObservationRecord, bool) {
	fm, ok := tr.table.Variants[ev.Kind]
	if !ok {
		return models.ObservationRecord{}, false
	}

	rec := models.ObservationRecord{
		DateTime: ev.Timestamp,
		USUnits:  tr.units,
		Fields:   make(map[string]float64, len(fm)),
	}
	for name, idx := range fm {
		v, ok := ev.Field(idx)
		if !ok {
			continue
		}
		if name == models.FieldDateTime {
			rec.DateTime = int64(v)
			continue
		}
		rec.Fields[name] = v
	}
	if rec.Empty() {
		return models.ObservationRecord{}, false
	}
	return rec, true
}
