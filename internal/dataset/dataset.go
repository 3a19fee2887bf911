// Package dataset holds the immutable energy and appliance tables the
// dashboard is built from, and the queries its charts run against them.
package dataset

import (
	"sort"
	"time"

	"github.com/jgoulah/energydash/pkg/models"
)

// ApplianceTotal is the summed power of one appliance label
type ApplianceTotal struct {
	Appliance string  `json:"appliance"`
	Power     float64 `json:"power_consumption"`
}

// Dataset is safe for concurrent reads; nothing mutates it after New.
type Dataset struct {
	energy     []models.EnergyRecord
	appliances []models.ApplianceRecord
	min, max   time.Time
}

// New wraps already-loaded records. The slices must not be modified afterwards.
func New(energy []models.EnergyRecord, appliances []models.ApplianceRecord) *Dataset {
	d := &Dataset{energy: energy, appliances: appliances}
	for i, r := range energy {
		if i == 0 || r.Date.Before(d.min) {
			d.min = r.Date
		}
		if i == 0 || r.Date.After(d.max) {
			d.max = r.Date
		}
	}
	return d
}

// Energy returns the energy table in file order. Callers must not modify it.
func (d *Dataset) Energy() []models.EnergyRecord {
	return d.energy
}

// Appliances returns the appliance table in file order. Callers must not modify it.
func (d *Dataset) Appliances() []models.ApplianceRecord {
	return d.appliances
}

// Bounds returns the earliest and latest energy dates; ok is false for an empty table
func (d *Dataset) Bounds() (min, max time.Time, ok bool) {
	return d.min, d.max, len(d.energy) > 0
}

// FullRange is the date range covering every energy record
func (d *Dataset) FullRange() models.DateRange {
	return models.DateRange{Start: d.min, End: d.max}
}

// FilterEnergy returns the records dated inside r, keeping file order
func (d *Dataset) FilterEnergy(r models.DateRange) []models.EnergyRecord {
	out := make([]models.EnergyRecord, 0, len(d.energy))
	for _, rec := range d.energy {
		if r.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return out
}

// TotalPower sums power_consumption over the whole appliance table
func (d *Dataset) TotalPower() float64 {
	var total float64
	for _, rec := range d.appliances {
		total += rec.Power
	}
	return total
}

// GroupAppliances sums power per appliance label, ordered by label.
// A nil range groups the whole table; otherwise dated rows outside it are
// skipped and undated rows are always counted.
func (d *Dataset) GroupAppliances(r *models.DateRange) []ApplianceTotal {
	sums := make(map[string]float64)
	for _, rec := range d.appliances {
		if r != nil && rec.Dated() && !r.Contains(rec.Date) {
			continue
		}
		sums[rec.Appliance] += rec.Power
	}

	out := make([]ApplianceTotal, 0, len(sums))
	for name, power := range sums {
		out = append(out, ApplianceTotal{Appliance: name, Power: power})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Appliance < out[j].Appliance })
	return out
}
