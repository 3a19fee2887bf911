// Package meter simulates a live energy meter: a running kWh total that
// grows by a small random amount on every timer tick.
package meter

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Tariff converts kWh into a displayed cost
type Tariff struct {
	PricePerKWh float64
	Currency    string
}

// Reading is a snapshot of a meter after a tick
type Reading struct {
	Total    float64   `json:"-"`   // Unrounded accumulated kWh
	KWh      float64   `json:"kwh"` // Total rounded to 2 decimals
	Cost     float64   `json:"cost"`
	Currency string    `json:"currency"`
	At       time.Time `json:"at"`
}

// Reading prices total at 2-decimal precision. The cost is derived from the
// rounded kWh so the two displayed figures always agree.
func (t Tariff) Reading(total float64, at time.Time) Reading {
	kwh := round2(total)
	return Reading{
		Total:    total,
		KWh:      kwh,
		Cost:     round2(kwh * t.PricePerKWh),
		Currency: t.Currency,
		At:       at,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Meter is a running total incremented by uniform(min, max) per tick
type Meter struct {
	mu       sync.Mutex
	total    float64
	min, max float64
	rng      *rand.Rand
}

// New returns a meter starting at initial. A nil src seeds a random PCG.
func New(initial, min, max float64, src rand.Source) *Meter {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Meter{total: initial, min: min, max: max, rng: rand.New(src)}
}

// Tick adds one random increment and returns the new total
func (m *Meter) Tick() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += m.min + m.rng.Float64()*(m.max-m.min)
	return m.total
}

// Total returns the current total without ticking
func (m *Meter) Total() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}
