package meter

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

func TestTickIsMonotonicAndBounded(t *testing.T) {
	const initial = 12.5
	m := New(initial, 0.004, 0.006, seeded(1))

	prev := initial
	for n := 1; n <= 1000; n++ {
		total := m.Tick()
		step := total - prev
		require.GreaterOrEqual(t, step, 0.004-1e-12, "tick %d", n)
		require.LessOrEqual(t, step, 0.006+1e-12, "tick %d", n)
		prev = total
	}

	assert.GreaterOrEqual(t, m.Total(), initial+1000*0.004-1e-9)
	assert.LessOrEqual(t, m.Total(), initial+1000*0.006+1e-9)
}

func TestTickSameSeedSameSequence(t *testing.T) {
	a := New(0, 0.004, 0.006, seeded(42))
	b := New(0, 0.004, 0.006, seeded(42))
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Tick(), b.Tick())
	}
}

func TestTickConcurrent(t *testing.T) {
	m := New(0, 0.005, 0.005, seeded(7))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Tick()
			}
		}()
	}
	wg.Wait()

	assert.InDelta(t, 800*0.005, m.Total(), 1e-9)
}

func TestTariffCostMatchesDisplayedKWh(t *testing.T) {
	tariff := Tariff{PricePerKWh: 20, Currency: "Ksh"}
	for _, total := range []float64{0, 1.004, 1.005, 1.006, 12.3449, 99.999, 123456.789} {
		r := tariff.Reading(total, time.Time{})
		kwh := fmt.Sprintf("%.2f", r.KWh)
		var shown float64
		_, err := fmt.Sscanf(kwh, "%f", &shown)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%.2f", shown*20), fmt.Sprintf("%.2f", r.Cost), "total %v", total)
		assert.Equal(t, "Ksh", r.Currency)
	}
}

func TestStoreSessionsAreIndependent(t *testing.T) {
	s := NewStore(Options{Initial: 10, IncrementMin: 0.004, IncrementMax: 0.006,
		NewSource: func() rand.Source { return seeded(3) }})

	a := s.Get("a")
	a.Tick()
	a.Tick()
	b := s.Get("b")

	assert.Same(t, a, s.Get("a"))
	assert.Equal(t, 10.0, b.Total())
	assert.Greater(t, a.Total(), 10.0)
	assert.Equal(t, 2, s.Len())
}

func TestStoreSweep(t *testing.T) {
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(Options{Now: func() time.Time { return now }})

	s.Get("old")
	now = now.Add(20 * time.Minute)
	s.Get("fresh")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, s.Sweep(30*time.Minute))
	assert.Equal(t, 1, s.Len())

	// the swept session starts over from the initial total
	assert.Equal(t, 0.0, s.Get("old").Total())
}

func TestScheduleSweep(t *testing.T) {
	s := NewStore(Options{})
	c := cron.New()
	id, err := s.ScheduleSweep(c, time.Minute, logrus.New())
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)
}

func TestNewSessionIDUnique(t *testing.T) {
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, ValidSessionID(NewSessionID()))
	for _, id := range []string{"", "evil", "s1", "urn:uuid:" + NewSessionID(), "{" + NewSessionID() + "}"} {
		assert.False(t, ValidSessionID(id), id)
	}
}
