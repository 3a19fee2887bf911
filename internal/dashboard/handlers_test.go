package dashboard

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/energydash/internal/charts"
	"github.com/jgoulah/energydash/internal/dataset"
	"github.com/jgoulah/energydash/internal/meter"
	"github.com/jgoulah/energydash/pkg/models"
)

func day(n int) time.Time {
	return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func ymd(t time.Time) string {
	return t.Format("2006-01-02")
}

// fixture has 14 daily readings stored out of order, plus a duplicated first day
func fixture() *dataset.Dataset {
	var energy []models.EnergyRecord
	for i := 13; i >= 0; i-- {
		energy = append(energy, models.EnergyRecord{ID: len(energy) + 1, Date: day(i), KWh: float64(i + 1)})
	}
	energy = append(energy, models.EnergyRecord{ID: len(energy) + 1, Date: day(0), KWh: 0.5})

	appliances := []models.ApplianceRecord{
		{ID: 1, Appliance: "Fridge", Power: 1.2},
		{ID: 2, Appliance: "AC", Power: 2.5},
		{ID: 3, Appliance: "Fridge", Power: 0.8},
		{ID: 4, Appliance: "TV", Power: 0.5},
	}
	return dataset.New(energy, appliances)
}

type recordingPublisher struct {
	sessions []string
	readings []meter.Reading
}

func (p *recordingPublisher) PublishReading(sessionID string, r meter.Reading) error {
	p.sessions = append(p.sessions, sessionID)
	p.readings = append(p.readings, r)
	return nil
}

func newHandlers(t *testing.T, data *dataset.Dataset, pieByDate bool) (*Handlers, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	store := meter.NewStore(meter.Options{
		Initial:      data.TotalPower(),
		IncrementMin: 0.004,
		IncrementMax: 0.006,
		NewSource:    func() rand.Source { return rand.NewPCG(1, 2) },
	})
	return NewHandlers(HandlerOptions{
		Data:      data,
		Sessions:  store,
		Tariff:    meter.Tariff{PricePerKWh: 20, Currency: "Ksh"},
		PieByDate: pieByDate,
		Publisher: pub,
	}), pub
}

func rangeRequest(start, end string) *Request {
	return &Request{Values: map[string]string{
		DateRangeID + "." + propStartDate: start,
		DateRangeID + "." + propEndDate:   end,
	}}
}

func lineFigure(t *testing.T, r Renderer, err error) *charts.LineFigure {
	t.Helper()
	require.NoError(t, err)
	fig, ok := r.(*charts.LineFigure)
	require.True(t, ok, "got %T", r)
	require.Len(t, fig.Series, 1)
	return fig
}

func TestTotalEnergyMonotonic(t *testing.T) {
	data := fixture()
	h, pub := newHandlers(t, data, false)
	req := &Request{SessionID: "s1", Values: map[string]string{"interval.n_intervals": "0"}}

	prev := data.TotalPower()
	for n := 1; n <= 50; n++ {
		req.Values["interval.n_intervals"] = strconv.Itoa(n)
		out, err := h.TotalEnergy(context.Background(), req)
		require.NoError(t, err)
		disp := out.(TotalDisplay)

		step := disp.Total - prev
		assert.GreaterOrEqual(t, step, 0.004-1e-12)
		assert.LessOrEqual(t, step, 0.006+1e-12)
		prev = disp.Total
	}

	total := prev - data.TotalPower()
	assert.GreaterOrEqual(t, total, 50*0.004-1e-9)
	assert.LessOrEqual(t, total, 50*0.006+1e-9)
	assert.Len(t, pub.readings, 50)
	assert.Equal(t, "s1", pub.sessions[0])
}

func TestTotalEnergyDisplay(t *testing.T) {
	h, _ := newHandlers(t, fixture(), false)

	out, err := h.TotalEnergy(context.Background(), &Request{SessionID: "a"})
	require.NoError(t, err)
	disp := out.(TotalDisplay)

	lines := disp.Lines()
	require.Len(t, lines, 2)
	// 5.0 initial plus a tick of at most 0.006 still shows 5.00 or 5.01
	assert.Regexp(t, `^Total Energy Consumption: 5\.0[01] kWh$`, lines[0])
	assert.Regexp(t, `^Total Cost: Ksh 100\.(00|20)$`, lines[1])

	kwh, err := strconv.ParseFloat(lines[0][len("Total Energy Consumption: "):len(lines[0])-len(" kWh")], 64)
	require.NoError(t, err)
	cost, err := strconv.ParseFloat(lines[1][len("Total Cost: Ksh "):], 64)
	require.NoError(t, err)
	assert.InDelta(t, kwh*20, cost, 1e-9)
}

func TestTotalEnergySessionsDoNotShareTotals(t *testing.T) {
	h, _ := newHandlers(t, fixture(), false)

	for i := 0; i < 10; i++ {
		_, err := h.TotalEnergy(context.Background(), &Request{SessionID: "busy"})
		require.NoError(t, err)
	}
	out, err := h.TotalEnergy(context.Background(), &Request{SessionID: "quiet"})
	require.NoError(t, err)

	quiet := out.(TotalDisplay).Total
	assert.Less(t, quiet, 5.0+0.006+1e-9)
}

func TestEnergyGraphFiltersInclusive(t *testing.T) {
	data := fixture()
	h, _ := newHandlers(t, data, false)

	start, end := day(3), day(6)
	out, err := h.EnergyGraph(context.Background(), rangeRequest(ymd(start), ymd(end)))
	fig := lineFigure(t, out, err)
	assert.Equal(t, "Energy Consumption", fig.Title)
	assert.Equal(t, "Date", fig.XTitle)
	assert.Equal(t, "Energy Consumption (kWh)", fig.YTitle)

	var want []time.Time
	for _, rec := range data.Energy() {
		if !rec.Date.Before(start) && !rec.Date.After(end) {
			want = append(want, rec.Date)
		}
	}
	assert.Equal(t, want, fig.Series[0].Dates)
	assert.Len(t, fig.Series[0].Dates, 4)
	for _, d := range fig.Series[0].Dates {
		assert.False(t, d.Before(start) || d.After(end), "date %s outside range", ymd(d))
	}
}

func TestEnergyGraphFullRangeKeepsFileOrder(t *testing.T) {
	data := fixture()
	h, _ := newHandlers(t, data, false)

	out, err := h.EnergyGraph(context.Background(), rangeRequest(ymd(day(0)), ymd(day(13))))
	fig := lineFigure(t, out, err)
	require.Len(t, fig.Series[0].Values, len(data.Energy()))
	for i, rec := range data.Energy() {
		assert.Equal(t, rec.Date, fig.Series[0].Dates[i])
		assert.Equal(t, rec.KWh, fig.Series[0].Values[i])
	}
}

func TestEnergyGraphEmptyRange(t *testing.T) {
	h, _ := newHandlers(t, fixture(), false)

	out, err := h.EnergyGraph(context.Background(), rangeRequest("2030-01-01", "2030-02-01"))
	fig := lineFigure(t, out, err)
	assert.Empty(t, fig.Series[0].Dates)
}

func TestSingleDayRange(t *testing.T) {
	h, _ := newHandlers(t, fixture(), false)
	req := rangeRequest(ymd(day(0)), ymd(day(0)))

	out, err := h.EnergyGraph(context.Background(), req)
	line := lineFigure(t, out, err)
	// day 0 appears twice in the fixture
	assert.Len(t, line.Series[0].Dates, 2)

	out, err = h.TrendGraph(context.Background(), req)
	trend := lineFigure(t, out, err)
	_, defined := trend.Series[0].Defined()
	assert.Empty(t, defined)
}

func TestTrendGraphBoundary(t *testing.T) {
	data := fixture()
	h, _ := newHandlers(t, data, false)

	for _, span := range []int{0, 3, 5, 6, 7, 9, 13} {
		start, end := day(0), day(span)
		out, err := h.TrendGraph(context.Background(), rangeRequest(ymd(start), ymd(end)))
		fig := lineFigure(t, out, err)
		assert.Equal(t, "Energy Consumption Trend", fig.Title)

		window := data.FilterEnergy(models.DateRange{Start: start, End: end})
		values := fig.Series[0].Values
		require.Len(t, values, len(window))

		undefined := len(window)
		if undefined > 6 {
			undefined = 6
		}
		for i := range values {
			if i < undefined {
				assert.True(t, math.IsNaN(values[i]), "span %d point %d", span, i)
				continue
			}
			var sum float64
			for _, rec := range window[i-6 : i+1] {
				sum += rec.KWh
			}
			assert.InDelta(t, sum/7, values[i], 1e-12, "span %d point %d", span, i)
		}
	}
}

func TestAppliancePieIgnoresDateRange(t *testing.T) {
	h, _ := newHandlers(t, fixture(), false)

	want := []charts.PieSlice{
		{Label: "AC", Value: 2.5},
		{Label: "Fridge", Value: 2.0},
		{Label: "TV", Value: 0.5},
	}
	for _, req := range []*Request{
		rangeRequest(ymd(day(0)), ymd(day(13))),
		rangeRequest(ymd(day(5)), ymd(day(5))),
		rangeRequest("2030-01-01", "2030-12-31"),
		rangeRequest("", ""),
	} {
		out, err := h.AppliancePie(context.Background(), req)
		require.NoError(t, err)
		fig := out.(*charts.PieFigure)
		assert.Equal(t, "Total Appliance Power Consumption", fig.Title)
		require.Len(t, fig.Slices, len(want))
		for i := range want {
			assert.Equal(t, want[i].Label, fig.Slices[i].Label)
			assert.InDelta(t, want[i].Value, fig.Slices[i].Value, 1e-9)
		}
	}
}

func TestAppliancePieFilterByDateOptIn(t *testing.T) {
	data := dataset.New(fixture().Energy(), []models.ApplianceRecord{
		{Appliance: "Heater", Power: 3, Date: day(1)},
		{Appliance: "Heater", Power: 4, Date: day(10)},
		{Appliance: "Router", Power: 0.1},
	})
	h, _ := newHandlers(t, data, true)

	out, err := h.AppliancePie(context.Background(), rangeRequest(ymd(day(0)), ymd(day(2))))
	require.NoError(t, err)
	assert.Equal(t, []charts.PieSlice{{Label: "Heater", Value: 3}, {Label: "Router", Value: 0.1}}, out.(*charts.PieFigure).Slices)

	_, err = h.AppliancePie(context.Background(), rangeRequest("", ymd(day(2))))
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestDateInputErrors(t *testing.T) {
	h, _ := newHandlers(t, fixture(), false)

	for _, req := range []*Request{
		rangeRequest("", ymd(day(3))),
		rangeRequest(ymd(day(3)), ""),
		rangeRequest("not-a-date", ymd(day(3))),
	} {
		_, err := h.EnergyGraph(context.Background(), req)
		assert.ErrorIs(t, err, ErrBadInput)
		_, err = h.TrendGraph(context.Background(), req)
		assert.ErrorIs(t, err, ErrBadInput)
	}
}

func TestDateInputAcceptsTimestamps(t *testing.T) {
	h, _ := newHandlers(t, fixture(), false)

	out, err := h.EnergyGraph(context.Background(), rangeRequest("2023-01-02T00:00:00", "2023-01-03"))
	fig := lineFigure(t, out, err)
	assert.Len(t, fig.Series[0].Dates, 2)
}
