package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jgoulah/energydash/internal/charts"
	"github.com/jgoulah/energydash/internal/dataset"
	"github.com/jgoulah/energydash/internal/meter"
	"github.com/jgoulah/energydash/pkg/models"
)

// Widget ids shared by the layout and the callback table
const (
	IntervalID       = "interval"
	DateRangeID      = "date-range"
	TotalDisplayID   = "total-energy-consumption-display"
	EnergyGraphID    = "energy-consumption-graph"
	TrendGraphID     = "energy-consumption-trend-graph"
	AppliancePieID   = "appliance-power-pie-chart"
	propNIntervals   = "n_intervals"
	propStartDate    = "start_date"
	propEndDate      = "end_date"
	energyYAxisTitle = "Energy Consumption (kWh)"
)

// TickPublisher receives every meter reading the dashboard produces
type TickPublisher interface {
	PublishReading(sessionID string, r meter.Reading) error
}

// HandlerOptions configures the four dashboard callbacks
type HandlerOptions struct {
	Data        *dataset.Dataset
	Sessions    *meter.Store
	Tariff      meter.Tariff
	TrendWindow int
	PieByDate   bool
	Publisher   TickPublisher // optional
	Metrics     *Metrics      // optional
	Log         *logrus.Logger
}

// Handlers implements the dashboard callbacks
type Handlers struct {
	opts HandlerOptions
}

// NewHandlers builds the callbacks over an already-loaded dataset
func NewHandlers(opts HandlerOptions) *Handlers {
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = 7
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Handlers{opts: opts}
}

// Register adds the four callbacks to reg
func (h *Handlers) Register(reg *Registry) error {
	dateInputs := []Input{{DateRangeID, propStartDate}, {DateRangeID, propEndDate}}
	callbacks := []Callback{
		{Output: TotalDisplayID, Inputs: []Input{{IntervalID, propNIntervals}}, Handler: h.TotalEnergy},
		{Output: EnergyGraphID, Inputs: dateInputs, Handler: h.EnergyGraph},
		{Output: TrendGraphID, Inputs: dateInputs, Handler: h.TrendGraph},
		{Output: AppliancePieID, Inputs: dateInputs, Handler: h.AppliancePie},
	}
	for _, cb := range callbacks {
		if err := reg.Register(cb); err != nil {
			return err
		}
	}
	return nil
}

var totalTmpl = template.Must(template.New("total").Parse(
	`<div>Total Energy Consumption: {{printf "%.2f" .KWh}} kWh</div>` +
		`<div>Total Cost: {{.Currency}} {{printf "%.2f" .Cost}}</div>`))

// TotalDisplay is the two-line running total shown above the charts
type TotalDisplay struct {
	meter.Reading
}

// Lines returns the display text without markup
func (d TotalDisplay) Lines() []string {
	return []string{
		fmt.Sprintf("Total Energy Consumption: %.2f kWh", d.KWh),
		fmt.Sprintf("Total Cost: %s %.2f", d.Currency, d.Cost),
	}
}

// Render writes the display as HTML
func (d TotalDisplay) Render(w io.Writer) error {
	return totalTmpl.Execute(w, d)
}

// TotalEnergy advances the session's meter by one tick
func (h *Handlers) TotalEnergy(ctx context.Context, req *Request) (Renderer, error) {
	m := h.opts.Sessions.Get(req.SessionID)
	total := m.Tick()
	reading := h.opts.Tariff.Reading(total, time.Now())

	if h.opts.Metrics != nil {
		h.opts.Metrics.ticks.Inc()
	}
	if h.opts.Publisher != nil {
		if err := h.opts.Publisher.PublishReading(req.SessionID, reading); err != nil {
			h.opts.Log.WithError(err).Warn("Publishing meter reading failed")
		}
	}

	return TotalDisplay{Reading: reading}, nil
}

// EnergyGraph plots energy consumption inside the selected range
func (h *Handlers) EnergyGraph(ctx context.Context, req *Request) (Renderer, error) {
	rng, err := dateRange(req)
	if err != nil {
		return nil, err
	}
	recs := h.opts.Data.FilterEnergy(rng)
	return &charts.LineFigure{
		Title:  "Energy Consumption",
		XTitle: "Date",
		YTitle: energyYAxisTitle,
		Series: []charts.LineSeries{energySeries("Energy Consumption", recs, nil)},
	}, nil
}

// TrendGraph plots the trailing mean of the filtered series. The mean is
// taken after filtering, so the first window-1 points of any range are empty.
func (h *Handlers) TrendGraph(ctx context.Context, req *Request) (Renderer, error) {
	rng, err := dateRange(req)
	if err != nil {
		return nil, err
	}
	recs := h.opts.Data.FilterEnergy(rng)
	return &charts.LineFigure{
		Title:  "Energy Consumption Trend",
		XTitle: "Date",
		YTitle: energyYAxisTitle,
		Series: []charts.LineSeries{energySeries("Energy Consumption Trend", recs, func(v []float64) []float64 {
			return charts.RollingMean(v, h.opts.TrendWindow)
		})},
	}, nil
}

// AppliancePie sums power per appliance. Unless PieByDate is set the date
// inputs are accepted but ignored and the whole table is charted.
func (h *Handlers) AppliancePie(ctx context.Context, req *Request) (Renderer, error) {
	var totals []dataset.ApplianceTotal
	if h.opts.PieByDate {
		rng, err := dateRange(req)
		if err != nil {
			return nil, err
		}
		totals = h.opts.Data.GroupAppliances(&rng)
	} else {
		totals = h.opts.Data.GroupAppliances(nil)
	}

	slices := make([]charts.PieSlice, 0, len(totals))
	for _, t := range totals {
		slices = append(slices, charts.PieSlice{Label: t.Appliance, Value: t.Power})
	}
	return &charts.PieFigure{Title: "Total Appliance Power Consumption", Slices: slices}, nil
}

func energySeries(name string, recs []models.EnergyRecord, transform func([]float64) []float64) charts.LineSeries {
	dates := make([]time.Time, len(recs))
	values := make([]float64, len(recs))
	for i, r := range recs {
		dates[i] = r.Date
		values[i] = r.KWh
	}
	if transform != nil {
		values = transform(values)
	}
	return charts.LineSeries{Name: name, Dates: dates, Values: values}
}

func dateRange(req *Request) (models.DateRange, error) {
	start, err := parseDateInput(req.Value(DateRangeID, propStartDate), propStartDate)
	if err != nil {
		return models.DateRange{}, err
	}
	end, err := parseDateInput(req.Value(DateRangeID, propEndDate), propEndDate)
	if err != nil {
		return models.DateRange{}, err
	}
	return models.DateRange{Start: start, End: end}, nil
}

func parseDateInput(v, name string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: %s is empty", ErrBadInput, name)
	}
	t, err := dataset.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrBadInput, name, err)
	}
	return t, nil
}
