package dashboard

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/jgoulah/energydash/internal/dataset"
)

//go:embed templates/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

// Layout is the static widget tree, built once at startup
type Layout struct {
	Title        string
	IntervalID   string
	IntervalMS   int64
	DateRangeID  string
	MinDate      string
	MaxDate      string
	StartDate    string
	EndDate      string
	TotalID      string
	EnergyID     string
	TrendID      string
	PieID        string
	Dependencies string
	UpdatePath   string
}

// NewLayout derives the date picker bounds from the data. The picker starts
// on the full range.
func NewLayout(data *dataset.Dataset, interval time.Duration) Layout {
	l := Layout{
		Title:        "Energy Consumption Dashboard",
		IntervalID:   IntervalID,
		IntervalMS:   interval.Milliseconds(),
		DateRangeID:  DateRangeID,
		TotalID:      TotalDisplayID,
		EnergyID:     EnergyGraphID,
		TrendID:      TrendGraphID,
		PieID:        AppliancePieID,
		Dependencies: dependenciesPath,
		UpdatePath:   updatePath,
	}
	if len(data.Energy()) > 0 {
		full := data.FullRange()
		l.MinDate = full.Start.Format("2006-01-02")
		l.MaxDate = full.End.Format("2006-01-02")
		l.StartDate, l.EndDate = l.MinDate, l.MaxDate
	}
	return l
}

// Render executes the page template
func (l Layout) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, l); err != nil {
		return nil, fmt.Errorf("rendering layout: %w", err)
	}
	return buf.Bytes(), nil
}
