package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/energydash/internal/dataset"
)

func TestNewLayoutBounds(t *testing.T) {
	l := NewLayout(fixture(), 5*time.Second)

	assert.Equal(t, "2023-01-01", l.MinDate)
	assert.Equal(t, "2023-01-14", l.MaxDate)
	assert.Equal(t, l.MinDate, l.StartDate)
	assert.Equal(t, l.MaxDate, l.EndDate)
	assert.Equal(t, int64(5000), l.IntervalMS)
}

func TestNewLayoutWithoutData(t *testing.T) {
	l := NewLayout(dataset.New(nil, nil), time.Second)
	assert.Empty(t, l.MinDate)
	assert.Empty(t, l.StartDate)

	page, err := l.Render()
	require.NoError(t, err)
	assert.Contains(t, string(page), "Energy Consumption Dashboard")
}
