package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio/internal/models"
)

func TestBuildHistoryFoldsHoldings(t *testing.T) {
	p := models.NewPortfolio("p1", "jdoe", "Growth", "", nil, 500)
	p.Shares["AAPL"] = 5
	p.Actions = map[string]map[string]float64{
		"AAPL": {"2024-01-15": 5},
	}

	series := []models.ComparisonSeries{
		{Symbol: "AAPL", Points: []models.SeriesPoint{
			{Date: "2024-01-15", Close: 100},
			{Date: "2024-01-16", Close: 110},
			{Date: "2024-01-17", Close: 90},
		}},
	}

	points := buildHistory(p, series)
	require.Len(t, points, 3)

	assert.Equal(t, 500.0+5*100, points[0].Value)
	assert.Equal(t, 500.0+5*110, points[1].Value)
	assert.Equal(t, 500.0+5*90, points[2].Value)
}

func TestBuildHistoryCarriesCloseForward(t *testing.T) {
	p := models.NewPortfolio("p1", "jdoe", "Growth", "", nil, 0)
	p.Shares["BHP"] = 2
	p.Actions = map[string]map[string]float64{
		"BHP": {"2024-03-04": 2},
	}

	// No close on the action day itself; the 2024-03-05 close applies from
	// that date on.
	series := []models.ComparisonSeries{
		{Symbol: "BHP", Points: []models.SeriesPoint{
			{Date: "2024-03-05", Close: 40},
		}},
	}

	points := buildHistory(p, series)
	require.Len(t, points, 2)
	assert.Equal(t, 0.0, points[0].Value, "no close known on trade day")
	assert.Equal(t, 80.0, points[1].Value)
}

func TestBuildHistoryCashOnly(t *testing.T) {
	p := models.NewPortfolio("p1", "jdoe", "Cash", "", nil, 1200)

	points := buildHistory(p, nil)
	require.Len(t, points, 2)
	assert.Equal(t, 1200.0, points[0].Value)
	assert.Equal(t, 1200.0, points[1].Value)
	assert.True(t, points[1].Date.After(points[0].Date))
}

func TestRenderHistoryChartProducesPNG(t *testing.T) {
	points := []HistoryPoint{
		{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Value: 1000},
		{Date: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), Value: 1100},
		{Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Value: 950},
	}

	png, err := RenderHistoryChart("Growth", points)
	require.NoError(t, err)
	require.NotEmpty(t, png)

	// PNG magic bytes
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRenderHistoryChartRejectsTooFewPoints(t *testing.T) {
	_, err := RenderHistoryChart("Growth", []HistoryPoint{{Date: time.Now(), Value: 1}})
	assert.Error(t, err)
}
