package portfolio

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/folioapp/folio/internal/models"
)

// HistoryPoint is one dated total-value sample in a portfolio's history.
type HistoryPoint struct {
	Date  time.Time
	Value float64
}

// buildHistory reconstructs the portfolio's daily total value from its action
// log and the upstream close series for the traded tickers. Holdings are
// folded forward day by day; closes carry forward over gaps in the series.
// Cash uses the current balance since the log records shares, not spend.
func buildHistory(p *models.Portfolio, series []models.ComparisonSeries) []HistoryPoint {
	dateSet := make(map[string]struct{})
	closes := make(map[string]map[string]float64, len(series))
	for _, sr := range series {
		m := make(map[string]float64, len(sr.Points))
		for _, pt := range sr.Points {
			m[pt.Date] = pt.Close
			dateSet[pt.Date] = struct{}{}
		}
		closes[sr.Symbol] = m
	}
	for _, days := range p.Actions {
		for d := range days {
			dateSet[d] = struct{}{}
		}
	}

	if len(dateSet) == 0 {
		// Cash-only portfolio: flat line from creation to now.
		return []HistoryPoint{
			{Date: p.CreatedAt, Value: p.Cash},
			{Date: time.Now(), Value: p.Cash},
		}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	held := make(map[string]float64)
	lastClose := make(map[string]float64)
	points := make([]HistoryPoint, 0, len(dates))
	for _, d := range dates {
		for ticker, days := range p.Actions {
			if n, ok := days[d]; ok {
				held[ticker] += n
			}
		}

		value := p.Cash
		for ticker, n := range held {
			if c, ok := closes[ticker][d]; ok {
				lastClose[ticker] = c
			}
			value += n * lastClose[ticker]
		}

		t, err := time.Parse(models.ActionDateFormat, d)
		if err != nil {
			continue
		}
		points = append(points, HistoryPoint{Date: t, Value: value})
	}

	if len(points) == 1 {
		points = append(points, HistoryPoint{
			Date:  points[0].Date.Add(24 * time.Hour),
			Value: points[0].Value,
		})
	}
	return points
}

// RenderHistoryChart renders a PNG line chart of portfolio total value over
// time. Two series: Total Value (blue solid) and Initial Cash (gray dashed
// baseline). Returns raw PNG bytes.
func RenderHistoryChart(title string, points []HistoryPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(points))
	}

	xValues := make([]time.Time, len(points))
	valueY := make([]float64, len(points))
	baseY := make([]float64, len(points))

	base := points[0].Value
	for i, p := range points {
		xValues[i] = p.Date
		valueY[i] = p.Value
		baseY[i] = base
	}

	valueSeries := chart.TimeSeries{
		Name: "Total Value",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: valueY,
	}

	baseSeries := chart.TimeSeries{
		Name: "Starting Value",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: baseY,
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			valueSeries,
			baseSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
