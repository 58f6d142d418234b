package models

import "time"

// Snapshot is the fast single-asset quote returned by the market-data
// snapshot endpoint.
type Snapshot struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePct     float64   `json:"change_pct"`
	PreviousClose float64   `json:"previous_close"`
	Currency      string    `json:"currency,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ComparisonSeries is one symbol's history within a multi-ticker comparison.
type ComparisonSeries struct {
	Symbol string        `json:"symbol"`
	Points []SeriesPoint `json:"points"`
}

// SeriesPoint is a single dated close within a comparison series.
type SeriesPoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Close float64 `json:"close"`
}

// Analytics is the portfolio-derived analytics payload: per-symbol stats
// computed upstream from the requested symbols.
type Analytics struct {
	Symbols []SymbolAnalytics `json:"symbols"`
	AsOf    time.Time         `json:"as_of"`
}

// SymbolAnalytics carries per-symbol risk/return figures.
type SymbolAnalytics struct {
	Symbol     string  `json:"symbol"`
	Return1Y   float64 `json:"return_1y"`
	Volatility float64 `json:"volatility"`
	Beta       float64 `json:"beta"`
	Yield      float64 `json:"yield"`
}
