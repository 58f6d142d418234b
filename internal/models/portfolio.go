// Package models defines data structures for Folio
package models

import "time"

// ActionDateFormat is the day-bucket key format for the portfolio action log.
// Dates are bucketed in UTC so a trade lands in the same bucket regardless of
// the server's local timezone.
const ActionDateFormat = "2006-01-02"

// ActionDay returns the UTC day-bucket key for t.
func ActionDay(t time.Time) string {
	return t.UTC().Format(ActionDateFormat)
}

// Portfolio represents one user's simulated investment account.
//
// Shares maps ticker symbol to held share count; entries are created on the
// first buy of a ticker and may legitimately sit at zero after a full sell.
// Actions maps ticker to a day-keyed net-shares-transacted log (positive =
// net buy, negative = net sell); a day entry whose net returns to exactly
// zero is pruned so intraday round-trips don't grow the document.
type Portfolio struct {
	ID          string                        `json:"id"`
	UserID      string                        `json:"user_id"`
	Title       string                        `json:"title"`
	Description string                        `json:"description"`
	Date        time.Time                     `json:"date"`
	Tags        []int                         `json:"tags,omitempty"`
	Favourites  int                           `json:"favourites"`
	Cash        float64                       `json:"cash"`
	InitialCash float64                       `json:"initial_cash"`
	Shares      map[string]float64            `json:"shares"`
	Actions     map[string]map[string]float64 `json:"actions"`

	// Version is the optimistic-concurrency token. Writes are conditioned on
	// the version read and bump it by one; a mismatch surfaces as Conflict.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPortfolio initialises a portfolio with a starting cash balance and no
// shares or actions.
func NewPortfolio(id, userID, title, description string, tags []int, initialCash float64) *Portfolio {
	now := time.Now()
	return &Portfolio{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: description,
		Date:        now,
		Tags:        tags,
		Cash:        initialCash,
		InitialCash: initialCash,
		Shares:      make(map[string]float64),
		Actions:     make(map[string]map[string]float64),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SharesOf returns the held share count for ticker, zero if never traded.
func (p *Portfolio) SharesOf(ticker string) float64 {
	if p.Shares == nil {
		return 0
	}
	return p.Shares[ticker]
}

// Clone returns a deep copy of the portfolio. The ledger applies actions to
// a clone so a rejected action leaves the caller's snapshot untouched.
func (p *Portfolio) Clone() *Portfolio {
	cp := *p
	cp.Tags = append([]int(nil), p.Tags...)
	cp.Shares = make(map[string]float64, len(p.Shares))
	for t, n := range p.Shares {
		cp.Shares[t] = n
	}
	cp.Actions = make(map[string]map[string]float64, len(p.Actions))
	for t, days := range p.Actions {
		dc := make(map[string]float64, len(days))
		for d, n := range days {
			dc[d] = n
		}
		cp.Actions[t] = dc
	}
	return &cp
}

// Action is one committed buy or sell, returned to callers for rendering
// trade markers on charts.
type Action struct {
	Ticker string    `json:"ticker"`
	Shares float64   `json:"shares"`
	Price  float64   `json:"price"`
	Date   string    `json:"date"` // YYYY-MM-DD, UTC
	At     time.Time `json:"at"`
}
