// Package ledger implements the portfolio ledger-update contract: applying
// one buy or sell to a portfolio's cash and share balances while enforcing
// solvency and maintaining the sparse per-ticker, per-day action log.
package ledger

import (
	"fmt"
	"time"

	"github.com/folioapp/folio/internal/apperrors"
	"github.com/folioapp/folio/internal/models"
)

// Apply applies one trade to a snapshot of p and returns the updated copy.
//
// shares is signed: positive buys, negative sells. price is the positive
// unit price. The trade is bucketed into the UTC calendar day of at.
//
// Preconditions: the resulting share count and cash balance must both be
// non-negative. A violating update is rejected in full — the returned error
// wraps ErrInsufficientShares or ErrInsufficientFunds and p is untouched.
//
// On success the day entry actions[ticker][day] is incremented by shares and
// removed when its net value returns to exactly zero, so intraday round-trips
// don't accumulate in the document.
func Apply(p *models.Portfolio, ticker string, shares, price float64, at time.Time) (*models.Portfolio, error) {
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", apperrors.ErrValidation)
	}
	if shares == 0 {
		return nil, fmt.Errorf("%w: shares must be non-zero", apperrors.ErrValidation)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", apperrors.ErrValidation)
	}

	newShares := p.SharesOf(ticker) + shares
	if newShares < 0 {
		return nil, fmt.Errorf("%w: %s holds %g, cannot sell %g",
			apperrors.ErrInsufficientShares, ticker, p.SharesOf(ticker), -shares)
	}

	newCash := p.Cash - shares*price
	if newCash < 0 {
		return nil, fmt.Errorf("%w: balance %.2f, trade costs %.2f",
			apperrors.ErrInsufficientFunds, p.Cash, shares*price)
	}

	out := p.Clone()
	out.Shares[ticker] = newShares
	out.Cash = newCash
	recordAction(out, ticker, shares, at)
	out.UpdatedAt = at
	return out, nil
}

// recordAction folds the trade into the day-keyed action log, pruning
// zero-net days and empty ticker maps.
func recordAction(p *models.Portfolio, ticker string, shares float64, at time.Time) {
	day := models.ActionDay(at)

	days := p.Actions[ticker]
	if days == nil {
		days = make(map[string]float64)
		p.Actions[ticker] = days
	}

	net := days[day] + shares
	if net == 0 {
		delete(days, day)
		if len(days) == 0 {
			delete(p.Actions, ticker)
		}
		return
	}
	days[day] = net
}
