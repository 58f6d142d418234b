package data

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio/internal/apperrors"
	"github.com/folioapp/folio/internal/models"
)

func TestPortfolioLifecycle(t *testing.T) {
	mgr := testManager(t)
	store := mgr.PortfolioStore()
	ctx := testContext()

	p := models.NewPortfolio("pf_lifecycle", "jdoe", "Growth", "Long-term growth", []int{1, 3}, 10000)
	require.NoError(t, store.Create(ctx, p))

	got, err := store.Get(ctx, "pf_lifecycle")
	require.NoError(t, err)
	assert.Equal(t, "Growth", got.Title)
	assert.Equal(t, 10000.0, got.Cash)
	assert.Equal(t, 1, got.Version)

	require.NoError(t, store.Delete(ctx, "pf_lifecycle"))
	_, err = store.Get(ctx, "pf_lifecycle")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPortfolioCreateDuplicate(t *testing.T) {
	mgr := testManager(t)
	store := mgr.PortfolioStore()
	ctx := testContext()

	p := models.NewPortfolio("pf_dup", "jdoe", "First", "", nil, 5000)
	require.NoError(t, store.Create(ctx, p))

	again := models.NewPortfolio("pf_dup", "jdoe", "Second", "", nil, 5000)
	err := store.Create(ctx, again)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestPortfolioVersionedSave(t *testing.T) {
	mgr := testManager(t)
	store := mgr.PortfolioStore()
	ctx := testContext()

	p := models.NewPortfolio("pf_ver", "jdoe", "Versioned", "", nil, 10000)
	require.NoError(t, store.Create(ctx, p))

	// A save conditioned on the stored version succeeds and bumps it.
	p.Cash = 9000
	p.Shares["BHP"] = 25
	require.NoError(t, store.Save(ctx, p, 1))
	assert.Equal(t, 2, p.Version)

	got, err := store.Get(ctx, "pf_ver")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 9000.0, got.Cash)
	assert.Equal(t, 25.0, got.Shares["BHP"])

	// A save conditioned on a stale version is rejected and leaves the
	// stored document untouched.
	stale := got.Clone()
	stale.Cash = 0
	err = store.Save(ctx, stale, 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err = store.Get(ctx, "pf_ver")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 9000.0, got.Cash)
}

func TestPortfolioConcurrentSaves(t *testing.T) {
	mgr := testManager(t)
	store := mgr.PortfolioStore()
	ctx := testContext()

	p := models.NewPortfolio("pf_race", "jdoe", "Contended", "", nil, 10000)
	require.NoError(t, store.Create(ctx, p))

	// Two writers read the same snapshot; only one may win.
	a, err := store.Get(ctx, "pf_race")
	require.NoError(t, err)
	b := a.Clone()

	a.Cash = 8000
	require.NoError(t, store.Save(ctx, a, 1))

	b.Cash = 7000
	err = store.Save(ctx, b, 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := store.Get(ctx, "pf_race")
	require.NoError(t, err)
	assert.Equal(t, 8000.0, got.Cash)
}

func TestPortfolioActionsRoundTrip(t *testing.T) {
	mgr := testManager(t)
	store := mgr.PortfolioStore()
	ctx := testContext()

	p := models.NewPortfolio("pf_actions", "jdoe", "Traded", "", nil, 10000)
	p.Shares["CBA"] = 10
	p.Actions["CBA"] = map[string]float64{
		"2026-08-28": 15,
		"2026-08-31": -5,
	}
	require.NoError(t, store.Create(ctx, p))

	got, err := store.Get(ctx, "pf_actions")
	require.NoError(t, err)
	require.Contains(t, got.Actions, "CBA")
	assert.Equal(t, 15.0, got.Actions["CBA"]["2026-08-28"])
	assert.Equal(t, -5.0, got.Actions["CBA"]["2026-08-31"])
}

func TestListByUser(t *testing.T) {
	mgr := testManager(t)
	store := mgr.PortfolioStore()
	ctx := testContext()

	for i := 0; i < 3; i++ {
		p := models.NewPortfolio(fmt.Sprintf("pf_list_%d", i), "lister", fmt.Sprintf("Portfolio %d", i), "", nil, 1000)
		require.NoError(t, store.Create(ctx, p))
	}
	other := models.NewPortfolio("pf_other", "someone_else", "Other", "", nil, 1000)
	require.NoError(t, store.Create(ctx, other))

	list, err := store.ListByUser(ctx, "lister")
	require.NoError(t, err)
	assert.Len(t, list, 3)
	for _, p := range list {
		assert.Equal(t, "lister", p.UserID)
	}
}
