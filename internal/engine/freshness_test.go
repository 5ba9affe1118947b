package engine

import (
	"context"
	"testing"
	"time"

	"lumia-advisor/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshnessAllCurrent(t *testing.T) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	signals := newFakeSignalRepo()
	seedSignal(signals, 1, today, 0.1, 0.5, 0.01, 0.2)
	seedSignal(signals, 2, today, 0.1, 0.5, 0.01, 0.2)

	checker := NewFreshnessChecker(
		&fakeAssetRepo{assets: []entity.Asset{
			{ID: 1, Symbol: "AAA", IsActive: true},
			{ID: 2, Symbol: "BBB", IsActive: true},
		}},
		&fakePriceRepo{bars: map[uint][]entity.DailyPrice{1: {{AssetID: 1, Date: today, Close: 100}}}},
		signals)

	status, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.True(t, status.IsFresh)
	assert.Empty(t, status.Warnings)
	assert.InDelta(t, 100, status.Coverage.CoveragePercentage, 1e-9)
}

func TestFreshnessStaleSignals(t *testing.T) {
	old := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -10)
	signals := newFakeSignalRepo()
	seedSignal(signals, 1, old, 0.1, 0.5, 0.01, 0.2)

	checker := NewFreshnessChecker(
		&fakeAssetRepo{assets: []entity.Asset{{ID: 1, Symbol: "AAA", IsActive: true}}},
		&fakePriceRepo{bars: map[uint][]entity.DailyPrice{}},
		signals)

	status, err := checker.Check(context.Background())
	require.NoError(t, err)

	// Ten-day-old signals are past the hard staleness threshold, and with
	// nothing in the trailing week coverage collapses too.
	assert.False(t, status.IsFresh)
	assert.NotEmpty(t, status.Warnings)
	require.NotNil(t, status.SignalAgeDays)
	assert.Equal(t, 10, *status.SignalAgeDays)
	assert.InDelta(t, 0, status.Coverage.CoveragePercentage, 1e-9)
}

func TestFreshnessNoSignals(t *testing.T) {
	checker := NewFreshnessChecker(
		&fakeAssetRepo{assets: []entity.Asset{{ID: 1, Symbol: "AAA", IsActive: true}}},
		&fakePriceRepo{bars: map[uint][]entity.DailyPrice{}},
		newFakeSignalRepo())

	status, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.False(t, status.IsFresh)
	assert.Contains(t, status.Warnings, "no signal data found")
	assert.Nil(t, status.SignalAgeDays)
}

func TestFreshnessLowCoverageWarns(t *testing.T) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	signals := newFakeSignalRepo()
	seedSignal(signals, 1, today, 0.1, 0.5, 0.01, 0.2)

	// One of three active assets covered: warns but stays above the 20%
	// staleness floor.
	checker := NewFreshnessChecker(
		&fakeAssetRepo{assets: []entity.Asset{
			{ID: 1, Symbol: "AAA", IsActive: true},
			{ID: 2, Symbol: "BBB", IsActive: true},
			{ID: 3, Symbol: "CCC", IsActive: true},
		}},
		&fakePriceRepo{bars: map[uint][]entity.DailyPrice{}},
		signals)

	status, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.True(t, status.IsFresh)
	assert.NotEmpty(t, status.Warnings)
	assert.InDelta(t, 100.0/3, status.Coverage.CoveragePercentage, 1e-6)
}
