package engine

import (
	"context"
	"testing"
	"time"

	"lumia-advisor/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator(t *testing.T, prices *fakePriceRepo, fundamentals *fakeFundamentalRepo, news *fakeNewsRepo, signals *fakeSignalRepo) *SignalAggregator {
	t.Helper()
	return NewSignalAggregator(prices, fundamentals, news, signals, NewTechnicalAnalyzer(), newTestLogger(t))
}

func TestGenerateForDateComputesFeatures(t *testing.T) {
	target := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	bars := makeTrendBars(250, 100, 0.5)
	// Shift bars so the last one lands on the target date.
	last := bars[len(bars)-1].Date
	offset := int(target.Sub(last).Hours() / 24)
	for i := range bars {
		bars[i].Date = bars[i].Date.AddDate(0, 0, offset)
	}

	prices := &fakePriceRepo{bars: map[uint][]entity.DailyPrice{1: bars}}
	news := &fakeNewsRepo{items: map[uint][]entity.NewsSentiment{1: {
		{AssetID: 1, PublishedAt: target.Add(2 * time.Hour), Score: 0.8},
		{AssetID: 1, PublishedAt: target.Add(4 * time.Hour), Score: 0.4},
		{AssetID: 1, PublishedAt: target.AddDate(0, 0, -3), Score: -0.2},
		{AssetID: 1, PublishedAt: target.AddDate(0, 0, -20), Score: 0.0},
	}}}
	fundamentals := &fakeFundamentalRepo{rows: map[uint][]entity.QuarterlyFundamental{1: {
		{AssetID: 1, ReportDate: target.AddDate(0, -2, 0), ROE: floatPtr(0.20), PERatio: floatPtr(15.0)},
	}}}
	signalRepo := newFakeSignalRepo()

	aggregator := newTestAggregator(t, prices, fundamentals, news, signalRepo)

	signal, err := aggregator.GenerateForDate(context.Background(), 1, target)
	require.NoError(t, err)
	require.NotNil(t, signal)

	assert.False(t, signal.InsufficientData)
	assert.Equal(t, 2, signal.ArticleCount)
	require.NotNil(t, signal.Sentiment1D)
	assert.InDelta(t, 0.6, *signal.Sentiment1D, 1e-9)
	require.NotNil(t, signal.Sentiment7D)
	assert.InDelta(t, (0.8+0.4-0.2)/3, *signal.Sentiment7D, 1e-9)
	require.NotNil(t, signal.Sentiment30D)
	assert.InDelta(t, (0.8+0.4-0.2+0.0)/4, *signal.Sentiment30D, 1e-9)

	require.NotNil(t, signal.Return30D)
	assert.Greater(t, *signal.Return30D, 0.0)
	require.NotNil(t, signal.Return365D)
	assert.Greater(t, *signal.Return365D, 0.0)
	require.NotNil(t, signal.Volatility)
	assert.GreaterOrEqual(t, *signal.Volatility, 0.0)

	// ROE at the 20% reference scores 1.0, P/E at the ideal 15 scores 1.0.
	require.NotNil(t, signal.FundamentalScore)
	assert.InDelta(t, 1.0, *signal.FundamentalScore, 1e-9)
}

func TestGenerateForDateIdempotent(t *testing.T) {
	target := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	bars := makeTrendBars(250, 100, 0.5)
	last := bars[len(bars)-1].Date
	offset := int(target.Sub(last).Hours() / 24)
	for i := range bars {
		bars[i].Date = bars[i].Date.AddDate(0, 0, offset)
	}

	prices := &fakePriceRepo{bars: map[uint][]entity.DailyPrice{1: bars}}
	news := &fakeNewsRepo{items: map[uint][]entity.NewsSentiment{}}
	fundamentals := &fakeFundamentalRepo{rows: map[uint][]entity.QuarterlyFundamental{}}
	signalRepo := newFakeSignalRepo()

	aggregator := newTestAggregator(t, prices, fundamentals, news, signalRepo)

	first, err := aggregator.GenerateForDate(context.Background(), 1, target)
	require.NoError(t, err)
	require.Equal(t, 1, signalRepo.upserts)

	second, err := aggregator.GenerateForDate(context.Background(), 1, target)
	require.NoError(t, err)

	// Unchanged inputs skip the write and return the stored record as-is.
	assert.Equal(t, 1, signalRepo.upserts)
	assert.Equal(t, first.TechnicalScore, second.TechnicalScore)
	assert.Equal(t, first.Action, second.Action)
	assert.Equal(t, first.Signals, second.Signals)
}

func TestGenerateForDateNoFundamentalHistory(t *testing.T) {
	target := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	bars := makeTrendBars(60, 100, 0.2)
	last := bars[len(bars)-1].Date
	offset := int(target.Sub(last).Hours() / 24)
	for i := range bars {
		bars[i].Date = bars[i].Date.AddDate(0, 0, offset)
	}

	prices := &fakePriceRepo{bars: map[uint][]entity.DailyPrice{1: bars}}
	aggregator := newTestAggregator(t, prices,
		&fakeFundamentalRepo{rows: map[uint][]entity.QuarterlyFundamental{}},
		&fakeNewsRepo{items: map[uint][]entity.NewsSentiment{}},
		newFakeSignalRepo())

	signal, err := aggregator.GenerateForDate(context.Background(), 1, target)
	require.NoError(t, err)

	// Absent fundamentals stay absent, never coerced to zero.
	assert.Nil(t, signal.FundamentalScore)
}

func TestGenerateForDateSparseHistory(t *testing.T) {
	target := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	bars := makeTrendBars(10, 100, 0.2)
	last := bars[len(bars)-1].Date
	offset := int(target.Sub(last).Hours() / 24)
	for i := range bars {
		bars[i].Date = bars[i].Date.AddDate(0, 0, offset)
	}

	prices := &fakePriceRepo{bars: map[uint][]entity.DailyPrice{1: bars}}
	aggregator := newTestAggregator(t, prices,
		&fakeFundamentalRepo{rows: map[uint][]entity.QuarterlyFundamental{}},
		&fakeNewsRepo{items: map[uint][]entity.NewsSentiment{}},
		newFakeSignalRepo())

	signal, err := aggregator.GenerateForDate(context.Background(), 1, target)
	require.NoError(t, err)

	assert.True(t, signal.InsufficientData)
	assert.Equal(t, entity.ActionHold, signal.Action)
	assert.Equal(t, 0.0, signal.Confidence)
	// Ten bars still carry a 30-day window, volatility remains computable.
	assert.NotNil(t, signal.Volatility)
	assert.NotNil(t, signal.Return30D)
}
