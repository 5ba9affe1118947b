package engine

import (
	"context"
	"testing"
	"time"

	"lumia-advisor/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyForRisk(t *testing.T) {
	tests := []struct {
		risk     float64
		expected string
	}{
		{0.0, StrategyConservative},
		{0.33, StrategyConservative},
		{0.34, StrategyBalanced},
		{0.66, StrategyBalanced},
		{0.67, StrategyAggressive},
		{1.0, StrategyAggressive},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, StrategyForRisk(tt.risk), "risk %v", tt.risk)
	}
}

func TestDefaultPresetsValid(t *testing.T) {
	require.NoError(t, DefaultPresets().Validate())
}

func TestFactorWeightsValidate(t *testing.T) {
	bad := FactorWeights{Sentiment: 0.5, Fundamental: 0.5, Momentum: 0.5, Volatility: 0.5}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	negative := FactorWeights{Sentiment: -0.1, Fundamental: 0.6, Momentum: 0.3, Volatility: 0.2}
	assert.ErrorIs(t, negative.Validate(), ErrInvalidConfig)
}

func TestTopFactorsDeterministic(t *testing.T) {
	weights := FactorWeights{Sentiment: 0.15, Fundamental: 0.40, Momentum: 0.20, Volatility: 0.25}
	assert.Equal(t, []string{"fundamental", "volatility"}, weights.TopFactors(2))

	tied := FactorWeights{Sentiment: 0.25, Fundamental: 0.25, Momentum: 0.25, Volatility: 0.25}
	assert.Equal(t, []string{"fundamental", "momentum"}, tied.TopFactors(2))
}

func TestAllocateProportional(t *testing.T) {
	stocks := []AllocationCandidate{
		{Symbol: "AAA", Score: 0.8},
		{Symbol: "BBB", Score: 0.2},
	}

	allocate(stocks, nil, 10000)

	assert.True(t, stocks[0].Allocated.Equal(decimal.NewFromInt(8000)), "got %s", stocks[0].Allocated)
	assert.True(t, stocks[1].Allocated.Equal(decimal.NewFromInt(2000)), "got %s", stocks[1].Allocated)
	assert.InDelta(t, 80, stocks[0].Percentage, 0.01)
	assert.InDelta(t, 20, stocks[1].Percentage, 0.01)
}

func TestAllocateEqualSplitOnZeroScores(t *testing.T) {
	stocks := []AllocationCandidate{
		{Symbol: "AAA", Score: 0},
		{Symbol: "BBB", Score: 0},
	}

	allocate(stocks, nil, 1000)

	assert.True(t, stocks[0].Allocated.Equal(decimal.NewFromInt(500)))
	assert.True(t, stocks[1].Allocated.Equal(decimal.NewFromInt(500)))
	assert.InDelta(t, 50, stocks[0].Percentage, 0.01)
	assert.InDelta(t, 50, stocks[1].Percentage, 0.01)
}

func TestAllocateSumsToCapital(t *testing.T) {
	stocks := []AllocationCandidate{
		{Symbol: "AAA", Score: 0.31},
		{Symbol: "BBB", Score: 0.27},
		{Symbol: "CCC", Score: 0.13},
	}
	funds := []AllocationCandidate{
		{Symbol: "FND1", Score: 0.22},
		{Symbol: "FND2", Score: 0.07},
	}

	allocate(stocks, funds, 9999.37)

	total := decimal.Zero
	var pct float64
	for _, c := range append(stocks, funds...) {
		total = total.Add(c.Allocated)
		pct += c.Percentage
	}
	assert.True(t, total.Equal(decimal.NewFromFloat(9999.37)), "got %s", total)
	assert.InDelta(t, 100, pct, 0.01)
}

func TestNormalizeDegenerateRange(t *testing.T) {
	universe := []*AllocationCandidate{
		{Symbol: "AAA", sentiment: 0.3, fundamental: 0.6, momentum: 0.1, volatility: 0.2},
		{Symbol: "BBB", sentiment: 0.3, fundamental: 0.6, momentum: 0.1, volatility: 0.2},
	}

	normalize(universe)

	// All metrics identical: direct metrics land at 0.0, inverted
	// volatility at 1.0, for every asset.
	for _, c := range universe {
		assert.Equal(t, 0.0, c.Normalized.Sentiment)
		assert.Equal(t, 0.0, c.Normalized.Fundamental)
		assert.Equal(t, 0.0, c.Normalized.Momentum)
		assert.Equal(t, 1.0, c.Normalized.Volatility)
	}
}

func TestScoreSortsDeterministically(t *testing.T) {
	universe := []*AllocationCandidate{
		{Symbol: "ZZZ", Normalized: NormalizedMetrics{Sentiment: 0.5, Fundamental: 0.5, Momentum: 0.5, Volatility: 0.5}},
		{Symbol: "AAA", Normalized: NormalizedMetrics{Sentiment: 0.5, Fundamental: 0.5, Momentum: 0.5, Volatility: 0.5}},
		{Symbol: "MMM", Normalized: NormalizedMetrics{Sentiment: 1, Fundamental: 1, Momentum: 1, Volatility: 1}},
	}

	score(universe, DefaultPresets().Balanced)

	assert.Equal(t, "MMM", universe[0].Symbol)
	// Equal scores fall back to symbol order.
	assert.Equal(t, "AAA", universe[1].Symbol)
	assert.Equal(t, "ZZZ", universe[2].Symbol)
}

func TestMonotonicityInFundamentalScore(t *testing.T) {
	weights := DefaultPresets().Balanced
	base := &AllocationCandidate{Normalized: NormalizedMetrics{Sentiment: 0.4, Fundamental: 0.3, Momentum: 0.6, Volatility: 0.5}}
	better := &AllocationCandidate{Normalized: NormalizedMetrics{Sentiment: 0.4, Fundamental: 0.9, Momentum: 0.6, Volatility: 0.5}}

	score([]*AllocationCandidate{base}, weights)
	score([]*AllocationCandidate{better}, weights)

	assert.Greater(t, better.Score, base.Score)
}

func buildTestPortfolio(t *testing.T, signals *fakeSignalRepo, assets *fakeAssetRepo, req AllocationRequest) (*AllocationResult, error) {
	t.Helper()
	builder, err := NewPortfolioBuilder(assets, signals, DefaultPresets(), newTestLogger(t))
	require.NoError(t, err)
	return builder.Build(context.Background(), req)
}

func seedSignal(repo *fakeSignalRepo, assetID uint, date time.Time, sentiment, fundamental, momentum, volatility float64) {
	repo.rows[signalKey(assetID, date)] = &entity.AssetDailySignal{
		AssetID:          assetID,
		Date:             date,
		Sentiment30D:     floatPtr(sentiment),
		FundamentalScore: floatPtr(fundamental),
		Return30D:        floatPtr(momentum),
		Return365D:       floatPtr(momentum * 4),
		Volatility:       floatPtr(volatility),
	}
}

func TestBuildPortfolio(t *testing.T) {
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	signals := newFakeSignalRepo()
	seedSignal(signals, 1, yesterday, 0.6, 0.9, 0.10, 0.10)
	seedSignal(signals, 2, yesterday, 0.1, 0.3, 0.02, 0.40)
	seedSignal(signals, 3, yesterday, 0.4, 0.5, 0.05, 0.20)
	seedSignal(signals, 4, yesterday, 0.3, 0.6, 0.04, 0.15)

	assets := &fakeAssetRepo{assets: []entity.Asset{
		{ID: 1, Symbol: "AAA", Name: "Alpha", Class: entity.AssetClassStock, IsActive: true},
		{ID: 2, Symbol: "BBB", Name: "Beta", Class: entity.AssetClassStock, IsActive: true},
		{ID: 3, Symbol: "CCC", Name: "Gamma", Class: entity.AssetClassStock, IsActive: true},
		{ID: 4, Symbol: "FND", Name: "Fund", Class: entity.AssetClassETF, IsActive: true},
	}}

	result, err := buildTestPortfolio(t, signals, assets, AllocationRequest{
		Capital:       50000,
		RiskTolerance: 0.5,
		HorizonYears:  5,
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyBalanced, result.Strategy)
	assert.Len(t, result.Stocks, 3)
	assert.Len(t, result.Funds, 1)
	assert.Equal(t, 4, result.UniverseSize)
	assert.Len(t, result.TopFactors, 2)
	assert.True(t, result.TotalAllocated.Equal(decimal.NewFromInt(50000)), "got %s", result.TotalAllocated)

	// Asset 1 dominates every factor, it must rank first among stocks.
	assert.Equal(t, "AAA", result.Stocks[0].Symbol)
	require.NotNil(t, result.Stocks[0].ExpectedReturn)
}

func TestUniverseStats(t *testing.T) {
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	signals := newFakeSignalRepo()
	seedSignal(signals, 1, yesterday, 0.6, 0.9, 0.10, 0.10)
	seedSignal(signals, 2, yesterday, 0.1, 0.3, 0.02, 0.40)
	seedSignal(signals, 3, yesterday, 0.4, 0.5, 0.05, 0.20)

	assets := &fakeAssetRepo{assets: []entity.Asset{
		{ID: 1, Symbol: "AAA", Name: "Alpha", Class: entity.AssetClassStock, IsActive: true},
		{ID: 2, Symbol: "BBB", Name: "Beta", Class: entity.AssetClassStock, IsActive: true},
		{ID: 3, Symbol: "FND", Name: "Fund", Class: entity.AssetClassETF, IsActive: true},
	}}

	builder, err := NewPortfolioBuilder(assets, signals, DefaultPresets(), newTestLogger(t))
	require.NoError(t, err)

	stats, err := builder.Universe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, 2, stats.ByClass[string(entity.AssetClassStock)])
	assert.Equal(t, 1, stats.ByClass[string(entity.AssetClassETF)])
}

func TestBuildPortfolioExclusionsAndNoCandidates(t *testing.T) {
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	signals := newFakeSignalRepo()
	seedSignal(signals, 1, yesterday, 0.5, 0.5, 0.05, 0.2)

	assets := &fakeAssetRepo{assets: []entity.Asset{
		{ID: 1, Symbol: "AAA", Name: "Alpha", Class: entity.AssetClassStock, IsActive: true},
	}}

	_, err := buildTestPortfolio(t, signals, assets, AllocationRequest{
		Capital:       1000,
		RiskTolerance: 0.2,
		HorizonYears:  1,
		Exclusions:    []string{"AAA"},
	})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestBuildPortfolioStaleSignalsExcluded(t *testing.T) {
	old := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -30)
	signals := newFakeSignalRepo()
	seedSignal(signals, 1, old, 0.5, 0.5, 0.05, 0.2)

	assets := &fakeAssetRepo{assets: []entity.Asset{
		{ID: 1, Symbol: "AAA", Name: "Alpha", Class: entity.AssetClassStock, IsActive: true},
	}}

	_, err := buildTestPortfolio(t, signals, assets, AllocationRequest{
		Capital:       1000,
		RiskTolerance: 0.2,
		HorizonYears:  1,
	})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestBuildPortfolioCryptoExcluded(t *testing.T) {
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	signals := newFakeSignalRepo()
	seedSignal(signals, 1, yesterday, 0.5, 0.5, 0.05, 0.2)
	seedSignal(signals, 2, yesterday, 0.9, 0.9, 0.20, 0.05)

	assets := &fakeAssetRepo{assets: []entity.Asset{
		{ID: 1, Symbol: "AAA", Name: "Alpha", Class: entity.AssetClassStock, IsActive: true},
		{ID: 2, Symbol: "COIN", Name: "Coin", Class: entity.AssetClassCrypto, IsActive: true},
	}}

	result, err := buildTestPortfolio(t, signals, assets, AllocationRequest{
		Capital:       1000,
		RiskTolerance: 0.9,
		HorizonYears:  2,
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyAggressive, result.Strategy)
	assert.Len(t, result.Stocks, 1)
	assert.Equal(t, "AAA", result.Stocks[0].Symbol)
	assert.Empty(t, result.Funds)
}

func TestBuildPortfolioInvalidRequest(t *testing.T) {
	signals := newFakeSignalRepo()
	assets := &fakeAssetRepo{}

	tests := []struct {
		name string
		req  AllocationRequest
	}{
		{"zero capital", AllocationRequest{Capital: 0, RiskTolerance: 0.5, HorizonYears: 1}},
		{"risk out of range", AllocationRequest{Capital: 1000, RiskTolerance: 1.5, HorizonYears: 1}},
		{"zero horizon", AllocationRequest{Capital: 1000, RiskTolerance: 0.5, HorizonYears: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildTestPortfolio(t, signals, assets, tt.req)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
