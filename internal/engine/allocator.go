package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"lumia-advisor/internal/entity"
	"lumia-advisor/internal/repository"
	"lumia-advisor/pkg/logger"

	"github.com/shopspring/decimal"
)

// Strategy names derived from the risk tolerance breakpoints.
const (
	StrategyConservative = "conservative"
	StrategyBalanced     = "balanced"
	StrategyAggressive   = "aggressive"
)

const weightSumTolerance = 1e-9

// FactorWeights is one portfolio-construction weight vector over the four
// normalized universe metrics. Volatility is scored inverted, a higher
// weight prefers calmer assets.
type FactorWeights struct {
	Sentiment   float64 `mapstructure:"sentiment" json:"sentiment"`
	Fundamental float64 `mapstructure:"fundamental" json:"fundamental"`
	Momentum    float64 `mapstructure:"momentum" json:"momentum"`
	Volatility  float64 `mapstructure:"volatility" json:"volatility"`
}

func (w FactorWeights) Validate() error {
	sum := w.Sentiment + w.Fundamental + w.Momentum + w.Volatility
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: factor weights sum to %v, want 1.0", ErrInvalidConfig, sum)
	}
	if w.Sentiment < 0 || w.Fundamental < 0 || w.Momentum < 0 || w.Volatility < 0 {
		return fmt.Errorf("%w: factor weights must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// TopFactors returns the n heaviest factor names, ties broken by name so
// the output is stable.
func (w FactorWeights) TopFactors(n int) []string {
	type factor struct {
		name   string
		weight float64
	}
	factors := []factor{
		{"sentiment", w.Sentiment},
		{"fundamental", w.Fundamental},
		{"momentum", w.Momentum},
		{"volatility", w.Volatility},
	}
	sort.Slice(factors, func(i, j int) bool {
		if factors[i].weight != factors[j].weight {
			return factors[i].weight > factors[j].weight
		}
		return factors[i].name < factors[j].name
	})
	if n > len(factors) {
		n = len(factors)
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = factors[i].name
	}
	return names
}

// Presets maps each strategy to its weight vector.
type Presets struct {
	Conservative FactorWeights `mapstructure:"conservative" json:"conservative"`
	Balanced     FactorWeights `mapstructure:"balanced" json:"balanced"`
	Aggressive   FactorWeights `mapstructure:"aggressive" json:"aggressive"`
}

func (p Presets) Validate() error {
	if err := p.Conservative.Validate(); err != nil {
		return fmt.Errorf("conservative: %w", err)
	}
	if err := p.Balanced.Validate(); err != nil {
		return fmt.Errorf("balanced: %w", err)
	}
	if err := p.Aggressive.Validate(); err != nil {
		return fmt.Errorf("aggressive: %w", err)
	}
	return nil
}

// DefaultPresets returns the built-in strategy weight vectors.
func DefaultPresets() Presets {
	return Presets{
		Conservative: FactorWeights{Sentiment: 0.15, Fundamental: 0.40, Momentum: 0.20, Volatility: 0.25},
		Balanced:     FactorWeights{Sentiment: 0.25, Fundamental: 0.30, Momentum: 0.30, Volatility: 0.15},
		Aggressive:   FactorWeights{Sentiment: 0.35, Fundamental: 0.20, Momentum: 0.35, Volatility: 0.10},
	}
}

// StrategyForRisk maps a risk tolerance in [0,1] onto a strategy name.
func StrategyForRisk(risk float64) string {
	switch {
	case risk <= 0.33:
		return StrategyConservative
	case risk <= 0.66:
		return StrategyBalanced
	default:
		return StrategyAggressive
	}
}

// AllocationRequest is one portfolio construction call.
type AllocationRequest struct {
	Capital       float64
	RiskTolerance float64
	HorizonYears  float64
	Exclusions    []string
}

func (r AllocationRequest) Validate() error {
	if r.Capital <= 0 {
		return fmt.Errorf("%w: capital must be positive", ErrInvalidConfig)
	}
	if r.RiskTolerance < 0 || r.RiskTolerance > 1 {
		return fmt.Errorf("%w: risk tolerance must be in [0,1]", ErrInvalidConfig)
	}
	if r.HorizonYears <= 0 {
		return fmt.Errorf("%w: horizon must be positive", ErrInvalidConfig)
	}
	return nil
}

// NormalizedMetrics are the per-asset factor values after min-max rescaling
// across the universe. Volatility is already inverted here.
type NormalizedMetrics struct {
	Sentiment   float64 `json:"sentiment"`
	Fundamental float64 `json:"fundamental"`
	Momentum    float64 `json:"momentum"`
	Volatility  float64 `json:"volatility"`
}

// AllocationCandidate is one universe member, carrying raw metrics through
// scoring and, once selected, its share of the capital.
type AllocationCandidate struct {
	AssetID        uint               `json:"asset_id"`
	Symbol         string             `json:"symbol"`
	Name           string             `json:"name"`
	Class          entity.AssetClass  `json:"class"`
	ExpectedReturn *float64           `json:"expected_return"`
	Normalized     NormalizedMetrics  `json:"normalized"`
	Score          float64            `json:"score"`
	Allocated      decimal.Decimal    `json:"allocated"`
	Percentage     float64            `json:"percentage"`

	sentiment   float64
	fundamental float64
	momentum    float64
	volatility  float64
}

// AllocationResult is the full portfolio construction output.
type AllocationResult struct {
	Strategy       string                `json:"strategy"`
	Weights        FactorWeights         `json:"weights"`
	TopFactors     []string              `json:"top_factors"`
	Stocks         []AllocationCandidate `json:"stocks"`
	Funds          []AllocationCandidate `json:"funds"`
	TotalAllocated decimal.Decimal       `json:"total_allocated"`
	UniverseSize   int                   `json:"universe_size"`
	Warnings       []string              `json:"warnings,omitempty"`
	GeneratedAt    time.Time             `json:"generated_at"`
}

// PortfolioBuilder turns recent daily signals into a scored universe and a
// capital allocation across its top assets.
type PortfolioBuilder struct {
	assets  repository.AssetRepository
	signals repository.DailySignalRepository
	presets Presets
	log     *logger.Logger
}

func NewPortfolioBuilder(
	assets repository.AssetRepository,
	signals repository.DailySignalRepository,
	presets Presets,
	log *logger.Logger,
) (*PortfolioBuilder, error) {
	if err := presets.Validate(); err != nil {
		return nil, err
	}
	return &PortfolioBuilder{
		assets:  assets,
		signals: signals,
		presets: presets,
		log:     log,
	}, nil
}

// Build constructs the portfolio for one request. An empty universe after
// filtering returns ErrNoCandidates, nothing is silently allocated to zero
// assets.
func (b *PortfolioBuilder) Build(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	strategy := StrategyForRisk(req.RiskTolerance)
	weights := b.weightsFor(strategy)

	universe, err := b.buildUniverse(ctx, req.Exclusions)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		return nil, ErrNoCandidates
	}

	normalize(universe)
	score(universe, weights)

	stocks, funds := b.selectTop(universe)
	if len(stocks) == 0 && len(funds) == 0 {
		return nil, ErrNoCandidates
	}

	allocate(stocks, funds, req.Capital)

	total := decimal.Zero
	for _, c := range stocks {
		total = total.Add(c.Allocated)
	}
	for _, c := range funds {
		total = total.Add(c.Allocated)
	}

	b.log.Info("portfolio built",
		logger.StringField("strategy", strategy),
		logger.IntField("universe_size", len(universe)),
		logger.IntField("stocks", len(stocks)),
		logger.IntField("funds", len(funds)),
		logger.Float64Field("capital", req.Capital))

	return &AllocationResult{
		Strategy:       strategy,
		Weights:        weights,
		TopFactors:     weights.TopFactors(2),
		Stocks:         stocks,
		Funds:          funds,
		TotalAllocated: total,
		UniverseSize:   len(universe),
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// UniverseStats summarizes the currently eligible universe without
// allocating anything.
type UniverseStats struct {
	Size        int            `json:"size"`
	ByClass     map[string]int `json:"by_class"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Universe reports the size and class composition of the eligible universe.
func (b *PortfolioBuilder) Universe(ctx context.Context) (*UniverseStats, error) {
	universe, err := b.buildUniverse(ctx, nil)
	if err != nil {
		return nil, err
	}
	byClass := make(map[string]int)
	for _, c := range universe {
		byClass[string(c.Class)]++
	}
	return &UniverseStats{
		Size:        len(universe),
		ByClass:     byClass,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (b *PortfolioBuilder) weightsFor(strategy string) FactorWeights {
	switch strategy {
	case StrategyConservative:
		return b.presets.Conservative
	case StrategyAggressive:
		return b.presets.Aggressive
	default:
		return b.presets.Balanced
	}
}

// buildUniverse loads active eligible assets holding at least one daily
// signal in the trailing week, minus exclusions, keeping the most recent
// signal per asset.
func (b *PortfolioBuilder) buildUniverse(ctx context.Context, exclusions []string) ([]*AllocationCandidate, error) {
	refDate := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	since := refDate.AddDate(0, 0, -7)

	signals, err := b.signals.FindLatestPerAssetSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load recent signals: %w", err)
	}
	if len(signals) == 0 {
		return nil, nil
	}

	assetIDs := make([]uint, 0, len(signals))
	signalByAsset := make(map[uint]*entity.AssetDailySignal, len(signals))
	for i := range signals {
		assetIDs = append(assetIDs, signals[i].AssetID)
		signalByAsset[signals[i].AssetID] = &signals[i]
	}

	assets, err := b.assets.GetByIDs(ctx, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("load universe assets: %w", err)
	}

	excluded := make(map[string]bool, len(exclusions))
	for _, symbol := range exclusions {
		excluded[symbol] = true
	}

	var universe []*AllocationCandidate
	for _, asset := range assets {
		if !asset.IsActive || excluded[asset.Symbol] {
			continue
		}
		switch asset.Class {
		case entity.AssetClassStock, entity.AssetClassETF, entity.AssetClassMutualFund:
		case entity.AssetClassCrypto:
			continue
		default:
			continue
		}

		signal := signalByAsset[asset.ID]
		candidate := &AllocationCandidate{
			AssetID:        asset.ID,
			Symbol:         asset.Symbol,
			Name:           asset.Name,
			Class:          asset.Class,
			ExpectedReturn: expectedReturn(signal),
			sentiment:      floatOr(signal.Sentiment30D, 0.0),
			fundamental:    floatOr(signal.FundamentalScore, 0.5),
			momentum:       floatOr(signal.Return30D, 0.0),
			volatility:     floatOr(signal.Volatility, 0.2),
		}
		universe = append(universe, candidate)
	}

	b.log.Debug("universe built", logger.IntField("size", len(universe)))
	return universe, nil
}

// expectedReturn blends annual return, monthly return, and monthly
// sentiment. A missing source drops its term instead of contributing zero;
// all three missing means no estimate at all.
func expectedReturn(signal *entity.AssetDailySignal) *float64 {
	if signal.Return365D == nil && signal.Return30D == nil && signal.Sentiment30D == nil {
		return nil
	}
	var er float64
	if signal.Return365D != nil {
		er += *signal.Return365D * 0.6
	}
	if signal.Return30D != nil {
		er += *signal.Return30D * 0.3
	}
	if signal.Sentiment30D != nil {
		er += *signal.Sentiment30D * 0.1
	}
	return &er
}

// normalize min-max rescales each metric across the universe into [0,1],
// inverting volatility so calm assets score high. A degenerate metric
// (min == max) keeps a divisor of 1.0, which lands every asset at 0.0
// direct and 1.0 inverted.
func normalize(universe []*AllocationCandidate) {
	if len(universe) == 0 {
		return
	}

	minSent, maxSent := metricRange(universe, func(c *AllocationCandidate) float64 { return c.sentiment })
	minFund, maxFund := metricRange(universe, func(c *AllocationCandidate) float64 { return c.fundamental })
	minMom, maxMom := metricRange(universe, func(c *AllocationCandidate) float64 { return c.momentum })
	minVol, maxVol := metricRange(universe, func(c *AllocationCandidate) float64 { return c.volatility })

	sentRange := rangeOrOne(minSent, maxSent)
	fundRange := rangeOrOne(minFund, maxFund)
	momRange := rangeOrOne(minMom, maxMom)
	volRange := rangeOrOne(minVol, maxVol)

	for _, c := range universe {
		c.Normalized = NormalizedMetrics{
			Sentiment:   (c.sentiment - minSent) / sentRange,
			Fundamental: (c.fundamental - minFund) / fundRange,
			Momentum:    (c.momentum - minMom) / momRange,
			Volatility:  1.0 - (c.volatility-minVol)/volRange,
		}
	}
}

func score(universe []*AllocationCandidate, weights FactorWeights) {
	for _, c := range universe {
		c.Score = weights.Sentiment*c.Normalized.Sentiment +
			weights.Fundamental*c.Normalized.Fundamental +
			weights.Momentum*c.Normalized.Momentum +
			weights.Volatility*c.Normalized.Volatility
	}
	// Symbol order as secondary key keeps equal-scored runs deterministic.
	sort.Slice(universe, func(i, j int) bool {
		if universe[i].Score != universe[j].Score {
			return universe[i].Score > universe[j].Score
		}
		return universe[i].Symbol < universe[j].Symbol
	})
}

// selectTop partitions the scored universe into equities and fund-likes and
// keeps the top three equities and top two funds.
func (b *PortfolioBuilder) selectTop(universe []*AllocationCandidate) ([]AllocationCandidate, []AllocationCandidate) {
	var stocks, funds []AllocationCandidate
	for _, c := range universe {
		if c.Class.IsFundLike() {
			if len(funds) < 2 {
				funds = append(funds, *c)
			}
		} else {
			if len(stocks) < 3 {
				stocks = append(stocks, *c)
			}
		}
	}
	return stocks, funds
}

// allocate distributes capital across the selected assets proportionally to
// score, or equally when every score is zero. Cent-level rounding drift is
// folded into the last asset so the total always equals the capital.
func allocate(stocks, funds []AllocationCandidate, capital float64) {
	selected := make([]*AllocationCandidate, 0, len(stocks)+len(funds))
	for i := range stocks {
		selected = append(selected, &stocks[i])
	}
	for i := range funds {
		selected = append(selected, &funds[i])
	}
	if len(selected) == 0 {
		return
	}

	capitalDec := decimal.NewFromFloat(capital).Round(2)

	var totalScore float64
	for _, c := range selected {
		totalScore += c.Score
	}

	remaining := capitalDec
	for i, c := range selected {
		var share decimal.Decimal
		if i == len(selected)-1 {
			share = remaining
		} else if totalScore == 0 {
			share = capitalDec.Div(decimal.NewFromInt(int64(len(selected)))).Round(2)
		} else {
			share = capitalDec.Mul(decimal.NewFromFloat(c.Score / totalScore)).Round(2)
		}
		c.Allocated = share
		pct, _ := share.Div(capitalDec).Mul(decimal.NewFromInt(100)).Float64()
		c.Percentage = pct
		remaining = remaining.Sub(share)
	}
}

func metricRange(universe []*AllocationCandidate, get func(*AllocationCandidate) float64) (float64, float64) {
	lo, hi := get(universe[0]), get(universe[0])
	for _, c := range universe[1:] {
		v := get(c)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func rangeOrOne(lo, hi float64) float64 {
	if hi == lo {
		return 1.0
	}
	return hi - lo
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
