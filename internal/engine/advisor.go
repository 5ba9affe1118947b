package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"lumia-advisor/internal/entity"
	"lumia-advisor/internal/repository"
	"lumia-advisor/pkg/logger"
)

// RiskProfile is a user's stated appetite, used to weight the risk factor.
type RiskProfile string

const (
	RiskProfileConservative RiskProfile = "conservative"
	RiskProfileModerate     RiskProfile = "moderate"
	RiskProfileAggressive   RiskProfile = "aggressive"
)

func ParseRiskProfile(s string) (RiskProfile, error) {
	switch RiskProfile(s) {
	case RiskProfileConservative, RiskProfileModerate, RiskProfileAggressive:
		return RiskProfile(s), nil
	default:
		return "", fmt.Errorf("unknown risk profile %q", s)
	}
}

// Volatility levels derived from ATR as a percent of price.
const (
	RiskLevelLow      = "low"
	RiskLevelModerate = "moderate"
	RiskLevelHigh     = "high"
)

// Advisory factor weights, must sum to 1.0.
const (
	advisorWeightTechnical   = 0.25
	advisorWeightFundamental = 0.30
	advisorWeightSentiment   = 0.25
	advisorWeightRisk        = 0.20
)

// Result markers distinguishing fallback recommendations from computed ones.
const (
	MarkerNotFound    = "not_found"
	MarkerNoPriceData = "no_price_data"
	MarkerError       = "error"
)

// ComponentScore is one advisory factor on the 0-100 scale. Fallback marks
// a neutral default emitted in place of missing input data.
type ComponentScore struct {
	Score    float64 `json:"score"`
	Fallback bool    `json:"fallback"`
}

// ComponentScores groups the four advisory factors.
type ComponentScores struct {
	Technical   ComponentScore `json:"technical"`
	Fundamental ComponentScore `json:"fundamental"`
	Sentiment   ComponentScore `json:"sentiment"`
	Risk        ComponentScore `json:"risk"`
}

// Targets holds price guidance for the recommended action. Target and
// StopLoss are nil for SELL, where the guidance is an immediate exit.
type Targets struct {
	Entry     float64  `json:"entry"`
	Target    *float64 `json:"target"`
	StopLoss  *float64 `json:"stop_loss"`
	Timeframe string   `json:"timeframe"`
}

// Recommendation is the single-asset advisory result. Marker is empty for a
// fully computed result, otherwise it names the fallback reason and every
// score is neutral with zero confidence.
type Recommendation struct {
	Symbol       string           `json:"symbol"`
	Action       string           `json:"action"`
	Confidence   float64          `json:"confidence"`
	OverallScore float64          `json:"overall_score"`
	Scores       ComponentScores  `json:"scores"`
	Technical    *TechnicalResult `json:"technical,omitempty"`
	RiskLevel    string           `json:"risk_level,omitempty"`
	Targets      *Targets         `json:"targets,omitempty"`
	Marker       string           `json:"marker,omitempty"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// Advisor combines technical, fundamental, sentiment, and risk factors into
// a single-asset recommendation weighted by the caller's risk profile.
type Advisor struct {
	assets       repository.AssetRepository
	prices       repository.DailyPriceRepository
	fundamentals repository.FundamentalRepository
	news         repository.NewsSentimentRepository
	analyzer     *TechnicalAnalyzer
	log          *logger.Logger
}

func NewAdvisor(
	assets repository.AssetRepository,
	prices repository.DailyPriceRepository,
	fundamentals repository.FundamentalRepository,
	news repository.NewsSentimentRepository,
	analyzer *TechnicalAnalyzer,
	log *logger.Logger,
) *Advisor {
	return &Advisor{
		assets:       assets,
		prices:       prices,
		fundamentals: fundamentals,
		news:         news,
		analyzer:     analyzer,
		log:          log,
	}
}

// AnalyzeAsset produces a recommendation for one symbol. Missing data and
// unexpected failures degrade to a neutral HOLD with a marker, the caller
// never sees a panic or a partial result.
func (a *Advisor) AnalyzeAsset(ctx context.Context, symbol string, profile RiskProfile) (rec *Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("recovered panic in asset analysis",
				logger.StringField("symbol", symbol),
				logger.Field("panic", r))
			rec = a.fallbackResult(symbol, MarkerError)
		}
	}()

	asset, err := a.assets.GetBySymbol(ctx, symbol)
	if err != nil {
		a.log.Error("asset lookup failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		return a.fallbackResult(symbol, MarkerError)
	}
	if asset == nil {
		return a.fallbackResult(symbol, MarkerNotFound)
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	bars, err := a.prices.FindByAssetUpTo(ctx, asset.ID, now, priceHistoryBars)
	if err != nil {
		a.log.Error("price lookup failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		return a.fallbackResult(symbol, MarkerError)
	}
	if len(bars) == 0 {
		return a.fallbackResult(symbol, MarkerNoPriceData)
	}
	currentPrice := bars[len(bars)-1].Close

	technical := a.analyzer.Analyze(bars)
	technicalScore := ComponentScore{Score: technical.Score, Fallback: technical.InsufficientData}

	fundamentalScore, err := a.scoreFundamental(ctx, asset.ID, now)
	if err != nil {
		a.log.Error("fundamental scoring failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		fundamentalScore = ComponentScore{Score: 50, Fallback: true}
	}

	sentimentScore, err := a.scoreSentiment(ctx, asset.ID, now)
	if err != nil {
		a.log.Error("sentiment scoring failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		sentimentScore = ComponentScore{Score: 50, Fallback: true}
	}

	riskLevel := volatilityLevel(technical.Values)
	riskScore := scoreRiskMatch(riskLevel, profile)

	overall := technicalScore.Score*advisorWeightTechnical +
		fundamentalScore.Score*advisorWeightFundamental +
		sentimentScore.Score*advisorWeightSentiment +
		riskScore.Score*advisorWeightRisk

	action, confidence := determineAdvisoryAction(overall, []float64{
		technicalScore.Score, fundamentalScore.Score, sentimentScore.Score, riskScore.Score,
	})

	rec = &Recommendation{
		Symbol:       symbol,
		Action:       action,
		Confidence:   confidence,
		OverallScore: overall,
		Scores: ComponentScores{
			Technical:   technicalScore,
			Fundamental: fundamentalScore,
			Sentiment:   sentimentScore,
			Risk:        riskScore,
		},
		Technical:   technical,
		RiskLevel:   riskLevel,
		Targets:     calculateTargets(currentPrice, action, overall),
		GeneratedAt: time.Now().UTC(),
	}

	a.log.Info("asset analyzed",
		logger.StringField("symbol", symbol),
		logger.StringField("action", action),
		logger.Float64Field("score", overall),
		logger.Float64Field("confidence", confidence))
	return rec
}

// scoreFundamental applies additive tiers from a base of 50 to the latest
// report. Each ratio moves the score independently and the sum is clamped
// to [0,100]. No report at all yields the neutral fallback.
func (a *Advisor) scoreFundamental(ctx context.Context, assetID uint, asOf time.Time) (ComponentScore, error) {
	fundamental, err := a.fundamentals.GetLatest(ctx, assetID, asOf)
	if err != nil {
		return ComponentScore{}, err
	}
	if fundamental == nil {
		return ComponentScore{Score: 50, Fallback: true}, nil
	}

	score := 50.0

	if fundamental.PERatio != nil {
		pe := *fundamental.PERatio
		switch {
		case pe >= 15 && pe <= 25:
			score += 15
		case pe < 15:
			score += 10
		case pe > 40:
			score -= 20
		case pe > 30:
			score -= 10
		}
	}

	if fundamental.ROE != nil {
		roe := *fundamental.ROE * 100
		switch {
		case roe < 0:
			score -= 25
		case roe < 5:
			score -= 15
		case roe < 10:
			// below average, no adjustment
		case roe < 15:
			score += 5
		case roe < 25:
			score += 12
		default:
			score += 20
		}
	}

	if fundamental.DebtToEquity != nil {
		de := *fundamental.DebtToEquity
		switch {
		case de < 0.3:
			score += 15
		case de < 0.5:
			score += 10
		case de > 5.0:
			score -= 25
		case de > 2.0:
			score -= 15
		}
	}

	if fundamental.RevenueGrowth != nil {
		growth := *fundamental.RevenueGrowth * 100
		switch {
		case growth > 20:
			score += 15
		case growth > 10:
			score += 10
		case growth > 5:
			score += 5
		case growth < -10:
			score -= 20
		case growth < 0:
			score -= 10
		}
	}

	return ComponentScore{Score: clamp(score, 0, 100)}, nil
}

// scoreSentiment maps the trailing week's mean polarity onto 0-100. The
// magnitude of the mean doubles as confidence, so a weakly positive week
// lands near 50 while a strongly positive one approaches 100.
func (a *Advisor) scoreSentiment(ctx context.Context, assetID uint, asOf time.Time) (ComponentScore, error) {
	windowEnd := asOf.AddDate(0, 0, 1)
	items, err := a.news.FindByAssetBetween(ctx, assetID, windowEnd.AddDate(0, 0, -7), windowEnd)
	if err != nil {
		return ComponentScore{}, err
	}
	if len(items) == 0 {
		return ComponentScore{Score: 50, Fallback: true}, nil
	}

	var sum float64
	for _, item := range items {
		sum += item.Score
	}
	mean := sum / float64(len(items))
	return ComponentScore{Score: clamp(50+mean*50, 0, 100)}, nil
}

func volatilityLevel(v IndicatorValues) string {
	if v.ATR == nil || v.Price <= 0 {
		return RiskLevelModerate
	}
	atrPct := *v.ATR / v.Price * 100
	switch {
	case atrPct < 2:
		return RiskLevelLow
	case atrPct < 4:
		return RiskLevelModerate
	default:
		return RiskLevelHigh
	}
}

// scoreRiskMatch grades how well the asset's volatility fits the profile.
// The table is asymmetric: conservative investors are penalized harder for
// high volatility than aggressive investors are for low.
func scoreRiskMatch(level string, profile RiskProfile) ComponentScore {
	var row map[string]float64
	switch profile {
	case RiskProfileConservative:
		row = map[string]float64{RiskLevelLow: 90, RiskLevelModerate: 60, RiskLevelHigh: 30}
	case RiskProfileModerate:
		row = map[string]float64{RiskLevelLow: 70, RiskLevelModerate: 85, RiskLevelHigh: 50}
	case RiskProfileAggressive:
		row = map[string]float64{RiskLevelLow: 50, RiskLevelModerate: 70, RiskLevelHigh: 90}
	default:
		return ComponentScore{Score: 50, Fallback: true}
	}
	score, ok := row[level]
	if !ok {
		return ComponentScore{Score: 50, Fallback: true}
	}
	return ComponentScore{Score: score}
}

// determineAdvisoryAction applies the decision thresholds. Disagreement
// between factors shows up as a variance penalty on confidence, and the
// weak bands pay an extra flat penalty on top of a steeper variance factor.
func determineAdvisoryAction(overall float64, components []float64) (string, float64) {
	variance := componentSpread(components)

	var action string
	var confidence float64
	switch {
	case overall >= 70:
		action = entity.ActionBuy
		confidence = overall - variance*0.2
	case overall >= 65:
		action = entity.ActionBuy
		confidence = overall - variance*0.3 - 5
	case overall <= 35:
		action = entity.ActionSell
		confidence = (100 - overall) - variance*0.2
	case overall <= 40:
		action = entity.ActionSell
		confidence = (100 - overall) - variance*0.3 - 5
	default:
		action = entity.ActionHold
		confidence = 100 - math.Abs(50-overall)*2 - variance*0.2
	}

	return action, clamp(confidence, 30, 95)
}

func componentSpread(components []float64) float64 {
	if len(components) == 0 {
		return 0
	}
	lo, hi := components[0], components[0]
	for _, c := range components[1:] {
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	return hi - lo
}

func calculateTargets(price float64, action string, score float64) *Targets {
	switch action {
	case entity.ActionBuy:
		upside := 0.10 + (score/100)*0.10
		target := price * (1 + upside)
		stop := price * 0.95
		return &Targets{Entry: price, Target: &target, StopLoss: &stop, Timeframe: "3-6 months"}
	case entity.ActionSell:
		return &Targets{Entry: price, Timeframe: "immediate"}
	default:
		target := price * 1.05
		stop := price * 0.95
		return &Targets{Entry: price, Target: &target, StopLoss: &stop, Timeframe: "1-3 months"}
	}
}

func (a *Advisor) fallbackResult(symbol, marker string) *Recommendation {
	neutral := ComponentScore{Score: 50, Fallback: true}
	return &Recommendation{
		Symbol:       symbol,
		Action:       entity.ActionHold,
		Confidence:   0,
		OverallScore: 50,
		Scores: ComponentScores{
			Technical:   neutral,
			Fundamental: neutral,
			Sentiment:   neutral,
			Risk:        neutral,
		},
		Marker:      marker,
		GeneratedAt: time.Now().UTC(),
	}
}
