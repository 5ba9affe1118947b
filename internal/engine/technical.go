package engine

import (
	"math"

	"lumia-advisor/internal/entity"

	"github.com/markcheno/go-talib"
)

// MinBars is the minimum price history required before the analyzer
// produces a computed result instead of the neutral fallback.
const MinBars = 50

// Category weights, must sum to 1.0.
const (
	weightMomentum   = 0.35
	weightTrend      = 0.35
	weightVolatility = 0.20
	weightVolume     = 0.10
)

// Discrete patterns the analyzer can detect.
const (
	SignalGoldenCross   = "golden_cross"
	SignalDeathCross    = "death_cross"
	SignalMACDBullish   = "macd_bullish"
	SignalMACDBearish   = "macd_bearish"
	SignalRSIOversold   = "rsi_oversold"
	SignalRSIOverbought = "rsi_overbought"
	SignalBBOversold    = "bb_oversold"
	SignalBBOverbought  = "bb_overbought"
)

// CategoryScore is one technical family's aggregate. Fallback is true when
// no indicator in the family produced a value and the neutral 50 was used,
// so callers can tell a defaulted 50 from a computed one.
type CategoryScore struct {
	Score    float64 `json:"score"`
	Fallback bool    `json:"fallback"`
}

// CategoryScores holds the four technical families.
type CategoryScores struct {
	Momentum   CategoryScore `json:"momentum"`
	Trend      CategoryScore `json:"trend"`
	Volatility CategoryScore `json:"volatility"`
	Volume     CategoryScore `json:"volume"`
}

// IndicatorValues carries the latest raw indicator readings. A nil pointer
// means the indicator could not be computed from the given history.
type IndicatorValues struct {
	Price      float64  `json:"price"`
	Volume     int64    `json:"volume"`
	RSI        *float64 `json:"rsi"`
	StochK     *float64 `json:"stoch_k"`
	Momentum   *float64 `json:"momentum"`
	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macd_signal"`
	SMA20      *float64 `json:"sma_20"`
	SMA50      *float64 `json:"sma_50"`
	SMA200     *float64 `json:"sma_200"`
	ADX        *float64 `json:"adx"`
	BBUpper    *float64 `json:"bb_upper"`
	BBMiddle   *float64 `json:"bb_middle"`
	BBLower    *float64 `json:"bb_lower"`
	ATR        *float64 `json:"atr"`
	OBV        *float64 `json:"obv"`
	MFI        *float64 `json:"mfi"`
}

// TechnicalResult is the full output of one analysis pass.
type TechnicalResult struct {
	Score            float64            `json:"score"`
	Action           string             `json:"action"`
	Confidence       float64            `json:"confidence"`
	Categories       CategoryScores     `json:"categories"`
	IndicatorScores  map[string]float64 `json:"indicator_scores"`
	Values           IndicatorValues    `json:"values"`
	Signals          []string           `json:"signals"`
	InsufficientData bool               `json:"insufficient_data"`
}

// TechnicalAnalyzer scores an ordered price-bar sequence across momentum,
// trend, volatility, and volume families. It is a pure computation, the
// same bars always produce the same result.
type TechnicalAnalyzer struct{}

func NewTechnicalAnalyzer() *TechnicalAnalyzer {
	return &TechnicalAnalyzer{}
}

// Analyze computes the technical reading for bars ordered oldest first.
// Fewer than MinBars bars yields the neutral fallback result, never an
// error. Individual indicator failures are dropped from their category
// mean rather than aborting the pass.
func (a *TechnicalAnalyzer) Analyze(bars []entity.DailyPrice) *TechnicalResult {
	if len(bars) < MinBars {
		return a.insufficientDataResult()
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = float64(b.Volume)
		if highs[i] == 0 {
			highs[i] = b.Close
		}
		if lows[i] == 0 {
			lows[i] = b.Close
		}
	}

	values := a.computeIndicators(closes, highs, lows, volumes)
	values.Price = closes[len(closes)-1]
	values.Volume = bars[len(bars)-1].Volume

	scores := make(map[string]float64)
	momentum := a.scoreMomentum(values, scores)
	trend := a.scoreTrend(values, scores)
	volatility := a.scoreVolatility(values, scores)
	volume := a.scoreVolume(values, scores)

	overall := momentum.Score*weightMomentum +
		trend.Score*weightTrend +
		volatility.Score*weightVolatility +
		volume.Score*weightVolume

	action, confidence := a.determineAction(overall)

	return &TechnicalResult{
		Score:      overall,
		Action:     action,
		Confidence: confidence,
		Categories: CategoryScores{
			Momentum:   momentum,
			Trend:      trend,
			Volatility: volatility,
			Volume:     volume,
		},
		IndicatorScores: scores,
		Values:          values,
		Signals:         a.detectSignals(values),
	}
}

func (a *TechnicalAnalyzer) computeIndicators(closes, highs, lows, volumes []float64) IndicatorValues {
	var v IndicatorValues
	n := len(closes)

	v.RSI = lastValid(talib.Rsi(closes, 14))
	if n >= 14 {
		stochK, _ := talib.Stoch(highs, lows, closes, 5, 3, talib.SMA, 3, talib.SMA)
		v.StochK = lastValid(stochK)
	}
	v.Momentum = lastValid(talib.Mom(closes, 10))

	macd, macdSignal, _ := talib.Macd(closes, 12, 26, 9)
	v.MACD = lastValid(macd)
	v.MACDSignal = lastValid(macdSignal)

	v.SMA20 = lastValid(talib.Sma(closes, 20))
	v.SMA50 = lastValid(talib.Sma(closes, 50))
	if n >= 200 {
		v.SMA200 = lastValid(talib.Sma(closes, 200))
	}
	if n >= 28 {
		v.ADX = lastValid(talib.Adx(highs, lows, closes, 14))
	}

	bbUpper, bbMiddle, bbLower := talib.BBands(closes, 5, 2.0, 2.0, talib.SMA)
	v.BBUpper = lastValid(bbUpper)
	v.BBMiddle = lastValid(bbMiddle)
	v.BBLower = lastValid(bbLower)

	v.ATR = lastValid(talib.Atr(highs, lows, closes, 14))
	v.OBV = lastValid(talib.Obv(closes, volumes))
	v.MFI = lastValid(talib.Mfi(highs, lows, closes, volumes, 14))

	return v
}

func (a *TechnicalAnalyzer) scoreMomentum(v IndicatorValues, out map[string]float64) CategoryScore {
	var scores []float64

	if v.RSI != nil {
		rsi := *v.RSI
		var score float64
		switch {
		case rsi < 30:
			score = 80 // oversold
		case rsi > 70:
			score = 20 // overbought
		default:
			score = 50 + (rsi-50)*0.5
		}
		out["rsi"] = score
		scores = append(scores, score)
	}

	if v.StochK != nil {
		k := *v.StochK
		var score float64
		switch {
		case k < 20:
			score = 80
		case k > 80:
			score = 20
		default:
			score = 50 + (k-50)*0.5
		}
		out["stochastic"] = score
		scores = append(scores, score)
	}

	if v.Momentum != nil {
		score := clamp(50+*v.Momentum*5, 0, 100)
		out["momentum"] = score
		scores = append(scores, score)
	}

	return categoryMean(scores)
}

func (a *TechnicalAnalyzer) scoreTrend(v IndicatorValues, out map[string]float64) CategoryScore {
	var scores []float64

	if v.MACD != nil && v.MACDSignal != nil {
		diff := math.Abs(*v.MACD - *v.MACDSignal)
		var score float64
		if *v.MACD > *v.MACDSignal {
			score = 70 + math.Min(30, diff*10)
		} else {
			score = 30 - math.Min(30, diff*10)
		}
		out["macd"] = score
		scores = append(scores, score)
	}

	if v.SMA50 != nil && v.Price > 0 {
		var score float64
		switch {
		case v.SMA200 != nil && *v.SMA50 > *v.SMA200:
			if v.Price > *v.SMA50 {
				score = 90
			} else {
				score = 70
			}
		case v.SMA200 != nil && *v.SMA50 < *v.SMA200:
			if v.Price < *v.SMA50 {
				score = 10
			} else {
				score = 30
			}
		default:
			score = clamp(50+(v.Price-*v.SMA50)/(*v.SMA50)*100, 0, 100)
		}
		out["sma"] = score
		scores = append(scores, score)
	}

	if v.ADX != nil {
		adx := *v.ADX
		var score float64
		if adx > 25 {
			score = math.Min(100, 50+adx)
		} else {
			score = adx * 2
		}
		out["adx"] = score
		scores = append(scores, score)
	}

	return categoryMean(scores)
}

func (a *TechnicalAnalyzer) scoreVolatility(v IndicatorValues, out map[string]float64) CategoryScore {
	var scores []float64

	if v.BBUpper != nil && v.BBLower != nil && v.BBMiddle != nil && v.Price > 0 {
		var score float64
		switch {
		case v.Price >= *v.BBUpper:
			score = 20
		case v.Price <= *v.BBLower:
			score = 80
		default:
			position := (v.Price - *v.BBLower) / (*v.BBUpper - *v.BBLower)
			score = 80 - position*60
		}
		out["bollinger"] = score
		scores = append(scores, score)
	}

	if v.ATR != nil && v.Price > 0 {
		atrPct := *v.ATR / v.Price * 100
		var score float64
		switch {
		case atrPct < 2:
			score = 80
		case atrPct > 5:
			score = 40
		default:
			score = 80 - (atrPct-2)*13
		}
		out["atr"] = score
		scores = append(scores, score)
	}

	return categoryMean(scores)
}

func (a *TechnicalAnalyzer) scoreVolume(v IndicatorValues, out map[string]float64) CategoryScore {
	var scores []float64

	if v.OBV != nil {
		// Flat heuristic, a real OBV slope comparison needs a reference
		// window the daily snapshot does not keep.
		score := 60.0
		out["obv"] = score
		scores = append(scores, score)
	}

	if v.MFI != nil {
		mfi := *v.MFI
		var score float64
		switch {
		case mfi < 20:
			score = 80
		case mfi > 80:
			score = 20
		default:
			score = 50 + (mfi-50)*0.5
		}
		out["mfi"] = score
		scores = append(scores, score)
	}

	return categoryMean(scores)
}

func (a *TechnicalAnalyzer) determineAction(score float64) (string, float64) {
	switch {
	case score >= 70:
		return entity.ActionBuy, score
	case score >= 55:
		return entity.ActionBuy, score - 10
	case score <= 30:
		return entity.ActionSell, 100 - score
	case score <= 45:
		return entity.ActionSell, 55 - score
	default:
		return entity.ActionHold, 100 - math.Abs(50-score)*2
	}
}

func (a *TechnicalAnalyzer) detectSignals(v IndicatorValues) []string {
	signals := []string{}

	if v.SMA50 != nil && v.SMA200 != nil {
		if *v.SMA50 > *v.SMA200*1.01 {
			signals = append(signals, SignalGoldenCross)
		} else if *v.SMA50 < *v.SMA200*0.99 {
			signals = append(signals, SignalDeathCross)
		}
	}

	if v.MACD != nil && v.MACDSignal != nil {
		if *v.MACD > *v.MACDSignal {
			signals = append(signals, SignalMACDBullish)
		} else {
			signals = append(signals, SignalMACDBearish)
		}
	}

	if v.RSI != nil {
		if *v.RSI < 30 {
			signals = append(signals, SignalRSIOversold)
		} else if *v.RSI > 70 {
			signals = append(signals, SignalRSIOverbought)
		}
	}

	if v.BBUpper != nil && v.BBLower != nil && v.Price > 0 {
		if v.Price >= *v.BBUpper {
			signals = append(signals, SignalBBOverbought)
		} else if v.Price <= *v.BBLower {
			signals = append(signals, SignalBBOversold)
		}
	}

	return signals
}

func (a *TechnicalAnalyzer) insufficientDataResult() *TechnicalResult {
	neutral := CategoryScore{Score: 50, Fallback: true}
	return &TechnicalResult{
		Score:      50,
		Action:     entity.ActionHold,
		Confidence: 0,
		Categories: CategoryScores{
			Momentum:   neutral,
			Trend:      neutral,
			Volatility: neutral,
			Volume:     neutral,
		},
		IndicatorScores:  map[string]float64{},
		Signals:          []string{},
		InsufficientData: true,
	}
}

func categoryMean(scores []float64) CategoryScore {
	if len(scores) == 0 {
		return CategoryScore{Score: 50, Fallback: true}
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return CategoryScore{Score: sum / float64(len(scores))}
}

// lastValid returns the final element of a ta-lib output series, or nil when
// the series is empty, still inside its lookback warmup, or not finite.
func lastValid(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	last := series[len(series)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		return nil
	}
	return &last
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
