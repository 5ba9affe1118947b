package dto

import (
	"lumia-advisor/internal/engine"

	"github.com/shopspring/decimal"
)

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AnalysisRequest carries the optional query parameters of an analysis call.
type AnalysisRequest struct {
	RiskProfile string `query:"risk_profile" validate:"omitempty,oneof=conservative moderate aggressive"`
}

// RecommendationRequest is the portfolio construction payload.
type RecommendationRequest struct {
	Capital      float64  `json:"capital" validate:"required,gt=0"`
	Risk         float64  `json:"risk" validate:"gte=0,lte=1"`
	HorizonYears float64  `json:"horizon_years" validate:"required,gt=0"`
	Exclusions   []string `json:"exclusions" validate:"omitempty,dive,required"`
}

// AssetAllocation is one line of the allocation breakdown.
type AssetAllocation struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Class          string          `json:"class"`
	Allocated      decimal.Decimal `json:"allocated"`
	Percentage     float64         `json:"percentage"`
	Score          float64         `json:"score"`
	ExpectedReturn *float64        `json:"expected_return,omitempty"`
}

// RecommendationResponse is the portfolio construction result.
type RecommendationResponse struct {
	Strategy       string            `json:"strategy"`
	TopFactors     []string          `json:"top_factors"`
	Stocks         []AssetAllocation `json:"stocks"`
	Funds          []AssetAllocation `json:"funds"`
	TotalAllocated decimal.Decimal   `json:"total_allocated"`
	UniverseSize   int               `json:"universe_size"`
	Warnings       []string          `json:"warnings,omitempty"`
	GeneratedAt    string            `json:"generated_at"`
}

// NewRecommendationResponse maps an engine allocation result onto the wire
// shape.
func NewRecommendationResponse(result *engine.AllocationResult) *RecommendationResponse {
	resp := &RecommendationResponse{
		Strategy:       result.Strategy,
		TopFactors:     result.TopFactors,
		Stocks:         make([]AssetAllocation, 0, len(result.Stocks)),
		Funds:          make([]AssetAllocation, 0, len(result.Funds)),
		TotalAllocated: result.TotalAllocated,
		UniverseSize:   result.UniverseSize,
		Warnings:       result.Warnings,
		GeneratedAt:    result.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, c := range result.Stocks {
		resp.Stocks = append(resp.Stocks, newAssetAllocation(c))
	}
	for _, c := range result.Funds {
		resp.Funds = append(resp.Funds, newAssetAllocation(c))
	}
	return resp
}

func newAssetAllocation(c engine.AllocationCandidate) AssetAllocation {
	return AssetAllocation{
		Symbol:         c.Symbol,
		Name:           c.Name,
		Class:          string(c.Class),
		Allocated:      c.Allocated,
		Percentage:     c.Percentage,
		Score:          c.Score,
		ExpectedReturn: c.ExpectedReturn,
	}
}

// GenerateSignalRequest triggers signal generation for one symbol.
type GenerateSignalRequest struct {
	Date string `json:"date" query:"date" validate:"omitempty,datetime=2006-01-02"`
}

// HealthResponse reports service and data health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Timestamp string                  `json:"timestamp"`
	Freshness *engine.FreshnessStatus `json:"data_freshness,omitempty"`
}
