package http

import (
	"errors"
	"net/http"

	"lumia-advisor/internal/api/dto"
	"lumia-advisor/internal/engine"
	"lumia-advisor/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RecommendationHandler serves portfolio construction requests.
type RecommendationHandler struct {
	builder   *engine.PortfolioBuilder
	freshness *engine.FreshnessChecker
	validate  *validator.Validate
	logger    *logger.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(builder *engine.PortfolioBuilder, freshness *engine.FreshnessChecker, log *logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		builder:   builder,
		freshness: freshness,
		validate:  validator.New(),
		logger:    log,
	}
}

// RegisterRoutes registers the recommendation routes to the Echo group.
func (h *RecommendationHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.BuildRecommendation)
	g.GET("/universe", h.Universe)
	g.GET("/health", h.Health)
}

// BuildRecommendation godoc
// @Summary Build a portfolio recommendation
// @Description Allocate capital across the top scoring assets in the current universe
// @Tags recommendations
// @Accept  json
// @Produce  json
// @Param   request  body    dto.RecommendationRequest  true  "Allocation request"
// @Success 200 {object} dto.RecommendationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /recommendations [post]
func (h *RecommendationHandler) BuildRecommendation(c echo.Context) error {
	var req dto.RecommendationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request payload"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	result, err := h.builder.Build(c.Request().Context(), engine.AllocationRequest{
		Capital:       req.Capital,
		RiskTolerance: req.Risk,
		HorizonYears:  req.HorizonYears,
		Exclusions:    req.Exclusions,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNoCandidates):
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, engine.ErrInvalidConfig):
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		default:
			h.logger.Error("portfolio build failed", logger.ErrorField(err))
			return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "portfolio build failed"})
		}
	}

	// Staleness is a warning, never a reason to refuse the allocation.
	if status, err := h.freshness.Check(c.Request().Context()); err != nil {
		h.logger.Error("freshness check failed", logger.ErrorField(err))
	} else {
		result.Warnings = append(result.Warnings, status.Warnings...)
	}

	return c.JSON(http.StatusOK, dto.NewRecommendationResponse(result))
}

// Universe godoc
// @Summary Current recommendation universe
// @Description Report the size and class composition of the eligible universe
// @Tags recommendations
// @Produce  json
// @Success 200 {object} engine.UniverseStats
// @Failure 500 {object} dto.ErrorResponse
// @Router /recommendations/universe [get]
func (h *RecommendationHandler) Universe(c echo.Context) error {
	stats, err := h.builder.Universe(c.Request().Context())
	if err != nil {
		h.logger.Error("universe stats failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "universe stats failed"})
	}
	return c.JSON(http.StatusOK, stats)
}

// Health godoc
// @Summary Recommendation system health
// @Description Report data freshness for the recommendation pipeline
// @Tags recommendations
// @Produce  json
// @Success 200 {object} dto.HealthResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /recommendations/health [get]
func (h *RecommendationHandler) Health(c echo.Context) error {
	status, err := h.freshness.Check(c.Request().Context())
	if err != nil {
		h.logger.Error("freshness check failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "health check failed"})
	}

	health := "healthy"
	if !status.IsFresh {
		health = "degraded"
	}
	return c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    health,
		Timestamp: status.CheckedAt.Format("2006-01-02T15:04:05Z07:00"),
		Freshness: status,
	})
}
