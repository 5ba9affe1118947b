package http

import (
	"net/http"
	"time"

	"lumia-advisor/internal/api/dto"
	"lumia-advisor/internal/engine"
	"lumia-advisor/pkg/logger"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"
)

// AnalysisHandler serves single-asset advisory recommendations. Computed
// results are cached briefly since the underlying daily data only moves
// once per trading day.
type AnalysisHandler struct {
	advisor *engine.Advisor
	cache   *gocache.Cache
	logger  *logger.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(advisor *engine.Advisor, cacheTTL time.Duration, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		advisor: advisor,
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
		logger:  log,
	}
}

// RegisterRoutes registers the analysis routes to the Echo group.
func (h *AnalysisHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:symbol", h.AnalyzeAsset)
}

// AnalyzeAsset godoc
// @Summary Analyze a single asset
// @Description Produce a multi-factor advisory recommendation for one symbol
// @Tags analysis
// @Produce  json
// @Param   symbol        path    string  true   "Asset symbol"
// @Param   risk_profile  query   string  false  "conservative | moderate | aggressive"
// @Success 200 {object} engine.Recommendation
// @Failure 400 {object} dto.ErrorResponse
// @Router /analysis/{symbol} [get]
func (h *AnalysisHandler) AnalyzeAsset(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "symbol is required"})
	}

	profileParam := c.QueryParam("risk_profile")
	if profileParam == "" {
		profileParam = string(engine.RiskProfileModerate)
	}
	profile, err := engine.ParseRiskProfile(profileParam)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	cacheKey := symbol + "|" + string(profile)
	if cached, found := h.cache.Get(cacheKey); found {
		return c.JSON(http.StatusOK, cached)
	}

	rec := h.advisor.AnalyzeAsset(c.Request().Context(), symbol, profile)
	if rec.Marker == "" {
		h.cache.Set(cacheKey, rec, gocache.DefaultExpiration)
	}

	if rec.Marker == engine.MarkerNotFound {
		return c.JSON(http.StatusNotFound, rec)
	}
	return c.JSON(http.StatusOK, rec)
}
