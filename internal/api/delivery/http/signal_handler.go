package http

import (
	"net/http"
	"time"

	"lumia-advisor/internal/api/dto"
	"lumia-advisor/internal/engine"
	"lumia-advisor/internal/repository"
	"lumia-advisor/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// SignalHandler triggers on-demand signal generation for one asset.
type SignalHandler struct {
	assets     repository.AssetRepository
	aggregator *engine.SignalAggregator
	validate   *validator.Validate
	logger     *logger.Logger
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(assets repository.AssetRepository, aggregator *engine.SignalAggregator, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		assets:     assets,
		aggregator: aggregator,
		validate:   validator.New(),
		logger:     log,
	}
}

// RegisterRoutes registers the signal routes to the Echo group.
func (h *SignalHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/:symbol/generate", h.GenerateSignal)
}

// GenerateSignal godoc
// @Summary Generate the daily signal for one asset
// @Description Recompute and upsert the daily signal record for a symbol and date
// @Tags signals
// @Accept  json
// @Produce  json
// @Param   symbol   path    string  true   "Asset symbol"
// @Param   request  body    dto.GenerateSignalRequest  false  "Target date, defaults to today"
// @Success 200 {object} entity.AssetDailySignal
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /signals/{symbol}/generate [post]
func (h *SignalHandler) GenerateSignal(c echo.Context) error {
	symbol := c.Param("symbol")

	var req dto.GenerateSignalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request payload"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid date, want YYYY-MM-DD"})
		}
		date = parsed
	}

	asset, err := h.assets.GetBySymbol(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Error("asset lookup failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "asset lookup failed"})
	}
	if asset == nil {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "asset not found"})
	}

	signal, err := h.aggregator.GenerateForDate(c.Request().Context(), asset.ID, date)
	if err != nil {
		h.logger.Error("signal generation failed",
			logger.StringField("symbol", symbol),
			logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "signal generation failed"})
	}

	return c.JSON(http.StatusOK, signal)
}
