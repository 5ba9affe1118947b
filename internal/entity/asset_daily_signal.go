package entity

import (
	"time"

	"github.com/lib/pq"
)

// Trading actions emitted by the analysis engines.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// AssetDailySignal is the per-asset per-day output of the signal pipeline:
// the technical verdict plus the factor features the recommendation layer
// consumes. Feature columns are nullable, a nil value means the underlying
// data was unavailable on that day and is distinct from a computed zero.
type AssetDailySignal struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	AssetID uint      `gorm:"not null;uniqueIndex:idx_asset_daily_signals_asset_date" json:"asset_id"`
	Date    time.Time `gorm:"type:date;not null;uniqueIndex:idx_asset_daily_signals_asset_date" json:"date"`

	TechnicalScore   float64        `gorm:"not null" json:"technical_score"`
	Action           string         `gorm:"not null" json:"action"`
	Confidence       float64        `gorm:"not null" json:"confidence"`
	Signals          pq.StringArray `gorm:"type:text[]" json:"signals"`
	InsufficientData bool           `gorm:"not null;default:false" json:"insufficient_data"`

	Sentiment1D      *float64 `json:"sentiment_1d"`
	Sentiment7D      *float64 `json:"sentiment_7d"`
	Sentiment30D     *float64 `json:"sentiment_30d"`
	ArticleCount     int      `gorm:"not null;default:0" json:"article_count"`
	Return30D        *float64 `json:"return_30d"`
	Return365D       *float64 `json:"return_365d"`
	Volatility       *float64 `json:"volatility"`
	FundamentalScore *float64 `json:"fundamental_score"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (AssetDailySignal) TableName() string {
	return "asset_daily_signals"
}
