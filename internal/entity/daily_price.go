package entity

import "time"

// DailyPrice is one OHLCV bar for an asset. Date is truncated to midnight UTC
// and unique per asset.
type DailyPrice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AssetID   uint      `gorm:"not null;uniqueIndex:idx_daily_prices_asset_date" json:"asset_id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_prices_asset_date" json:"date"`
	Open      float64   `gorm:"not null" json:"open"`
	High      float64   `gorm:"not null" json:"high"`
	Low       float64   `gorm:"not null" json:"low"`
	Close     float64   `gorm:"not null" json:"close"`
	Volume    int64     `gorm:"not null" json:"volume"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (DailyPrice) TableName() string {
	return "daily_prices"
}
