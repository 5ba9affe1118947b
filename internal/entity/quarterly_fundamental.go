package entity

import "time"

// QuarterlyFundamental holds one reporting period of fundamental ratios for
// an asset. Any ratio may be absent, fund-like assets usually report none.
type QuarterlyFundamental struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AssetID       uint      `gorm:"not null;index" json:"asset_id"`
	ReportDate    time.Time `gorm:"type:date;not null;index" json:"report_date"`
	PERatio       *float64  `json:"pe_ratio"`
	ROE           *float64  `json:"roe"`
	DebtToEquity  *float64  `json:"debt_to_equity"`
	RevenueGrowth *float64  `json:"revenue_growth"`
	EPS           *float64  `json:"eps"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (QuarterlyFundamental) TableName() string {
	return "quarterly_fundamentals"
}
