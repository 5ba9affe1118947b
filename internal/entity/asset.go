package entity

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AssetClass is the closed set of tradeable instrument classes. It is stored
// as a string column but every branch point in the engines switches on it
// exhaustively rather than comparing raw strings.
type AssetClass string

const (
	AssetClassStock      AssetClass = "stock"
	AssetClassETF        AssetClass = "etf"
	AssetClassMutualFund AssetClass = "mutual_fund"
	AssetClassCrypto     AssetClass = "crypto"
)

// ParseAssetClass validates a raw class string from storage or transport.
func ParseAssetClass(s string) (AssetClass, error) {
	switch AssetClass(s) {
	case AssetClassStock, AssetClassETF, AssetClassMutualFund, AssetClassCrypto:
		return AssetClass(s), nil
	default:
		return "", fmt.Errorf("unknown asset class %q", s)
	}
}

// IsFundLike reports whether the class belongs to the pooled-fund bucket used
// in portfolio construction. Equities and crypto are not fund-like.
func (c AssetClass) IsFundLike() bool {
	switch c {
	case AssetClassETF, AssetClassMutualFund:
		return true
	case AssetClassStock, AssetClassCrypto:
		return false
	}
	return false
}

// Asset is a tradeable instrument tracked by the platform.
type Asset struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Symbol    string         `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string         `gorm:"not null" json:"name"`
	Class     AssetClass     `gorm:"column:class;not null" json:"class"`
	Sector    string         `json:"sector"`
	MarketCap int64          `json:"market_cap"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

func (Asset) TableName() string {
	return "assets"
}
