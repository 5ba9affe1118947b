package entity

import "time"

// NewsSentiment is one scored news article attributed to an asset.
// Score ranges [-1, 1], negative is bearish.
type NewsSentiment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AssetID     uint      `gorm:"not null;index:idx_news_sentiments_asset_published" json:"asset_id"`
	PublishedAt time.Time `gorm:"not null;index:idx_news_sentiments_asset_published" json:"published_at"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Score       float64   `gorm:"not null" json:"score"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Asset *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (NewsSentiment) TableName() string {
	return "news_sentiments"
}
