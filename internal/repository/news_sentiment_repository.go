package repository

import (
	"context"
	"time"

	"lumia-advisor/internal/entity"

	"gorm.io/gorm"
)

type NewsSentimentRepository interface {
	// FindByAssetBetween returns articles published in [from, to), newest
	// first.
	FindByAssetBetween(ctx context.Context, assetID uint, from, to time.Time) ([]entity.NewsSentiment, error)
}

type newsSentimentRepository struct {
	db *gorm.DB
}

func NewNewsSentimentRepository(db *gorm.DB) NewsSentimentRepository {
	return &newsSentimentRepository{db: db}
}

func (r *newsSentimentRepository) FindByAssetBetween(ctx context.Context, assetID uint, from, to time.Time) ([]entity.NewsSentiment, error) {
	var items []entity.NewsSentiment
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND published_at >= ? AND published_at < ?", assetID, from, to).
		Order("published_at desc").
		Find(&items).Error
	return items, err
}
