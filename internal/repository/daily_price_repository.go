package repository

import (
	"context"
	"time"

	"lumia-advisor/internal/entity"

	"gorm.io/gorm"
)

type DailyPriceRepository interface {
	// FindByAssetUpTo returns at most limit bars dated on or before date,
	// ordered oldest first.
	FindByAssetUpTo(ctx context.Context, assetID uint, date time.Time, limit int) ([]entity.DailyPrice, error)
	GetLatestDate(ctx context.Context) (*time.Time, error)
}

type dailyPriceRepository struct {
	db *gorm.DB
}

func NewDailyPriceRepository(db *gorm.DB) DailyPriceRepository {
	return &dailyPriceRepository{db: db}
}

func (r *dailyPriceRepository) FindByAssetUpTo(ctx context.Context, assetID uint, date time.Time, limit int) ([]entity.DailyPrice, error) {
	var prices []entity.DailyPrice
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND date <= ?", assetID, date).
		Order("date desc").
		Limit(limit).
		Find(&prices).Error
	if err != nil {
		return nil, err
	}
	// Query reads newest first so the limit trims history, callers want
	// chronological order.
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
	return prices, nil
}

func (r *dailyPriceRepository) GetLatestDate(ctx context.Context) (*time.Time, error) {
	var price entity.DailyPrice
	err := r.db.WithContext(ctx).Order("date desc").First(&price).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &price.Date, nil
}
