package repository

import (
	"context"
	"time"

	"lumia-advisor/internal/entity"

	"gorm.io/gorm"
)

type FundamentalRepository interface {
	// GetLatest returns the most recent report dated on or before asOf, or
	// nil when the asset has never reported.
	GetLatest(ctx context.Context, assetID uint, asOf time.Time) (*entity.QuarterlyFundamental, error)
}

type fundamentalRepository struct {
	db *gorm.DB
}

func NewFundamentalRepository(db *gorm.DB) FundamentalRepository {
	return &fundamentalRepository{db: db}
}

func (r *fundamentalRepository) GetLatest(ctx context.Context, assetID uint, asOf time.Time) (*entity.QuarterlyFundamental, error) {
	var fundamental entity.QuarterlyFundamental
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND report_date <= ?", assetID, asOf).
		Order("report_date desc").
		First(&fundamental).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &fundamental, nil
}
