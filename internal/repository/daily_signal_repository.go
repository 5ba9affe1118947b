package repository

import (
	"context"
	"time"

	"lumia-advisor/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DailySignalRepository interface {
	GetByAssetAndDate(ctx context.Context, assetID uint, date time.Time) (*entity.AssetDailySignal, error)
	// Upsert inserts the signal or replaces the existing (asset_id, date)
	// row, keeping the original created_at.
	Upsert(ctx context.Context, signal *entity.AssetDailySignal) error
	// FindLatestPerAssetSince returns the newest signal per asset dated on
	// or after since.
	FindLatestPerAssetSince(ctx context.Context, since time.Time) ([]entity.AssetDailySignal, error)
	GetLatestDate(ctx context.Context) (*time.Time, error)
	CountDistinctAssetsSince(ctx context.Context, since time.Time) (int64, error)
}

type dailySignalRepository struct {
	db *gorm.DB
}

func NewDailySignalRepository(db *gorm.DB) DailySignalRepository {
	return &dailySignalRepository{db: db}
}

func (r *dailySignalRepository) GetByAssetAndDate(ctx context.Context, assetID uint, date time.Time) (*entity.AssetDailySignal, error) {
	var signal entity.AssetDailySignal
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND date = ?", assetID, date).
		First(&signal).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &signal, nil
}

func (r *dailySignalRepository) Upsert(ctx context.Context, signal *entity.AssetDailySignal) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"technical_score", "action", "confidence", "signals", "insufficient_data",
			"sentiment_1d", "sentiment_7d", "sentiment_30d", "article_count",
			"return_30d", "return_365d", "volatility", "fundamental_score",
			"updated_at",
		}),
	}).Create(signal).Error
}

func (r *dailySignalRepository) FindLatestPerAssetSince(ctx context.Context, since time.Time) ([]entity.AssetDailySignal, error) {
	var signals []entity.AssetDailySignal
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (asset_id) * FROM asset_daily_signals
			WHERE date >= ? ORDER BY asset_id, date DESC`, since).
		Scan(&signals).Error
	return signals, err
}

func (r *dailySignalRepository) GetLatestDate(ctx context.Context) (*time.Time, error) {
	var signal entity.AssetDailySignal
	err := r.db.WithContext(ctx).Order("date desc").First(&signal).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &signal.Date, nil
}

func (r *dailySignalRepository) CountDistinctAssetsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.AssetDailySignal{}).
		Where("date >= ?", since).
		Distinct("asset_id").
		Count(&count).Error
	return count, err
}
