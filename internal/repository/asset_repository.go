package repository

import (
	"context"

	"lumia-advisor/internal/entity"

	"gorm.io/gorm"
)

type AssetRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*entity.Asset, error)
	GetByIDs(ctx context.Context, ids []uint) ([]entity.Asset, error)
	FindActive(ctx context.Context) ([]entity.Asset, error)
}

type assetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) GetBySymbol(ctx context.Context, symbol string) (*entity.Asset, error) {
	var asset entity.Asset
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&asset).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) GetByIDs(ctx context.Context, ids []uint) ([]entity.Asset, error) {
	var assets []entity.Asset
	if len(ids) == 0 {
		return assets, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&assets).Error
	return assets, err
}

func (r *assetRepository) FindActive(ctx context.Context) ([]entity.Asset, error) {
	var assets []entity.Asset
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("symbol asc").Find(&assets).Error
	return assets, err
}
