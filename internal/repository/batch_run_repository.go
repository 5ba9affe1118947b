package repository

import (
	"context"

	"lumia-advisor/internal/entity"

	"gorm.io/gorm"
)

type BatchRunRepository interface {
	Create(ctx context.Context, run *entity.SignalBatchRun) error
	Update(ctx context.Context, run *entity.SignalBatchRun) error
}

type batchRunRepository struct {
	db *gorm.DB
}

func NewBatchRunRepository(db *gorm.DB) BatchRunRepository {
	return &batchRunRepository{db: db}
}

func (r *batchRunRepository) Create(ctx context.Context, run *entity.SignalBatchRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *batchRunRepository) Update(ctx context.Context, run *entity.SignalBatchRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}
