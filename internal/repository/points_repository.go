package repository

import (
	"context"

	"github.com/nehaa3012/LMS/internal/model"

	"gorm.io/gorm"
)

// PointsRepository 积分流水 + 用户积分计数器，调用方负责把两者放进同一事务
type PointsRepository struct {
	DB *gorm.DB
}

func NewPointsRepository(db *gorm.DB) *PointsRepository {
	return &PointsRepository{DB: db}
}

func (r *PointsRepository) WithTx(tx *gorm.DB) *PointsRepository {
	return &PointsRepository{DB: tx}
}

func (r *PointsRepository) Append(ctx context.Context, entry *model.PointEntry) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

func (r *PointsRepository) SumByUser(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.PointEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

func (r *PointsRepository) FindByUser(ctx context.Context, userID uint, limit int) ([]model.PointEntry, error) {
	var entries []model.PointEntry
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
