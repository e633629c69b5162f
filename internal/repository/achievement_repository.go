package repository

import (
	"context"
	"time"

	"github.com/nehaa3012/LMS/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) WithTx(tx *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: tx}
}

func (r *AchievementRepository) FindAll(ctx context.Context) ([]model.Achievement, error) {
	var achievements []model.Achievement
	err := r.DB.WithContext(ctx).Order("threshold ASC").Order("id ASC").Find(&achievements).Error
	return achievements, err
}

// UpsertCatalog 按 key 同步成就目录
func (r *AchievementRepository) UpsertCatalog(ctx context.Context, achievements []model.Achievement) error {
	if len(achievements) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon", "condition", "threshold", "points_reward", "updated_at"}),
	}).Create(&achievements).Error
}

func (r *AchievementRepository) FindUnlocked(ctx context.Context, userID uint) ([]model.UserAchievement, error) {
	var unlocked []model.UserAchievement
	err := r.DB.WithContext(ctx).
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at ASC").
		Order("id ASC").
		Find(&unlocked).Error
	return unlocked, err
}

func (r *AchievementRepository) FindUnlockedIDs(ctx context.Context, userID uint) (map[uint]bool, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// Unlock 依赖唯一索引保证幂等，created 为 false 表示已解锁过
func (r *AchievementRepository) Unlock(ctx context.Context, userID, achievementID uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserAchievement{
			UserID:        userID,
			AchievementID: achievementID,
			UnlockedAt:    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
