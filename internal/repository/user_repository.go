package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{DB: tx}
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "user", id)
	}
	return &user, nil
}

func (r *UserRepository) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, translate(err, "user", externalID)
	}
	return &user, nil
}

// UpsertByExternalID 按外部 ID 同步资料，积分和连续天数不受影响
func (r *UserRepository) UpsertByExternalID(ctx context.Context, user *model.User) (*model.User, error) {
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "image_url", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.FindByExternalID(ctx, user.ExternalID)
}

// IncrementPoints 原子递增，不做 读-算-写
func (r *UserRepository) IncrementPoints(ctx context.Context, userID uint, amount int) error {
	res := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("points", gorm.Expr("points + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", util.ErrNotFound, userID)
	}
	return nil
}

// FindForUpdate 在事务内锁定用户行（sqlite 忽略锁子句）
func (r *UserRepository) FindForUpdate(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, userID).Error
	if err != nil {
		return nil, translate(err, "user", userID)
	}
	return &user, nil
}

func (r *UserRepository) UpdateStreak(ctx context.Context, userID uint, streak int, activeAt time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"streak":         streak,
			"last_active_at": activeAt,
		}).Error
}

// LeaderboardRow 排行榜查询结果
type LeaderboardRow struct {
	ID               uint
	Name             string
	ImageURL         string
	Points           int
	Streak           int
	CoursesCompleted int
}

// FindTopByPoints 积分降序，同分按 id 升序，保证排名稳定
func (r *UserRepository) FindTopByPoints(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	completed := r.DB.Model(&model.Enrollment{}).
		Select("COUNT(*)").
		Where("enrollments.user_id = users.id AND enrollments.status = ?", model.EnrollmentCompleted)

	var rows []LeaderboardRow
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Select("users.id, users.name, users.image_url, users.points, users.streak, (?) AS courses_completed", completed).
		Order("users.points DESC").
		Order("users.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// FindActiveSince 最近有学习活动的用户，供对账任务使用
func (r *UserRepository) FindActiveSince(ctx context.Context, since time.Time) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("last_active_at >= ?", since).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
