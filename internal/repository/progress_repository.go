package repository

import (
	"context"
	"time"

	"github.com/nehaa3012/LMS/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

// Ensure 首次上报时创建空记录，已存在则什么都不做
func (r *ProgressRepository) Ensure(ctx context.Context, userID, lessonID uint) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Progress{UserID: userID, LessonID: lessonID}).Error
}

// FindForUpdate 事务内读取并锁定 (user, lesson) 记录
func (r *ProgressRepository) FindForUpdate(ctx context.Context, userID, lessonID uint) (*model.Progress, error) {
	var progress model.Progress
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&progress).Error
	if err != nil {
		return nil, translate(err, "progress for lesson", lessonID)
	}
	return &progress, nil
}

func (r *ProgressRepository) FindByUserAndLesson(ctx context.Context, userID, lessonID uint) (*model.Progress, error) {
	var progress model.Progress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&progress).Error
	if err != nil {
		return nil, translate(err, "progress for lesson", lessonID)
	}
	return &progress, nil
}

// Apply 时长只做累加；完成标记只会从 false 变为 true，completed_at 只写一次
func (r *ProgressRepository) Apply(ctx context.Context, userID, lessonID uint, complete bool, deltaSeconds, lastPosition int, at time.Time) error {
	updates := map[string]interface{}{
		"time_spent":    gorm.Expr("time_spent + ?", deltaSeconds),
		"last_position": lastPosition,
		"updated_at":    at,
	}
	if complete {
		updates["is_completed"] = true
		updates["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", at)
	}
	return r.DB.WithContext(ctx).Model(&model.Progress{}).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		UpdateColumns(updates).Error
}

func (r *ProgressRepository) inCourse(ctx context.Context, userID, courseID uint) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&model.Progress{}).
		Joins("JOIN lessons ON lessons.id = progress.lesson_id AND lessons.deleted_at IS NULL").
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id AND course_modules.deleted_at IS NULL").
		Where("progress.user_id = ? AND course_modules.course_id = ?", userID, courseID)
}

// CountCompletedInCourse 用户在课程内已完成的课时数
func (r *ProgressRepository) CountCompletedInCourse(ctx context.Context, userID, courseID uint) (int64, error) {
	var count int64
	err := r.inCourse(ctx, userID, courseID).
		Where("progress.is_completed = ?", true).
		Count(&count).Error
	return count, err
}

// SumTimeInCourse 课程内所有课时累计秒数，对账时作为事实来源
func (r *ProgressRepository) SumTimeInCourse(ctx context.Context, userID, courseID uint) (int64, error) {
	var total int64
	err := r.inCourse(ctx, userID, courseID).
		Select("COALESCE(SUM(progress.time_spent), 0)").
		Scan(&total).Error
	return total, err
}

func (r *ProgressRepository) CountCompleted(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Progress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&count).Error
	return count, err
}
