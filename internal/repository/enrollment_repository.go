package repository

import (
	"context"
	"time"

	"github.com/nehaa3012/LMS/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: tx}
}

func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, translate(err, "enrollment for course", courseID)
	}
	return &enrollment, nil
}

// CreateIfAbsent 已存在时返回已有记录，created 表示本次是否新建
func (r *EnrollmentRepository) CreateIfAbsent(ctx context.Context, userID, courseID uint, at time.Time) (*model.Enrollment, bool, error) {
	enrollment := &model.Enrollment{
		UserID:         userID,
		CourseID:       courseID,
		Status:         model.EnrollmentEnrolled,
		LastAccessedAt: &at,
	}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(enrollment)
	if res.Error != nil {
		return nil, false, res.Error
	}
	existing, err := r.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		return nil, false, err
	}
	return existing, res.RowsAffected == 1, nil
}

// AddTime 累加学习分钟数并刷新最近访问时间
func (r *EnrollmentRepository) AddTime(ctx context.Context, userID, courseID uint, minutes int, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		UpdateColumns(map[string]interface{}{
			"total_time_spent": gorm.Expr("total_time_spent + ?", minutes),
			"last_accessed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL 对值未变化的行返回 0，需要再确认记录是否存在
	_, err := r.FindByUserAndCourse(ctx, userID, courseID)
	return err
}

// MarkCompleted 幂等：只有状态尚未完成时才会更新，返回是否发生了状态变化
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, userID, courseID uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status <> ?", userID, courseID, model.EnrollmentCompleted).
		UpdateColumns(map[string]interface{}{
			"status":       model.EnrollmentCompleted,
			"completed_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *EnrollmentRepository) CountCompleted(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND status = ?", userID, model.EnrollmentCompleted).
		Count(&count).Error
	return count, err
}

func (r *EnrollmentRepository) FindByUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) SetTotalTime(ctx context.Context, id uint, minutes int) error {
	return r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("id = ?", id).
		UpdateColumn("total_time_spent", minutes).Error
}

// SumTotalTime 用户在所有课程上累计的学习分钟数
func (r *EnrollmentRepository) SumTotalTime(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Select("COALESCE(SUM(total_time_spent), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// FindForUpdate 对账时锁住报名行，与并发的时长累加串行
func (r *EnrollmentRepository) FindForUpdate(ctx context.Context, id uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&enrollment, id).Error
	if err != nil {
		return nil, translate(err, "enrollment", id)
	}
	return &enrollment, nil
}
