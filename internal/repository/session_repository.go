package repository

import (
	"context"
	"time"

	"github.com/nehaa3012/LMS/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: tx}
}

// Create 每次开始都新建一条，重试会得到新的会话
func (r *SessionRepository) Create(ctx context.Context, session *model.StudySession) error {
	return r.DB.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id uint) (*model.StudySession, error) {
	var session model.StudySession
	if err := r.DB.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, translate(err, "study session", id)
	}
	return &session, nil
}

// End 条件更新，只有仍处于活动状态的会话会被结束；返回 false 表示已被结束
func (r *SessionRepository) End(ctx context.Context, id uint, endTime time.Time, duration, points int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.StudySession{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumns(map[string]interface{}{
			"is_active":     false,
			"end_time":      endTime,
			"duration":      duration,
			"points_earned": points,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// EndedDurations 已结束会话的时长（秒），courseID 为 0 时不按课程过滤
func (r *SessionRepository) EndedDurations(ctx context.Context, userID, courseID uint) ([]int, error) {
	q := r.DB.WithContext(ctx).Model(&model.StudySession{}).
		Where("user_id = ? AND is_active = ?", userID, false)
	if courseID != 0 {
		q = q.Where("course_id = ?", courseID)
	}
	var durations []int
	err := q.Pluck("duration", &durations).Error
	return durations, err
}
