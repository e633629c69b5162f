package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/events"
	"github.com/nehaa3012/LMS/pkg/logger"
	"github.com/nehaa3012/LMS/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressUpdate 客户端一次进度上报，TimeSpentDelta 为本次新增秒数
type ProgressUpdate struct {
	IsCompleted    bool `json:"isCompleted"`
	TimeSpentDelta int  `json:"timeSpent"`
	LastPosition   int  `json:"lastPosition"`
}

type CourseProgress struct {
	CourseID         uint                   `json:"courseId"`
	Enrolled         bool                   `json:"enrolled"`
	Status           model.EnrollmentStatus `json:"status,omitempty"`
	Percentage       float64                `json:"percentage"`
	CompletedLessons int64                  `json:"completedLessons"`
	TotalLessons     int64                  `json:"totalLessons"`
	TimeSpent        int                    `json:"timeSpent"` // 分钟
}

type ProgressService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	ProgressRepo   *repository.ProgressRepository
	Users          *UserService
	Achievements   *AchievementService
	Events         events.Publisher
	Now            Clock

	// OnRankChanged 课程完成数变化后回调
	OnRankChanged func(ctx context.Context)
}

func NewProgressService(
	db *gorm.DB,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	progressRepo *repository.ProgressRepository,
	users *UserService,
	achievements *AchievementService,
	publisher events.Publisher,
) *ProgressService {
	return &ProgressService{
		DB:             db,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		ProgressRepo:   progressRepo,
		Users:          users,
		Achievements:   achievements,
		Events:         publisher,
		Now:            systemClock,
	}
}

// Enroll 重复报名返回已有记录
func (s *ProgressService) Enroll(ctx context.Context, userID, courseID uint) (*model.Enrollment, bool, error) {
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		return nil, false, err
	}
	return s.EnrollmentRepo.CreateIfAbsent(ctx, userID, courseID, s.Now())
}

// RecordLessonProgress 课时进度与报名时长在同一事务内更新。
// 完成状态只会从 false 变为 true，之后上报 false 会被忽略
func (s *ProgressService) RecordLessonProgress(ctx context.Context, userID, lessonID uint, update ProgressUpdate) (*model.Progress, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ProgressService.RecordLessonProgress")
	defer span.End()
	span.SetAttributes(attribute.Int64("lesson.id", int64(lessonID)), attribute.Bool("lesson.completed", update.IsCompleted))

	if update.TimeSpentDelta < 0 {
		return nil, fmt.Errorf("%w: timeSpent must not be negative", util.ErrValidation)
	}
	if update.LastPosition < 0 {
		return nil, fmt.Errorf("%w: lastPosition must not be negative", util.ErrValidation)
	}

	ref, err := s.CourseRepo.FindLessonRef(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	var progress *model.Progress
	newlyCompleted := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先更新报名记录：未报名直接失败，同时锁住该行串行化同一课程的并发上报
		if err := s.EnrollmentRepo.WithTx(tx).AddTime(ctx, userID, ref.CourseID, update.TimeSpentDelta/60, now); err != nil {
			return err
		}

		progresses := s.ProgressRepo.WithTx(tx)
		if err := progresses.Ensure(ctx, userID, lessonID); err != nil {
			return err
		}
		before, err := progresses.FindForUpdate(ctx, userID, lessonID)
		if err != nil {
			return err
		}
		if err := progresses.Apply(ctx, userID, lessonID, update.IsCompleted, update.TimeSpentDelta, update.LastPosition, now); err != nil {
			return err
		}
		newlyCompleted = update.IsCompleted && !before.IsCompleted

		progress, err = progresses.FindByUserAndLesson(ctx, userID, lessonID)
		return err
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	s.afterActivity(ctx, userID)
	if newlyCompleted {
		if _, err := s.RefreshCompletion(ctx, userID, ref.CourseID); err != nil {
			logger.Log.Error("Failed to refresh course completion",
				zap.Uint("userId", userID),
				zap.Uint("courseId", ref.CourseID),
				zap.Error(err),
			)
		}
		s.evaluate(ctx, userID)
	}
	return progress, nil
}

// GetCourseProgress 实时计算，不缓存百分比
func (s *ProgressService) GetCourseProgress(ctx context.Context, userID, courseID uint) (*CourseProgress, error) {
	result := &CourseProgress{CourseID: courseID}

	enrollment, err := s.EnrollmentRepo.FindByUserAndCourse(ctx, userID, courseID)
	if errors.Is(err, util.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	total, err := s.CourseRepo.CountLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}
	completed, err := s.ProgressRepo.CountCompletedInCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	result.Enrolled = true
	result.Status = enrollment.Status
	result.TotalLessons = total
	result.CompletedLessons = completed
	result.Percentage = Percentage(completed, total)
	result.TimeSpent = enrollment.TotalTimeSpent
	return result, nil
}

func Percentage(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) * 100 / float64(total)
}

// RefreshCompletion 全部课时完成时把报名标记为 COMPLETED，返回本次是否发生变化
func (s *ProgressService) RefreshCompletion(ctx context.Context, userID, courseID uint) (bool, error) {
	total, err := s.CourseRepo.CountLessons(ctx, courseID)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}
	completed, err := s.ProgressRepo.CountCompletedInCourse(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	if completed < total {
		return false, nil
	}

	changed, err := s.EnrollmentRepo.MarkCompleted(ctx, userID, courseID, s.Now())
	if err != nil || !changed {
		return false, err
	}
	logger.Log.Info("Course completed", zap.Uint("userId", userID), zap.Uint("courseId", courseID))
	if s.OnRankChanged != nil {
		s.OnRankChanged(ctx)
	}
	events.Emit(ctx, s.Events, events.SubjectCourseCompleted, userID, events.CourseCompleted{CourseID: courseID})
	return true, nil
}

func (s *ProgressService) afterActivity(ctx context.Context, userID uint) {
	if s.Users == nil {
		return
	}
	if _, err := s.Users.RecordActivity(ctx, userID); err != nil {
		logger.Log.Error("Failed to record activity", zap.Uint("userId", userID), zap.Error(err))
	}
}

func (s *ProgressService) evaluate(ctx context.Context, userID uint) {
	if s.Achievements == nil {
		return
	}
	if _, err := s.Achievements.EvaluateAndUnlock(ctx, userID); err != nil {
		logger.Log.Error("Failed to evaluate achievements", zap.Uint("userId", userID), zap.Error(err))
	}
}
