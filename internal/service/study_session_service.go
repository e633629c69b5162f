package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/logger"
	"github.com/nehaa3012/LMS/pkg/monitoring"
	"github.com/nehaa3012/LMS/pkg/tracing"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StudySessionService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	SessionRepo    *repository.SessionRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Points         *PointsService
	Users          *UserService
	Achievements   *AchievementService
	Rules          *Rules
	Now            Clock
}

func NewStudySessionService(
	db *gorm.DB,
	courseRepo *repository.CourseRepository,
	sessionRepo *repository.SessionRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	points *PointsService,
	users *UserService,
	achievements *AchievementService,
	rules *Rules,
) *StudySessionService {
	return &StudySessionService{
		DB:             db,
		CourseRepo:     courseRepo,
		SessionRepo:    sessionRepo,
		EnrollmentRepo: enrollmentRepo,
		Points:         points,
		Users:          users,
		Achievements:   achievements,
		Rules:          rules,
		Now:            systemClock,
	}
}

type EndSessionResult struct {
	Session      *model.StudySession `json:"session"`
	PointsEarned int                 `json:"pointsEarned"`
}

// StartSession 每次调用都新建会话，不做去重
func (s *StudySessionService) StartSession(ctx context.Context, userID, courseID uint, lessonID *uint) (*model.StudySession, error) {
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		return nil, err
	}
	if lessonID != nil {
		ref, err := s.CourseRepo.FindLessonRef(ctx, *lessonID)
		if err != nil {
			return nil, err
		}
		if ref.CourseID != courseID {
			return nil, fmt.Errorf("%w: lesson %d is not part of course %d", util.ErrValidation, *lessonID, courseID)
		}
	}

	session := &model.StudySession{
		UserID:    userID,
		CourseID:  courseID,
		LessonID:  lessonID,
		StartTime: s.Now(),
		IsActive:  true,
	}
	if err := s.SessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession 条件更新保证并发结束只有一个成功，失败方得到 ErrConflict
func (s *StudySessionService) EndSession(ctx context.Context, userID, sessionID uint) (*EndSessionResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "StudySessionService.EndSession")
	defer span.End()

	session, err := s.SessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session %d belongs to another user", util.ErrUnauthorized, sessionID)
	}
	if !session.IsActive {
		return nil, fmt.Errorf("%w: session %d already ended", util.ErrConflict, sessionID)
	}

	end := s.Now()
	duration := int(end.Sub(session.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}
	points := duration / s.Rules.Get().SecondsPerStudyPoint

	var award *Award
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ended, err := s.SessionRepo.WithTx(tx).End(ctx, sessionID, end, duration, points)
		if err != nil {
			return err
		}
		if !ended {
			return fmt.Errorf("%w: session %d already ended", util.ErrConflict, sessionID)
		}
		award, err = s.Points.AwardInTx(ctx, tx, userID, points, model.PointSourceStudy, sessionID)
		if err != nil {
			return err
		}
		// 未报名课程的会话只记积分
		err = s.EnrollmentRepo.WithTx(tx).AddTime(ctx, userID, session.CourseID, duration/60, end)
		if errors.Is(err, util.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	session.IsActive = false
	session.EndTime = &end
	session.Duration = duration
	session.PointsEarned = points

	monitoring.StudySessionSeconds.Observe(float64(duration))
	s.Points.Announce(ctx, award)
	if s.Users != nil {
		if _, err := s.Users.RecordActivity(ctx, userID); err != nil {
			logger.Log.Error("Failed to record activity", zap.Uint("userId", userID), zap.Error(err))
		}
	}
	if s.Achievements != nil {
		if _, err := s.Achievements.EvaluateAndUnlock(ctx, userID); err != nil {
			logger.Log.Error("Failed to evaluate achievements", zap.Uint("userId", userID), zap.Error(err))
		}
	}

	return &EndSessionResult{Session: session, PointsEarned: points}, nil
}
