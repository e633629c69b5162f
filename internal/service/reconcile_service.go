package service

import (
	"context"
	"time"

	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/pkg/logger"
	"github.com/nehaa3012/LMS/pkg/tracing"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileReport 一次对账的结果统计
type ReconcileReport struct {
	Users                int `json:"users"`
	EnrollmentsFixed     int `json:"enrollmentsFixed"`
	CoursesCompleted     int `json:"coursesCompleted"`
	AchievementsUnlocked int `json:"achievementsUnlocked"`
	Failed               int `json:"failed"`
}

// ReconcileService 以 Progress 和已结束的学习会话为准，重算可推导的数据
type ReconcileService struct {
	DB             *gorm.DB
	UserRepo       *repository.UserRepository
	EnrollmentRepo *repository.EnrollmentRepository
	ProgressRepo   *repository.ProgressRepository
	SessionRepo    *repository.SessionRepository
	Progress       *ProgressService
	Achievements   *AchievementService
	Now            Clock
}

func NewReconcileService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	progressRepo *repository.ProgressRepository,
	sessionRepo *repository.SessionRepository,
	progress *ProgressService,
	achievements *AchievementService,
) *ReconcileService {
	return &ReconcileService{
		DB:             db,
		UserRepo:       userRepo,
		EnrollmentRepo: enrollmentRepo,
		ProgressRepo:   progressRepo,
		SessionRepo:    sessionRepo,
		Progress:       progress,
		Achievements:   achievements,
		Now:            systemClock,
	}
}

// Run 对 lookback 时间窗口内活跃过的用户对账；单个用户失败不影响其他用户
func (s *ReconcileService) Run(ctx context.Context, lookback time.Duration) (*ReconcileReport, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ReconcileService.Run")
	defer span.End()

	ids, err := s.UserRepo.FindActiveSince(ctx, s.Now().Add(-lookback))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	report := &ReconcileReport{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r, err := s.ReconcileUser(ctx, id)
		report.Users++
		report.EnrollmentsFixed += r.EnrollmentsFixed
		report.CoursesCompleted += r.CoursesCompleted
		report.AchievementsUnlocked += r.AchievementsUnlocked
		if err != nil {
			report.Failed++
			logger.Log.Error("Reconcile failed for user", zap.Uint("userId", id), zap.Error(err))
		}
	}

	logger.Log.Info("Reconcile finished",
		zap.Int("users", report.Users),
		zap.Int("enrollmentsFixed", report.EnrollmentsFixed),
		zap.Int("coursesCompleted", report.CoursesCompleted),
		zap.Int("achievementsUnlocked", report.AchievementsUnlocked),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *ReconcileService) ReconcileUser(ctx context.Context, userID uint) (ReconcileReport, error) {
	report := ReconcileReport{Users: 1}

	enrollments, err := s.EnrollmentRepo.FindByUser(ctx, userID)
	if err != nil {
		return report, err
	}
	for _, e := range enrollments {
		fixed, err := s.reconcileTime(ctx, e.ID, userID, e.CourseID)
		if err != nil {
			return report, err
		}
		if fixed {
			report.EnrollmentsFixed++
		}
		completed, err := s.Progress.RefreshCompletion(ctx, userID, e.CourseID)
		if err != nil {
			return report, err
		}
		if completed {
			report.CoursesCompleted++
		}
	}

	unlocked, err := s.Achievements.EvaluateAndUnlock(ctx, userID)
	report.AchievementsUnlocked = len(unlocked)
	return report, err
}

// ExpectedMinutes 课时累计秒数折算的分钟数，加上每个已结束会话各自折算的分钟数
func ExpectedMinutes(progressSeconds int64, sessionDurations []int) int {
	minutes := int(progressSeconds / 60)
	for _, d := range sessionDurations {
		minutes += d / 60
	}
	return minutes
}

func (s *ReconcileService) reconcileTime(ctx context.Context, enrollmentID, userID, courseID uint) (bool, error) {
	fixed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollments := s.EnrollmentRepo.WithTx(tx)
		enrollment, err := enrollments.FindForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		seconds, err := s.ProgressRepo.WithTx(tx).SumTimeInCourse(ctx, userID, courseID)
		if err != nil {
			return err
		}
		durations, err := s.SessionRepo.WithTx(tx).EndedDurations(ctx, userID, courseID)
		if err != nil {
			return err
		}

		expected := ExpectedMinutes(seconds, durations)
		if expected == enrollment.TotalTimeSpent {
			return nil
		}
		logger.Log.Info("Enrollment time drift corrected",
			zap.Uint("enrollmentId", enrollmentID),
			zap.Int("was", enrollment.TotalTimeSpent),
			zap.Int("now", expected),
		)
		fixed = true
		return enrollments.SetTotalTime(ctx, enrollmentID, expected)
	})
	return fixed, err
}
