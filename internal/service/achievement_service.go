package service

import (
	"context"
	"fmt"
	"os"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/pkg/events"
	"github.com/nehaa3012/LMS/pkg/logger"
	"github.com/nehaa3012/LMS/pkg/monitoring"
	"github.com/nehaa3012/LMS/pkg/tracing"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type AchievementService struct {
	DB              *gorm.DB
	AchievementRepo *repository.AchievementRepository
	UserRepo        *repository.UserRepository
	ProgressRepo    *repository.ProgressRepository
	EnrollmentRepo  *repository.EnrollmentRepository
	QuizRepo        *repository.QuizRepository
	Points          *PointsService
	Events          events.Publisher
	Now             Clock
}

func NewAchievementService(
	db *gorm.DB,
	achievementRepo *repository.AchievementRepository,
	userRepo *repository.UserRepository,
	progressRepo *repository.ProgressRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	quizRepo *repository.QuizRepository,
	points *PointsService,
	publisher events.Publisher,
) *AchievementService {
	return &AchievementService{
		DB:              db,
		AchievementRepo: achievementRepo,
		UserRepo:        userRepo,
		ProgressRepo:    progressRepo,
		EnrollmentRepo:  enrollmentRepo,
		QuizRepo:        quizRepo,
		Points:          points,
		Events:          publisher,
		Now:             systemClock,
	}
}

// Facts 成就规则所依据的用户统计
type Facts struct {
	Points           int `json:"points"`
	LessonsCompleted int `json:"lessonsCompleted"`
	CoursesCompleted int `json:"coursesCompleted"`
	Streak           int `json:"streak"`
	QuizzesPassed    int `json:"quizzesPassed"`
	StudyMinutes     int `json:"studyMinutes"`
}

func (f Facts) Value(cond model.AchievementCondition) int {
	switch cond {
	case model.ConditionPoints:
		return f.Points
	case model.ConditionLessonsCompleted:
		return f.LessonsCompleted
	case model.ConditionCoursesCompleted:
		return f.CoursesCompleted
	case model.ConditionStreak:
		return f.Streak
	case model.ConditionQuizzesPassed:
		return f.QuizzesPassed
	case model.ConditionStudyMinutes:
		return f.StudyMinutes
	default:
		return 0
	}
}

// LockedAchievement 未解锁成就及当前进度
type LockedAchievement struct {
	model.Achievement
	Current int `json:"current"`
}

type UserAchievements struct {
	Unlocked []model.UserAchievement `json:"unlocked"`
	Locked   []LockedAchievement     `json:"locked"`
	Progress Facts                   `json:"progress"`
}

// CollectFacts 各项统计互不依赖，并发查询
func (s *AchievementService) CollectFacts(ctx context.Context, userID uint) (Facts, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return Facts{}, err
	}
	facts := Facts{Points: user.Points, Streak: user.Streak}

	var lessons, courses, quizzes, minutes int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lessons, err = s.ProgressRepo.CountCompleted(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = s.EnrollmentRepo.CountCompleted(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		quizzes, err = s.QuizRepo.CountPassedQuizzes(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		minutes, err = s.EnrollmentRepo.SumTotalTime(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Facts{}, err
	}

	facts.LessonsCompleted = int(lessons)
	facts.CoursesCompleted = int(courses)
	facts.QuizzesPassed = int(quizzes)
	facts.StudyMinutes = int(minutes)
	return facts, nil
}

// EvaluateAndUnlock 解锁所有已满足条件的成就，每个成就只解锁一次、只奖励一次。
// 奖励积分可能满足新的积分成就，所以循环到某一轮没有新解锁为止
func (s *AchievementService) EvaluateAndUnlock(ctx context.Context, userID uint) ([]model.Achievement, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AchievementService.EvaluateAndUnlock")
	defer span.End()

	catalog, err := s.AchievementRepo.FindAll(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	var unlocked []model.Achievement
	for round := 0; round <= len(catalog); round++ {
		facts, err := s.CollectFacts(ctx, userID)
		if err != nil {
			tracing.RecordError(span, err)
			return unlocked, err
		}
		have, err := s.AchievementRepo.FindUnlockedIDs(ctx, userID)
		if err != nil {
			tracing.RecordError(span, err)
			return unlocked, err
		}

		newly := 0
		for _, a := range catalog {
			if have[a.ID] || facts.Value(a.Condition) < a.Threshold {
				continue
			}
			created, err := s.unlock(ctx, userID, a)
			if err != nil {
				tracing.RecordError(span, err)
				return unlocked, err
			}
			if created {
				unlocked = append(unlocked, a)
				newly++
			}
		}
		if newly == 0 {
			break
		}
	}
	return unlocked, nil
}

func (s *AchievementService) unlock(ctx context.Context, userID uint, a model.Achievement) (bool, error) {
	var created bool
	var award *Award
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.AchievementRepo.WithTx(tx).Unlock(ctx, userID, a.ID, s.Now())
		if err != nil || !created {
			return err
		}
		award, err = s.Points.AwardInTx(ctx, tx, userID, a.PointsReward, model.PointSourceAchievement, a.ID)
		return err
	})
	if err != nil || !created {
		return false, err
	}

	monitoring.AchievementsUnlocked.WithLabelValues(a.Key).Inc()
	logger.Log.Info("Achievement unlocked",
		zap.Uint("userId", userID),
		zap.String("key", a.Key),
		zap.Int("reward", a.PointsReward),
	)
	events.Emit(ctx, s.Events, events.SubjectAchievementUnlocked, userID, events.AchievementUnlocked{
		AchievementID: a.ID,
		Key:           a.Key,
		PointsReward:  a.PointsReward,
	})
	s.Points.Announce(ctx, award)
	return true, nil
}

func (s *AchievementService) GetAchievements(ctx context.Context, userID uint) (*UserAchievements, error) {
	facts, err := s.CollectFacts(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.AchievementRepo.FindUnlocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.AchievementRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	got := make(map[uint]bool, len(unlocked))
	for _, ua := range unlocked {
		got[ua.AchievementID] = true
	}
	locked := make([]LockedAchievement, 0, len(catalog))
	for _, a := range catalog {
		if got[a.ID] {
			continue
		}
		locked = append(locked, LockedAchievement{Achievement: a, Current: facts.Value(a.Condition)})
	}

	if unlocked == nil {
		unlocked = []model.UserAchievement{}
	}
	return &UserAchievements{Unlocked: unlocked, Locked: locked, Progress: facts}, nil
}

// SyncCatalog 从 YAML 加载成就目录并按 key 写入数据库
func (s *AchievementService) SyncCatalog(ctx context.Context, path string) (int, error) {
	catalog, err := LoadAchievementCatalog(path)
	if err != nil {
		return 0, err
	}
	if err := s.AchievementRepo.UpsertCatalog(ctx, catalog); err != nil {
		return 0, err
	}
	return len(catalog), nil
}

type achievementFile struct {
	Achievements []model.Achievement `yaml:"achievements"`
}

func LoadAchievementCatalog(path string) ([]model.Achievement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read achievement catalog: %w", err)
	}
	return ParseAchievementCatalog(data)
}

func ParseAchievementCatalog(data []byte) ([]model.Achievement, error) {
	var file achievementFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse achievement catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Achievements))
	for i := range file.Achievements {
		a := &file.Achievements[i]
		if a.Key == "" || a.Name == "" {
			return nil, fmt.Errorf("achievement #%d: key and name are required", i+1)
		}
		if seen[a.Key] {
			return nil, fmt.Errorf("achievement %q: duplicate key", a.Key)
		}
		seen[a.Key] = true
		if !knownCondition(a.Condition) {
			return nil, fmt.Errorf("achievement %q: unknown condition %q", a.Key, a.Condition)
		}
		if a.Threshold <= 0 {
			return nil, fmt.Errorf("achievement %q: threshold must be positive", a.Key)
		}
		if a.PointsReward < 0 {
			return nil, fmt.Errorf("achievement %q: points_reward must not be negative", a.Key)
		}
	}
	return file.Achievements, nil
}

func knownCondition(c model.AchievementCondition) bool {
	switch c {
	case model.ConditionPoints, model.ConditionLessonsCompleted, model.ConditionCoursesCompleted,
		model.ConditionStreak, model.ConditionQuizzesPassed, model.ConditionStudyMinutes:
		return true
	}
	return false
}
