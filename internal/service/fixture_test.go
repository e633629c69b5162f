package service

import (
	"testing"
	"time"

	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/testutil"
	"github.com/nehaa3012/LMS/pkg/events"

	"gorm.io/gorm"
)

var testStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	clock  *testutil.Clock
	events *events.MemoryPublisher
	rules  *Rules

	users        *UserService
	points       *PointsService
	achievements *AchievementService
	progress     *ProgressService
	quiz         *QuizService
	certificates *CertificateService
	sessions     *StudySessionService
	leaderboard  *LeaderboardService
	reconcile    *ReconcileService
}

// newFixture 按 app 的装配方式构建全部服务，时钟固定在 testStart
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewDB(t))
}

// newConcurrentFixture 多连接文件库，事务之间真正并发
func newConcurrentFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewConcurrentDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{
		db:     db,
		clock:  testutil.NewClock(testStart),
		events: &events.MemoryPublisher{},
		rules:  NewRules(config.DefaultGamification()),
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	f.users = NewUserService(db, userRepo, time.UTC)
	f.points = NewPointsService(db, userRepo, repository.NewPointsRepository(db), f.events)
	f.leaderboard = NewLeaderboardService(userRepo, nil, 10, 100, 0)
	f.points.OnAwarded = f.leaderboard.Invalidate
	f.users.OnRankChanged = f.leaderboard.Invalidate
	f.achievements = NewAchievementService(db, repository.NewAchievementRepository(db), userRepo, progressRepo, enrollmentRepo, quizRepo, f.points, f.events)
	f.progress = NewProgressService(db, courseRepo, enrollmentRepo, progressRepo, f.users, f.achievements, f.events)
	f.progress.OnRankChanged = f.leaderboard.Invalidate
	f.quiz = NewQuizService(db, quizRepo, f.points, f.users, f.achievements, f.rules)
	f.certificates = NewCertificateService(
		repository.NewCertificateRepository(db),
		courseRepo,
		progressRepo,
		enrollmentRepo,
		userRepo,
		&StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}},
		&CertificateRenderer{},
		f.achievements,
		f.events,
	)
	f.certificates.OnRankChanged = f.leaderboard.Invalidate
	f.sessions = NewStudySessionService(db, courseRepo, sessionRepo, enrollmentRepo, f.points, f.users, f.achievements, f.rules)
	f.reconcile = NewReconcileService(db, userRepo, enrollmentRepo, progressRepo, sessionRepo, f.progress, f.achievements)

	now := f.clock.Now
	f.users.Now = now
	f.achievements.Now = now
	f.progress.Now = now
	f.quiz.Now = now
	f.certificates.Now = now
	f.sessions.Now = now
	f.reconcile.Now = now
	return f
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	return testutil.SeedUser(t, f.db, name)
}

func (f *fixture) reload(t *testing.T, userID uint) *model.User {
	t.Helper()
	var u model.User
	if err := f.db.First(&u, userID).Error; err != nil {
		t.Fatalf("reload user %d: %v", userID, err)
	}
	return &u
}

// completeAll 依次上报课时完成
func (f *fixture) completeAll(t *testing.T, userID uint, lessons []model.Lesson) {
	t.Helper()
	for _, l := range lessons {
		if _, err := f.progress.RecordLessonProgress(t.Context(), userID, l.ID, ProgressUpdate{IsCompleted: true}); err != nil {
			t.Fatalf("complete lesson %d: %v", l.ID, err)
		}
	}
}
