// Package testutil 测试用的 sqlite 内存库和数据构造函数
package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 每个测试一个独立的内存库，单连接以模拟串行写
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// ConcurrentConns 并发测试库的连接数
const ConcurrentConns = 8

// NewConcurrentDB 文件库开启 WAL 并允许多个连接，并发测试用。
// 事务以 BEGIN IMMEDIATE 开始，写事务之间由 busy_timeout 排队等待
func NewConcurrentDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(ConcurrentConns)
	sqlDB.SetMaxIdleConns(ConcurrentConns)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Config 测试配置，积分规则取默认值
func Config() *config.Config {
	return &config.Config{
		Server:       config.ServerConfig{Port: "0", Mode: "test"},
		Database:     config.DatabaseConfig{Driver: "sqlite"},
		JWT:          config.JWTConfig{Secret: "test-secret-test-secret-test-secret"},
		Storage:      config.StorageConfig{Type: "local"},
		RateLimit:    config.RateLimitConfig{MaxRequests: 100000, WindowMinutes: 1},
		Gamification: config.DefaultGamification(),
		Leaderboard:  config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100},
		Jobs:         config.JobsConfig{Timezone: "UTC", ReconcileLookback: 48},
	}
}

func SeedUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		ExternalID: "user_" + uuid.NewString(),
		Name:       name,
		Email:      strings.ToLower(name) + "@example.com",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// SeedCourse 创建一门课程，lessons 个课时平均分到两个模块
func SeedCourse(t *testing.T, db *gorm.DB, title string, lessons int) (*model.Course, []model.Lesson) {
	t.Helper()
	course := &model.Course{Title: title}
	require.NoError(t, db.Create(course).Error)

	modules := []*model.CourseModule{
		{CourseID: course.ID, Title: title + " part 1", Position: 1},
		{CourseID: course.ID, Title: title + " part 2", Position: 2},
	}
	for _, m := range modules {
		require.NoError(t, db.Create(m).Error)
	}

	created := make([]model.Lesson, 0, lessons)
	for i := 0; i < lessons; i++ {
		lesson := model.Lesson{
			ModuleID: modules[i%2].ID,
			Title:    fmt.Sprintf("%s lesson %d", title, i+1),
			Position: i + 1,
			Duration: 600,
		}
		require.NoError(t, db.Create(&lesson).Error)
		created = append(created, lesson)
	}
	return course, created
}

func Enroll(t *testing.T, db *gorm.DB, userID, courseID uint) *model.Enrollment {
	t.Helper()
	e := &model.Enrollment{UserID: userID, CourseID: courseID, Status: model.EnrollmentEnrolled}
	require.NoError(t, db.Create(e).Error)
	return e
}

// SeedQuiz 按给定顺序创建题目，answers[i] 即第 i 题正确答案
func SeedQuiz(t *testing.T, db *gorm.DB, lessonID uint, passingScore int, answers ...string) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{LessonID: lessonID, Title: "quiz", PassingScore: passingScore}
	require.NoError(t, db.Create(quiz).Error)
	for i, a := range answers {
		q := model.Question{
			QuizID:        quiz.ID,
			Position:      i + 1,
			Text:          fmt.Sprintf("question %d", i+1),
			Options:       datatypes.JSONSlice[string]{a, "other"},
			CorrectAnswer: a,
			Explanation:   "because " + a,
		}
		require.NoError(t, db.Create(&q).Error)
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz
}

func SeedAchievements(t *testing.T, db *gorm.DB, achievements ...model.Achievement) []model.Achievement {
	t.Helper()
	for i := range achievements {
		require.NoError(t, db.Create(&achievements[i]).Error)
	}
	return achievements
}

// Clock 可手动推进的时钟
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
