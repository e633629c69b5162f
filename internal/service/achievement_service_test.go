package service

import (
	"testing"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/testutil"
	"github.com/nehaa3012/LMS/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainedCatalog() []model.Achievement {
	return []model.Achievement{
		{Key: "first_lesson", Name: "First Steps", Condition: model.ConditionLessonsCompleted, Threshold: 1, PointsReward: 10},
		{Key: "points_10", Name: "Ten", Condition: model.ConditionPoints, Threshold: 10, PointsReward: 5},
		{Key: "points_15", Name: "Fifteen", Condition: model.ConditionPoints, Threshold: 15, PointsReward: 0},
		{Key: "points_100", Name: "Hundred", Condition: model.ConditionPoints, Threshold: 100, PointsReward: 50},
	}
}

func TestAchievementRewardsChain(t *testing.T) {
	f := newFixture(t)
	testutil.SeedAchievements(t, f.db, chainedCatalog()...)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	testutil.Enroll(t, f.db, u.ID, course.ID)

	f.completeAll(t, u.ID, lessons[:1])

	// 课时成就奖励 10 分，触发 10 分成就再奖励 5 分，进而满足 15 分成就
	assert.Equal(t, 15, f.reload(t, u.ID).Points)
	var unlocked int64
	f.db.Model(&model.UserAchievement{}).Where("user_id = ?", u.ID).Count(&unlocked)
	assert.Equal(t, int64(3), unlocked)
	assert.Len(t, f.events.Events(events.SubjectAchievementUnlocked), 3)

	var entries []model.PointEntry
	require.NoError(t, f.db.Where("user_id = ? AND source = ?", u.ID, model.PointSourceAchievement).Find(&entries).Error)
	assert.Len(t, entries, 2)
}

func TestEvaluateAndUnlockIsIdempotent(t *testing.T) {
	f := newFixture(t)
	testutil.SeedAchievements(t, f.db, chainedCatalog()...)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	testutil.Enroll(t, f.db, u.ID, course.ID)
	f.completeAll(t, u.ID, lessons)

	points := f.reload(t, u.ID).Points
	for i := 0; i < 3; i++ {
		got, err := f.achievements.EvaluateAndUnlock(t.Context(), u.ID)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, points, f.reload(t, u.ID).Points)
}

func TestCollectFacts(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	testutil.Enroll(t, f.db, u.ID, course.ID)
	quiz := testutil.SeedQuiz(t, f.db, lessons[0].ID, 50, "a")

	_, err := f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[0].ID, ProgressUpdate{IsCompleted: true, TimeSpentDelta: 600})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.quiz.SubmitAttempt(t.Context(), u.ID, quiz.ID, map[uint]string{quiz.Questions[0].ID: "a"})
		require.NoError(t, err)
	}

	facts, err := f.achievements.CollectFacts(t.Context(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, Facts{
		Points:           60,
		LessonsCompleted: 1,
		CoursesCompleted: 0,
		Streak:           1,
		QuizzesPassed:    1,
		StudyMinutes:     10,
	}, facts)
	assert.Equal(t, 10, facts.Value(model.ConditionStudyMinutes))
	assert.Equal(t, 0, facts.Value("unknown"))
}

func TestGetAchievementsSplitsLockedAndUnlocked(t *testing.T) {
	f := newFixture(t)
	testutil.SeedAchievements(t, f.db, chainedCatalog()...)
	u := f.user(t, "Ada")

	got, err := f.achievements.GetAchievements(t.Context(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Unlocked)
	assert.Len(t, got.Locked, 4)

	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	testutil.Enroll(t, f.db, u.ID, course.ID)
	f.completeAll(t, u.ID, lessons[:1])

	got, err = f.achievements.GetAchievements(t.Context(), u.ID)
	require.NoError(t, err)
	require.Len(t, got.Unlocked, 3)
	assert.Equal(t, "first_lesson", got.Unlocked[0].Achievement.Key)
	require.Len(t, got.Locked, 1)
	assert.Equal(t, "points_100", got.Locked[0].Key)
	assert.Equal(t, 15, got.Locked[0].Current)
	assert.Equal(t, 15, got.Progress.Points)
}

func TestSyncCatalogUpserts(t *testing.T) {
	f := newFixture(t)

	n, err := f.achievements.SyncCatalog(t.Context(), "../../configs/achievements.yaml")
	require.NoError(t, err)
	assert.Positive(t, n)

	n2, err := f.achievements.SyncCatalog(t.Context(), "../../configs/achievements.yaml")
	require.NoError(t, err)
	assert.Equal(t, n, n2)

	var count int64
	f.db.Model(&model.Achievement{}).Count(&count)
	assert.Equal(t, int64(n), count)

	_, err = f.achievements.SyncCatalog(t.Context(), "does-not-exist.yaml")
	assert.Error(t, err)
}

func TestParseAchievementCatalog(t *testing.T) {
	valid := []byte(`
achievements:
  - key: first_lesson
    name: First Steps
    condition: lessons_completed
    threshold: 1
    points_reward: 5
  - key: streak_7
    name: Week
    condition: streak
    threshold: 7
`)
	catalog, err := ParseAchievementCatalog(valid)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, model.ConditionStreak, catalog[1].Condition)
	assert.Equal(t, 5, catalog[0].PointsReward)

	tests := map[string]string{
		"missing name":    "achievements:\n  - key: a\n    condition: streak\n    threshold: 1\n",
		"duplicate key":   "achievements:\n  - {key: a, name: A, condition: streak, threshold: 1}\n  - {key: a, name: B, condition: streak, threshold: 2}\n",
		"bad condition":   "achievements:\n  - {key: a, name: A, condition: logins, threshold: 1}\n",
		"zero threshold":  "achievements:\n  - {key: a, name: A, condition: streak, threshold: 0}\n",
		"negative reward": "achievements:\n  - {key: a, name: A, condition: streak, threshold: 1, points_reward: -3}\n",
		"not yaml":        "achievements: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAchievementCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}
