package service

import (
	"testing"
	"time"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedMinutes(t *testing.T) {
	assert.Equal(t, 0, ExpectedMinutes(0, nil))
	assert.Equal(t, 3, ExpectedMinutes(180, nil))
	assert.Equal(t, 3, ExpectedMinutes(239, nil))
	// 会话各自取整后再相加
	assert.Equal(t, 1+1+2, ExpectedMinutes(90, []int{119, 125}))
}

func TestReconcileFixesDrift(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	enrollment := testutil.Enroll(t, f.db, u.ID, course.ID)

	_, err := f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[0].ID, ProgressUpdate{TimeSpentDelta: 300})
	require.NoError(t, err)
	session, err := f.sessions.StartSession(t.Context(), u.ID, course.ID, nil)
	require.NoError(t, err)
	f.clock.Advance(150 * time.Second)
	_, err = f.sessions.EndSession(t.Context(), u.ID, session.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&model.Enrollment{}).Where("id = ?", enrollment.ID).UpdateColumn("total_time_spent", 99).Error)

	report, err := f.reconcile.Run(t.Context(), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, 1, report.EnrollmentsFixed)
	assert.Zero(t, report.Failed)

	var e model.Enrollment
	require.NoError(t, f.db.First(&e, enrollment.ID).Error)
	assert.Equal(t, 5+2, e.TotalTimeSpent)

	report, err = f.reconcile.Run(t.Context(), 48*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, report.EnrollmentsFixed)
}

func TestReconcileCompletesCourseAndUnlocks(t *testing.T) {
	f := newFixture(t)
	testutil.SeedAchievements(t, f.db, model.Achievement{
		Key: "first_course", Name: "Graduate", Condition: model.ConditionCoursesCompleted, Threshold: 1, PointsReward: 50,
	})
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 1)
	testutil.Enroll(t, f.db, u.ID, course.ID)

	// 直接写入完成记录，模拟完成后的处理步骤没有执行
	now := f.clock.Now()
	require.NoError(t, f.db.Create(&model.Progress{UserID: u.ID, LessonID: lessons[0].ID, IsCompleted: true, CompletedAt: &now}).Error)
	_, err := f.users.RecordActivity(t.Context(), u.ID)
	require.NoError(t, err)

	report, err := f.reconcile.Run(t.Context(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CoursesCompleted)
	assert.Equal(t, 1, report.AchievementsUnlocked)
	assert.Equal(t, 50, f.reload(t, u.ID).Points)
}

func TestReconcileSkipsInactiveUsers(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	_, err := f.users.RecordActivity(t.Context(), u.ID)
	require.NoError(t, err)

	f.clock.Advance(72 * time.Hour)
	report, err := f.reconcile.Run(t.Context(), 48*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, report.Users)
}
