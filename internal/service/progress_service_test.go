package service

import (
	"testing"
	"time"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/testutil"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, 75.0, Percentage(3, 4))
	assert.Equal(t, 100.0, Percentage(4, 4))
	assert.InDelta(t, 33.333, Percentage(1, 3), 0.001)
	assert.Equal(t, 0.0, Percentage(0, 0))
}

func TestEnrollIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	course, _ := testutil.SeedCourse(t, f.db, "Go", 2)

	first, created, err := f.progress.Enroll(t.Context(), u.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.EnrollmentEnrolled, first.Status)

	again, created, err := f.progress.Enroll(t.Context(), u.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = f.progress.Enroll(t.Context(), u.ID, 9999)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestRecordLessonProgressRequiresEnrollment(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	_, lessons := testutil.SeedCourse(t, f.db, "Go", 2)

	_, err := f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[0].ID, ProgressUpdate{IsCompleted: true})
	assert.ErrorIs(t, err, util.ErrNotFound)

	var count int64
	f.db.Model(&model.Progress{}).Count(&count)
	assert.Zero(t, count)

	_, err = f.progress.RecordLessonProgress(t.Context(), u.ID, 9999, ProgressUpdate{})
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestRecordLessonProgressValidation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 1)
	testutil.Enroll(t, f.db, u.ID, course.ID)

	_, err := f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[0].ID, ProgressUpdate{TimeSpentDelta: -1})
	assert.ErrorIs(t, err, util.ErrValidation)
	_, err = f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[0].ID, ProgressUpdate{LastPosition: -5})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestCompletionIsMonotonic(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	testutil.Enroll(t, f.db, u.ID, course.ID)
	lesson := lessons[0].ID

	p, err := f.progress.RecordLessonProgress(t.Context(), u.ID, lesson, ProgressUpdate{IsCompleted: true, TimeSpentDelta: 90, LastPosition: 10})
	require.NoError(t, err)
	require.True(t, p.IsCompleted)
	require.NotNil(t, p.CompletedAt)
	firstCompletedAt := *p.CompletedAt

	f.clock.Advance(time.Hour)
	p, err = f.progress.RecordLessonProgress(t.Context(), u.ID, lesson, ProgressUpdate{IsCompleted: false, TimeSpentDelta: 90, LastPosition: 42})
	require.NoError(t, err)
	assert.True(t, p.IsCompleted)
	assert.True(t, firstCompletedAt.Equal(*p.CompletedAt))
	assert.Equal(t, 180, p.TimeSpent)
	assert.Equal(t, 42, p.LastPosition)

	p, err = f.progress.RecordLessonProgress(t.Context(), u.ID, lesson, ProgressUpdate{IsCompleted: true})
	require.NoError(t, err)
	assert.True(t, firstCompletedAt.Equal(*p.CompletedAt))
}

func TestCourseProgressAndTimeSpent(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 4)

	cp, err := f.progress.GetCourseProgress(t.Context(), u.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, cp.Enrolled)
	assert.Zero(t, cp.Percentage)

	testutil.Enroll(t, f.db, u.ID, course.ID)
	f.completeAll(t, u.ID, lessons[:3])
	_, err = f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[3].ID, ProgressUpdate{TimeSpentDelta: 150})
	require.NoError(t, err)

	cp, err = f.progress.GetCourseProgress(t.Context(), u.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, cp.Enrolled)
	assert.Equal(t, model.EnrollmentEnrolled, cp.Status)
	assert.Equal(t, int64(3), cp.CompletedLessons)
	assert.Equal(t, int64(4), cp.TotalLessons)
	assert.Equal(t, 75.0, cp.Percentage)
	assert.Equal(t, 2, cp.TimeSpent)
}

func TestCompletingEveryLessonCompletesCourse(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 3)
	testutil.Enroll(t, f.db, u.ID, course.ID)

	f.completeAll(t, u.ID, lessons)

	cp, err := f.progress.GetCourseProgress(t.Context(), u.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCompleted, cp.Status)
	assert.Equal(t, 100.0, cp.Percentage)

	completed := f.events.Events(events.SubjectCourseCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, events.CourseCompleted{CourseID: course.ID}, completed[0].Payload)

	// 已完成后再次上报不会重复发事件
	_, err = f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[0].ID, ProgressUpdate{IsCompleted: true})
	require.NoError(t, err)
	assert.Len(t, f.events.Events(events.SubjectCourseCompleted), 1)

	changed, err := f.progress.RefreshCompletion(t.Context(), u.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestProgressUpdatesStreak(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	testutil.Enroll(t, f.db, u.ID, course.ID)

	_, err := f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[0].ID, ProgressUpdate{TimeSpentDelta: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, f.reload(t, u.ID).Streak)

	f.clock.Advance(24 * time.Hour)
	_, err = f.progress.RecordLessonProgress(t.Context(), u.ID, lessons[0].ID, ProgressUpdate{TimeSpentDelta: 30})
	require.NoError(t, err)
	assert.Equal(t, 2, f.reload(t, u.ID).Streak)
}
