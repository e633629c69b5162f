package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/testutil"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parallel 让 n 个调用尽量同时开始，按下标返回各自的错误
func parallel(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestIssueCertificateConcurrent(t *testing.T) {
	f := newConcurrentFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	testutil.Enroll(t, f.db, u.ID, course.ID)
	f.completeAll(t, u.ID, lessons)

	const callers = 8
	certs := make([]*model.Certificate, callers)
	created := make([]bool, callers)
	errs := parallel(callers, func(i int) error {
		var err error
		certs[i], created[i], err = f.certificates.IssueCertificateIfEligible(context.Background(), u.ID, course.ID)
		return err
	})

	winners := 0
	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, certs[0].CertificateNumber, certs[i].CertificateNumber)
		if created[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	var count int64
	require.NoError(t, f.db.Model(&model.Certificate{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, f.events.Events(events.SubjectCertificateIssued), 1)
}

func TestRecordLessonProgressConcurrent(t *testing.T) {
	f := newConcurrentFixture(t)
	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	enrollment := testutil.Enroll(t, f.db, u.ID, course.ID)
	lesson := lessons[0]

	// 完成与未完成的上报交错到达
	const reports = 12
	errs := parallel(reports, func(i int) error {
		_, err := f.progress.RecordLessonProgress(context.Background(), u.ID, lesson.ID, ProgressUpdate{
			IsCompleted:    i%2 == 0,
			TimeSpentDelta: 60,
			LastPosition:   i,
		})
		return err
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	var p model.Progress
	require.NoError(t, f.db.Where("user_id = ? AND lesson_id = ?", u.ID, lesson.ID).First(&p).Error)
	assert.Equal(t, reports*60, p.TimeSpent)
	assert.True(t, p.IsCompleted)
	require.NotNil(t, p.CompletedAt)
	assert.True(t, p.CompletedAt.Equal(testStart))

	var rows int64
	f.db.Model(&model.Progress{}).Where("user_id = ?", u.ID).Count(&rows)
	assert.Equal(t, int64(1), rows)

	var e model.Enrollment
	require.NoError(t, f.db.First(&e, enrollment.ID).Error)
	assert.Equal(t, reports, e.TotalTimeSpent)
	assert.Equal(t, model.EnrollmentEnrolled, e.Status)
	assert.Equal(t, 1, f.reload(t, u.ID).Streak)
}

func TestEndSessionConcurrent(t *testing.T) {
	f := newConcurrentFixture(t)
	u := f.user(t, "Ada")
	course, _ := testutil.SeedCourse(t, f.db, "Go", 1)
	enrollment := testutil.Enroll(t, f.db, u.ID, course.ID)

	session, err := f.sessions.StartSession(t.Context(), u.ID, course.ID, nil)
	require.NoError(t, err)
	f.clock.Advance(125 * time.Second)

	const callers = 8
	errs := parallel(callers, func(int) error {
		_, err := f.sessions.EndSession(context.Background(), u.ID, session.ID)
		return err
	})

	ended := 0
	for _, err := range errs {
		if err == nil {
			ended++
			continue
		}
		assert.ErrorIs(t, err, util.ErrConflict)
	}
	assert.Equal(t, 1, ended)

	assert.Equal(t, 2, f.reload(t, u.ID).Points)
	var entries int64
	f.db.Model(&model.PointEntry{}).Where("user_id = ? AND source = ?", u.ID, model.PointSourceStudy).Count(&entries)
	assert.Equal(t, int64(1), entries)
	assert.Len(t, f.events.Events(events.SubjectPointsAwarded), 1)

	var e model.Enrollment
	require.NoError(t, f.db.First(&e, enrollment.ID).Error)
	assert.Equal(t, 2, e.TotalTimeSpent)
}
