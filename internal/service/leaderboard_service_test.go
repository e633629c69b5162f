package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	s := NewLeaderboardService(nil, nil, 10, 100, 0)
	assert.Equal(t, 10, s.ClampLimit(0))
	assert.Equal(t, 10, s.ClampLimit(-3))
	assert.Equal(t, 25, s.ClampLimit(25))
	assert.Equal(t, 100, s.ClampLimit(1000))
}

func TestLeaderboardOrderingAndTies(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "Ada")
	bob := f.user(t, "Bob")
	cid := f.user(t, "Cid")
	dee := f.user(t, "Dee")

	for id, pts := range map[uint]int{ada.ID: 50, bob.ID: 80, cid.ID: 50, dee.ID: 10} {
		require.NoError(t, f.points.AwardPoints(t.Context(), id, pts, model.PointSourceStudy, 0))
	}

	course, lessons := testutil.SeedCourse(t, f.db, "Go", 1)
	testutil.Enroll(t, f.db, cid.ID, course.ID)
	f.completeAll(t, cid.ID, lessons)

	entries, err := f.leaderboard.GetLeaderboard(t.Context(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, bob.ID, entries[0].User.ID)
	assert.Equal(t, 80, entries[0].Points)

	// 同分按用户 ID 升序
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, ada.ID, entries[1].User.ID)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, cid.ID, entries[2].User.ID)
	assert.Equal(t, 1, entries[2].CoursesCompleted)
	assert.Equal(t, 1, entries[2].Streak)
	assert.Equal(t, "Cid", entries[2].User.Name)
}

func TestLeaderboardEmpty(t *testing.T) {
	f := newFixture(t)
	entries, err := f.leaderboard.GetLeaderboard(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLeaderboardLoadSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	require.NoError(t, f.points.AwardPoints(t.Context(), u.ID, 5, model.PointSourceStudy, 0))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	entries, err := f.leaderboard.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].Points)
}

func TestRankChangesInvalidateLeaderboard(t *testing.T) {
	f := newFixture(t)
	var streaks, completions atomic.Int32
	f.users.OnRankChanged = func(context.Context) { streaks.Add(1) }
	f.progress.OnRankChanged = func(context.Context) { completions.Add(1) }

	u := f.user(t, "Ada")
	course, lessons := testutil.SeedCourse(t, f.db, "Go", 2)
	testutil.Enroll(t, f.db, u.ID, course.ID)

	// 首次活动：连续天数 0 -> 1
	f.completeAll(t, u.ID, lessons[:1])
	assert.Equal(t, int32(1), streaks.Load())
	assert.Zero(t, completions.Load())

	// 同一天再次活动不变；课程完成数变化
	f.completeAll(t, u.ID, lessons[1:])
	assert.Equal(t, int32(1), streaks.Load())
	assert.Equal(t, int32(1), completions.Load())

	f.clock.Advance(24 * time.Hour)
	_, err := f.users.RecordActivity(t.Context(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), streaks.Load())
	assert.Equal(t, 2, f.reload(t, u.ID).Streak)
}
