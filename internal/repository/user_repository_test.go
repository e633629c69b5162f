package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/testutil"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 不包事务，每次递增都是独立语句，跨连接交错执行
func TestIncrementPointsConcurrent(t *testing.T) {
	db := testutil.NewConcurrentDB(t)
	repo := NewUserRepository(db)
	u := testutil.SeedUser(t, db, "Ada")

	const workers, amount = 40, 3
	start := make(chan struct{})
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- repo.IncrementPoints(context.Background(), u.ID, amount)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var got model.User
	require.NoError(t, db.First(&got, u.ID).Error)
	assert.Equal(t, workers*amount, got.Points)
}

func TestIncrementPointsUnknownUser(t *testing.T) {
	repo := NewUserRepository(testutil.NewDB(t))
	err := repo.IncrementPoints(t.Context(), 999, 5)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestFindTopByPointsTieBreak(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	first := testutil.SeedUser(t, db, "Ada")
	second := testutil.SeedUser(t, db, "Bob")
	for _, id := range []uint{second.ID, first.ID} {
		require.NoError(t, repo.IncrementPoints(t.Context(), id, 10))
	}

	rows, err := repo.FindTopByPoints(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
}
