package service

import (
	"testing"

	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/testutil"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quizWith(passing int, answers ...string) *model.Quiz {
	q := &model.Quiz{PassingScore: passing}
	for i, a := range answers {
		q.Questions = append(q.Questions, model.Question{
			BaseModel:     model.BaseModel{ID: uint(i + 1)},
			CorrectAnswer: a,
			Explanation:   "explain " + a,
		})
	}
	return q
}

func TestScoreAttempt(t *testing.T) {
	quiz := quizWith(60, "a", "b", "c", "d", "e")

	tests := []struct {
		name    string
		answers map[uint]string
		score   float64
		passed  bool
		correct int
	}{
		{"all correct", map[uint]string{1: "a", 2: "b", 3: "c", 4: "d", 5: "e"}, 100, true, 5},
		{"three of five", map[uint]string{1: "a", 2: "b", 3: "c", 4: "x"}, 60, true, 3},
		{"two of five", map[uint]string{1: "a", 2: "b"}, 40, false, 2},
		{"case sensitive", map[uint]string{1: "A", 2: "B", 3: "C", 4: "D", 5: "E"}, 0, false, 0},
		{"unknown question ignored", map[uint]string{99: "a"}, 0, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ScoreAttempt(quiz, tt.answers)
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.passed, r.IsPassed)
			assert.Equal(t, tt.correct, r.Correct)
			assert.Equal(t, 5, r.Total)
			require.Len(t, r.Feedback, 5)
			assert.Equal(t, uint(1), r.Feedback[0].QuestionID)
			assert.Equal(t, "explain a", r.Feedback[0].Explanation)
		})
	}
}

func TestScoreAttemptIsDeterministic(t *testing.T) {
	quiz := quizWith(70, "x", "y", "z")
	answers := map[uint]string{1: "x", 3: "nope"}
	first := ScoreAttempt(quiz, answers)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ScoreAttempt(quiz, answers))
	}
}

func TestScoreAttemptEmptyQuiz(t *testing.T) {
	r := ScoreAttempt(quizWith(70), map[uint]string{})
	assert.Equal(t, 0.0, r.Score)
	assert.True(t, r.IsPassed)
	assert.Empty(t, r.Feedback)

	cfg := config.DefaultGamification()
	assert.Equal(t, cfg.QuizPassPoints, PointsForResult(r, cfg))
}

func TestPointsForResult(t *testing.T) {
	cfg := config.DefaultGamification()
	assert.Equal(t, 0, PointsForResult(ScoreResult{IsPassed: false, Correct: 1, Total: 5}, cfg))
	assert.Equal(t, 20, PointsForResult(ScoreResult{IsPassed: true, Correct: 3, Total: 5}, cfg))
	assert.Equal(t, 30, PointsForResult(ScoreResult{IsPassed: true, Correct: 5, Total: 5}, cfg))

	cfg.PerfectScoreBonus = 0
	assert.Equal(t, 20, PointsForResult(ScoreResult{IsPassed: true, Correct: 5, Total: 5}, cfg))
}

func TestSubmitAttemptAwardsPassPoints(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	_, lessons := testutil.SeedCourse(t, f.db, "Go", 1)
	quiz := testutil.SeedQuiz(t, f.db, lessons[0].ID, 60, "a", "b", "c", "d", "e")

	answers := map[uint]string{
		quiz.Questions[0].ID: "a",
		quiz.Questions[1].ID: "b",
		quiz.Questions[2].ID: "c",
		quiz.Questions[3].ID: "wrong",
	}
	res, err := f.quiz.SubmitAttempt(t.Context(), u.ID, quiz.ID, answers)
	require.NoError(t, err)
	assert.Equal(t, 60.0, res.Score)
	assert.True(t, res.IsPassed)
	assert.Equal(t, 20, res.PointsAwarded)
	assert.NotZero(t, res.Attempt.ID)
	assert.Equal(t, 20, f.reload(t, u.ID).Points)

	var entries []model.PointEntry
	require.NoError(t, f.db.Where("user_id = ?", u.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, model.PointSourceQuiz, entries[0].Source)
	assert.Equal(t, res.Attempt.ID, entries[0].SourceID)
}

func TestSubmitAttemptFailedAndRepeated(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	_, lessons := testutil.SeedCourse(t, f.db, "Go", 1)
	quiz := testutil.SeedQuiz(t, f.db, lessons[0].ID, 70, "a", "b")

	res, err := f.quiz.SubmitAttempt(t.Context(), u.ID, quiz.ID, map[uint]string{quiz.Questions[0].ID: "a"})
	require.NoError(t, err)
	assert.False(t, res.IsPassed)
	assert.Zero(t, res.PointsAwarded)
	assert.Zero(t, f.reload(t, u.ID).Points)

	perfect := map[uint]string{quiz.Questions[0].ID: "a", quiz.Questions[1].ID: "b"}
	for i := 0; i < 2; i++ {
		res, err = f.quiz.SubmitAttempt(t.Context(), u.ID, quiz.ID, perfect)
		require.NoError(t, err)
		assert.Equal(t, 30, res.PointsAwarded)
	}
	assert.Equal(t, 60, f.reload(t, u.ID).Points)

	view, err := f.quiz.GetQuiz(t.Context(), u.ID, quiz.ID)
	require.NoError(t, err)
	assert.Len(t, view.Attempts, 3)
	assert.Len(t, view.Quiz.Questions, 2)
}

func TestSubmitAttemptUsesReloadedRules(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")
	_, lessons := testutil.SeedCourse(t, f.db, "Go", 1)
	quiz := testutil.SeedQuiz(t, f.db, lessons[0].ID, 50, "a", "b")

	cfg := config.DefaultGamification()
	cfg.QuizPassPoints = 5
	f.rules.Set(cfg)

	res, err := f.quiz.SubmitAttempt(t.Context(), u.ID, quiz.ID, map[uint]string{quiz.Questions[0].ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.PointsAwarded)
}

func TestSubmitAttemptErrors(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Ada")

	_, err := f.quiz.SubmitAttempt(t.Context(), u.ID, 9999, map[uint]string{})
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = f.quiz.SubmitAttempt(t.Context(), u.ID, 1, nil)
	assert.ErrorIs(t, err, util.ErrValidation)
}
