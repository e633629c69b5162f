package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/logger"
	"github.com/nehaa3012/LMS/pkg/monitoring"
	"github.com/nehaa3012/LMS/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Feedback struct {
	QuestionID  uint   `json:"questionId"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
}

type ScoreResult struct {
	Score    float64    `json:"score"`
	IsPassed bool       `json:"isPassed"`
	Correct  int        `json:"correct"`
	Total    int        `json:"total"`
	Feedback []Feedback `json:"feedback"`
}

// ScoreAttempt 纯函数：按题目固定顺序逐题精确比较，未作答视为错误。
// 没有题目的测验得 0 分并视为通过
func ScoreAttempt(quiz *model.Quiz, answers map[uint]string) ScoreResult {
	result := ScoreResult{
		Total:    len(quiz.Questions),
		Feedback: make([]Feedback, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		answer, ok := answers[q.ID]
		correct := ok && answer == q.CorrectAnswer
		if correct {
			result.Correct++
		}
		result.Feedback = append(result.Feedback, Feedback{
			QuestionID:  q.ID,
			Correct:     correct,
			Explanation: q.Explanation,
		})
	}

	if result.Total == 0 {
		result.IsPassed = true
		return result
	}
	result.Score = float64(result.Correct*100) / float64(result.Total)
	result.IsPassed = result.Score >= float64(quiz.PassingScore)
	return result
}

// PointsForResult 通过 +QuizPassPoints，满分再加 PerfectScoreBonus
func PointsForResult(r ScoreResult, cfg config.GamificationConfig) int {
	if !r.IsPassed {
		return 0
	}
	points := cfg.QuizPassPoints
	if r.Total > 0 && r.Correct == r.Total {
		points += cfg.PerfectScoreBonus
	}
	return points
}

type AttemptResult struct {
	Attempt       *model.QuizAttempt `json:"attempt"`
	Score         float64            `json:"score"`
	IsPassed      bool               `json:"isPassed"`
	PointsAwarded int                `json:"pointsAwarded"`
	Feedback      []Feedback         `json:"feedback"`
}

type QuizView struct {
	Quiz     *model.Quiz         `json:"quiz"`
	Attempts []model.QuizAttempt `json:"attempts"`
}

type QuizService struct {
	DB           *gorm.DB
	QuizRepo     *repository.QuizRepository
	Points       *PointsService
	Users        *UserService
	Achievements *AchievementService
	Rules        *Rules
	Now          Clock
}

func NewQuizService(
	db *gorm.DB,
	quizRepo *repository.QuizRepository,
	points *PointsService,
	users *UserService,
	achievements *AchievementService,
	rules *Rules,
) *QuizService {
	return &QuizService{
		DB:           db,
		QuizRepo:     quizRepo,
		Points:       points,
		Users:        users,
		Achievements: achievements,
		Rules:        rules,
		Now:          systemClock,
	}
}

// GetQuiz 题目不含答案，附带当前用户的历史作答
func (s *QuizService) GetQuiz(ctx context.Context, userID, quizID uint) (*QuizView, error) {
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.QuizRepo.FindAttempts(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []model.QuizAttempt{}
	}
	return &QuizView{Quiz: quiz, Attempts: attempts}, nil
}

// SubmitAttempt 每次提交都追加一条作答记录；通过即发积分，重复通过同样发放
func (s *QuizService) SubmitAttempt(ctx context.Context, userID, quizID uint, answers map[uint]string) (*AttemptResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizService.SubmitAttempt")
	defer span.End()
	span.SetAttributes(attribute.Int64("quiz.id", int64(quizID)))

	if answers == nil {
		return nil, fmt.Errorf("%w: answers are required", util.ErrValidation)
	}

	quiz, err := s.QuizRepo.FindWithQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}

	scored := ScoreAttempt(quiz, answers)
	points := PointsForResult(scored, s.Rules.Get())

	attempt := &model.QuizAttempt{
		UserID:        userID,
		QuizID:        quizID,
		Answers:       datatypes.NewJSONType(answers),
		Score:         scored.Score,
		IsPassed:      scored.IsPassed,
		PointsAwarded: points,
		CompletedAt:   s.Now(),
	}

	var award *Award
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.QuizRepo.WithTx(tx).CreateAttempt(ctx, attempt); err != nil {
			return err
		}
		var err error
		award, err = s.Points.AwardInTx(ctx, tx, userID, points, model.PointSourceQuiz, attempt.ID)
		return err
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	monitoring.QuizAttempts.WithLabelValues(strconv.FormatBool(scored.IsPassed)).Inc()
	s.Points.Announce(ctx, award)
	span.SetAttributes(attribute.Float64("quiz.score", scored.Score), attribute.Bool("quiz.passed", scored.IsPassed))

	if s.Users != nil {
		if _, err := s.Users.RecordActivity(ctx, userID); err != nil {
			logger.Log.Error("Failed to record activity", zap.Uint("userId", userID), zap.Error(err))
		}
	}
	if scored.IsPassed && s.Achievements != nil {
		if _, err := s.Achievements.EvaluateAndUnlock(ctx, userID); err != nil {
			logger.Log.Error("Failed to evaluate achievements", zap.Uint("userId", userID), zap.Error(err))
		}
	}

	return &AttemptResult{
		Attempt:       attempt,
		Score:         scored.Score,
		IsPassed:      scored.IsPassed,
		PointsAwarded: points,
		Feedback:      scored.Feedback,
	}, nil
}
