package repository

import (
	"context"

	"github.com/nehaa3012/LMS/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

// FindWithQuestions 题目按创建时固定的顺序返回
func (r *QuizRepository) FindWithQuestions(ctx context.Context, quizID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC").Order("questions.id ASC")
		}).
		First(&quiz, quizID).Error
	if err != nil {
		return nil, translate(err, "quiz", quizID)
	}
	return &quiz, nil
}

// CreateAttempt 只追加，从不更新或删除作答记录
func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *QuizRepository) FindAttempts(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("completed_at DESC").
		Order("id DESC").
		Find(&attempts).Error
	return attempts, err
}

// CountPassedQuizzes 通过过的不同测验数量
func (r *QuizRepository) CountPassedQuizzes(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("user_id = ? AND is_passed = ?", userID, true).
		Distinct("quiz_id").
		Count(&count).Error
	return count, err
}
