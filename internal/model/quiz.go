package model

import (
	"time"

	"gorm.io/datatypes"
)

// Quiz 题目顺序在创建时固定（按 Position, ID 排序）
type Quiz struct {
	BaseModel
	LessonID     uint       `gorm:"index;not null" json:"lessonId"`
	Title        string     `gorm:"size:255" json:"title"`
	PassingScore int        `gorm:"not null;default:70" json:"passingScore"`
	Questions    []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// Question 由 AI 生成服务提供，本服务不校验题目质量
type Question struct {
	BaseModel
	QuizID        uint                        `gorm:"index;not null" json:"quizId"`
	Position      int                         `gorm:"default:0" json:"position"`
	Text          string                      `gorm:"type:text" json:"question"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer string                      `gorm:"type:text" json:"-"`
	Explanation   string                      `gorm:"type:text" json:"-"`
	Difficulty    string                      `gorm:"size:20" json:"difficulty"`
	Topic         string                      `gorm:"size:100" json:"topic"`
}

func (Question) TableName() string {
	return "questions"
}

// QuizAttempt 只追加，同一用户的多次作答全部保留
type QuizAttempt struct {
	BaseModel
	UserID        uint                                `gorm:"index:idx_attempt_user_quiz;not null" json:"userId"`
	QuizID        uint                                `gorm:"index:idx_attempt_user_quiz;not null" json:"quizId"`
	Answers       datatypes.JSONType[map[uint]string] `json:"answers"`
	Score         float64                             `gorm:"not null" json:"score"`
	IsPassed      bool                                `gorm:"not null;index" json:"isPassed"`
	PointsAwarded int                                 `gorm:"not null;default:0" json:"pointsAwarded"`
	CompletedAt   time.Time                           `json:"completedAt"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
