package model

import (
	"time"

	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AllModels 迁移顺序与外键依赖一致
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&CourseModule{},
		&Lesson{},
		&Enrollment{},
		&Progress{},
		&Quiz{},
		&Question{},
		&QuizAttempt{},
		&PointEntry{},
		&Achievement{},
		&UserAchievement{},
		&Certificate{},
		&StudySession{},
	}
}
