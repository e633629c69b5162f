package model

import (
	"time"
)

// Progress 用户在单个课时上的状态。IsCompleted 一旦为 true 不再回退，
// CompletedAt 只在第一次完成时写入
// swagger:model Progress
type Progress struct {
	BaseModel
	UserID       uint       `gorm:"uniqueIndex:idx_progress_user_lesson;not null" json:"userId"`
	LessonID     uint       `gorm:"uniqueIndex:idx_progress_user_lesson;not null;index" json:"lessonId"`
	IsCompleted  bool       `gorm:"not null;default:false" json:"isCompleted"`
	TimeSpent    int        `gorm:"not null;default:0" json:"timeSpent"` // 秒
	LastPosition int        `gorm:"not null;default:0" json:"lastPosition"`
	CompletedAt  *time.Time `json:"completedAt"`
}

func (Progress) TableName() string {
	return "progress"
}
