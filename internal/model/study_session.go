package model

import (
	"time"
)

// StudySession 状态只有 ACTIVE -> ENDED，结束后不可再次结束
type StudySession struct {
	BaseModel
	UserID       uint       `gorm:"index;not null" json:"userId"`
	CourseID     uint       `gorm:"index;not null" json:"courseId"`
	LessonID     *uint      `json:"lessonId"`
	StartTime    time.Time  `gorm:"not null" json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	Duration     int        `gorm:"not null;default:0" json:"duration"` // 秒
	IsActive     bool       `gorm:"not null;default:true;index" json:"isActive"`
	PointsEarned int        `gorm:"not null;default:0" json:"pointsEarned"`
}

func (StudySession) TableName() string {
	return "study_sessions"
}
