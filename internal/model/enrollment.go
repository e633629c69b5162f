package model

import (
	"time"
)

type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
)

// Enrollment 每个 (user, course) 至多一条，必须先于该课程的任何 Progress 创建
type Enrollment struct {
	BaseModel
	UserID         uint             `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"userId"`
	CourseID       uint             `gorm:"uniqueIndex:idx_enrollment_user_course;not null;index" json:"courseId"`
	Status         EnrollmentStatus `gorm:"size:20;not null;default:'ENROLLED';index" json:"status"`
	TotalTimeSpent int              `gorm:"not null;default:0" json:"totalTimeSpent"` // 分钟
	LastAccessedAt *time.Time       `json:"lastAccessedAt"`
	CompletedAt    *time.Time       `json:"completedAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
