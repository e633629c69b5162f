package model

import (
	"time"
)

// Certificate 每个 (user, course) 至多一张，唯一约束由数据库保证
type Certificate struct {
	BaseModel
	UserID            uint      `gorm:"uniqueIndex:idx_certificate_user_course;not null" json:"userId"`
	CourseID          uint      `gorm:"uniqueIndex:idx_certificate_user_course;not null" json:"courseId"`
	CertificateNumber string    `gorm:"size:32;uniqueIndex;not null" json:"certificateNumber"`
	CompletionDate    time.Time `json:"completionDate"`
	IssueDate         time.Time `json:"issueDate"`
	ArtifactURL       string    `gorm:"size:512" json:"artifactUrl,omitempty"`
	Course            *Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Certificate) TableName() string {
	return "certificates"
}
