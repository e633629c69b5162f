package model

import (
	"time"
)

// User 身份服务用户在本地的镜像，积分和连续学习天数由本服务维护
// swagger:model User
type User struct {
	BaseModel
	ExternalID   string     `gorm:"size:191;uniqueIndex;not null" json:"externalId"`
	Name         string     `gorm:"size:100" json:"name"`
	Email        string     `gorm:"size:191" json:"email"`
	ImageURL     string     `gorm:"size:512" json:"imageUrl"`
	Points       int        `gorm:"not null;default:0;index" json:"points"`
	Streak       int        `gorm:"not null;default:0" json:"streak"`
	LastActiveAt *time.Time `json:"lastActiveAt"`
}

func (User) TableName() string {
	return "users"
}
