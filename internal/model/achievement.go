package model

import (
	"time"
)

type AchievementCondition string

const (
	ConditionPoints           AchievementCondition = "points"
	ConditionLessonsCompleted AchievementCondition = "lessons_completed"
	ConditionCoursesCompleted AchievementCondition = "courses_completed"
	ConditionStreak           AchievementCondition = "streak"
	ConditionQuizzesPassed    AchievementCondition = "quizzes_passed"
	ConditionStudyMinutes     AchievementCondition = "study_minutes"
)

// Achievement 规则型成就：Condition 对应的统计值 >= Threshold 时解锁
type Achievement struct {
	BaseModel
	Key          string               `gorm:"size:64;uniqueIndex;not null" json:"key" yaml:"key"`
	Name         string               `gorm:"size:100;not null" json:"name" yaml:"name"`
	Description  string               `gorm:"size:255" json:"description" yaml:"description"`
	Icon         string               `gorm:"size:255" json:"icon" yaml:"icon"`
	Condition    AchievementCondition `gorm:"size:32;not null" json:"condition" yaml:"condition"`
	Threshold    int                  `gorm:"not null" json:"threshold" yaml:"threshold"`
	PointsReward int                  `gorm:"not null;default:0" json:"pointsReward" yaml:"points_reward"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement 每个 (user, achievement) 至多一条，是奖励幂等的依据
type UserAchievement struct {
	BaseModel
	UserID        uint        `gorm:"uniqueIndex:idx_user_achievement;not null" json:"userId"`
	AchievementID uint        `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievementId"`
	UnlockedAt    time.Time   `json:"unlockedAt"`
	Achievement   Achievement `gorm:"foreignKey:AchievementID" json:"achievement"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}
