package model

type PointSource string

const (
	PointSourceQuiz        PointSource = "quiz"
	PointSourceStudy       PointSource = "study_session"
	PointSourceAchievement PointSource = "achievement"
)

// PointEntry 积分流水，只追加；User.Points 是与之同事务递增的计数器
type PointEntry struct {
	BaseModel
	UserID   uint        `gorm:"index;not null" json:"userId"`
	Amount   int         `gorm:"not null" json:"amount"`
	Source   PointSource `gorm:"size:32;not null;index" json:"source"`
	SourceID uint        `gorm:"not null;default:0" json:"sourceId"`
}

func (PointEntry) TableName() string {
	return "point_entries"
}
