package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nehaa3012/LMS/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// 事件主题（不含前缀）
const (
	SubjectPointsAwarded       = "points.awarded"
	SubjectAchievementUnlocked = "achievement.unlocked"
	SubjectCertificateIssued   = "certificate.issued"
	SubjectCourseCompleted     = "course.completed"
)

// Event 发布到总线上的领域事件
type Event struct {
	Subject    string      `json:"subject"`
	UserID     uint        `json:"userId"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload,omitempty"`
}

type PointsAwarded struct {
	Amount   int    `json:"amount"`
	Source   string `json:"source"`
	SourceID uint   `json:"sourceId"`
}

type AchievementUnlocked struct {
	AchievementID uint   `json:"achievementId"`
	Key           string `json:"key"`
	PointsReward  int    `json:"pointsReward"`
}

type CertificateIssued struct {
	CertificateID     uint   `json:"certificateId"`
	CourseID          uint   `json:"courseId"`
	CertificateNumber string `json:"certificateNumber"`
}

type CourseCompleted struct {
	CourseID uint `json:"courseId"`
}

// Publisher 事件发布是尽力而为的，失败不影响已提交的账本数据
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher 未配置 NATS 时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("progress-ledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Log.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject(event.Subject), data)
}

func (p *NATSPublisher) subject(s string) string {
	if p.prefix == "" {
		return s
	}
	return p.prefix + "." + s
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// MemoryPublisher 在内存中记录事件，供测试断言
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

func (p *MemoryPublisher) Events(subject string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if subject == "" || e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}

// Emit 发布失败只记录日志
func Emit(ctx context.Context, pub Publisher, subject string, userID uint, payload interface{}) {
	if pub == nil {
		return
	}
	err := pub.Publish(ctx, Event{
		Subject:    subject,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		logger.Log.Warn("Failed to publish event",
			zap.String("subject", subject),
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
	}
}
