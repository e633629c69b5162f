package service

import (
	"context"
	"fmt"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/util"
	"github.com/nehaa3012/LMS/pkg/events"
	"github.com/nehaa3012/LMS/pkg/logger"
	"github.com/nehaa3012/LMS/pkg/monitoring"
	"github.com/nehaa3012/LMS/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Award 一次积分发放，事务提交后用于指标和事件
type Award struct {
	UserID   uint
	Amount   int
	Source   model.PointSource
	SourceID uint
}

// PointsService 积分账本，用户积分只通过这里递增
type PointsService struct {
	DB         *gorm.DB
	UserRepo   *repository.UserRepository
	PointsRepo *repository.PointsRepository
	Events     events.Publisher

	// OnAwarded 提交后回调，排行榜缓存失效用
	OnAwarded func(ctx context.Context)
}

func NewPointsService(db *gorm.DB, userRepo *repository.UserRepository, pointsRepo *repository.PointsRepository, publisher events.Publisher) *PointsService {
	return &PointsService{
		DB:         db,
		UserRepo:   userRepo,
		PointsRepo: pointsRepo,
		Events:     publisher,
	}
}

// AwardPoints 在独立事务中发放积分
func (s *PointsService) AwardPoints(ctx context.Context, userID uint, amount int, source model.PointSource, sourceID uint) error {
	ctx, span := tracing.Tracer.Start(ctx, "PointsService.AwardPoints")
	defer span.End()
	span.SetAttributes(attribute.Int("points.amount", amount), attribute.String("points.source", string(source)))

	var awarded *Award
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		awarded, err = s.AwardInTx(ctx, tx, userID, amount, source, sourceID)
		return err
	})
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	s.Announce(ctx, awarded)
	return nil
}

// AwardInTx 在调用方事务内递增积分并追加流水；amount 为 0 时返回 nil Award
func (s *PointsService) AwardInTx(ctx context.Context, tx *gorm.DB, userID uint, amount int, source model.PointSource, sourceID uint) (*Award, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: points amount must not be negative, got %d", util.ErrValidation, amount)
	}
	if amount == 0 {
		return nil, nil
	}
	if err := s.UserRepo.WithTx(tx).IncrementPoints(ctx, userID, amount); err != nil {
		return nil, err
	}
	entry := &model.PointEntry{
		UserID:   userID,
		Amount:   amount,
		Source:   source,
		SourceID: sourceID,
	}
	if err := s.PointsRepo.WithTx(tx).Append(ctx, entry); err != nil {
		return nil, err
	}
	return &Award{UserID: userID, Amount: amount, Source: source, SourceID: sourceID}, nil
}

// Announce 事务提交之后调用
func (s *PointsService) Announce(ctx context.Context, awards ...*Award) {
	announced := false
	for _, a := range awards {
		if a == nil {
			continue
		}
		announced = true
		monitoring.PointsAwarded.WithLabelValues(string(a.Source)).Add(float64(a.Amount))
		logger.Log.Debug("Points awarded",
			zap.Uint("userId", a.UserID),
			zap.Int("amount", a.Amount),
			zap.String("source", string(a.Source)),
		)
		events.Emit(ctx, s.Events, events.SubjectPointsAwarded, a.UserID, events.PointsAwarded{
			Amount:   a.Amount,
			Source:   string(a.Source),
			SourceID: a.SourceID,
		})
	}
	if announced && s.OnAwarded != nil {
		s.OnAwarded(ctx)
	}
}

// GetHistory 最近的积分流水
func (s *PointsService) GetHistory(ctx context.Context, userID uint, limit int) ([]model.PointEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.PointsRepo.FindByUser(ctx, userID, limit)
}
