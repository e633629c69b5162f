package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nehaa3012/LMS/internal/model"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserService struct {
	DB       *gorm.DB
	UserRepo *repository.UserRepository
	Location *time.Location
	Now      Clock

	// OnRankChanged 连续天数变化提交后回调
	OnRankChanged func(ctx context.Context)
}

func NewUserService(db *gorm.DB, userRepo *repository.UserRepository, loc *time.Location) *UserService {
	if loc == nil {
		loc = time.UTC
	}
	return &UserService{
		DB:       db,
		UserRepo: userRepo,
		Location: loc,
		Now:      systemClock,
	}
}

// SyncUser 用令牌里的资料创建或刷新本地镜像
func (s *UserService) SyncUser(ctx context.Context, claims *util.Claims) (*model.User, error) {
	if claims == nil || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", util.ErrValidation)
	}
	return s.UserRepo.UpsertByExternalID(ctx, &model.User{
		ExternalID: claims.Subject,
		Name:       claims.Name,
		Email:      claims.Email,
		ImageURL:   claims.ImageURL,
	})
}

func (s *UserService) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	return s.UserRepo.FindByID(ctx, userID)
}

// RecordActivity 维护连续学习天数，返回更新后的值
func (s *UserService) RecordActivity(ctx context.Context, userID uint) (int, error) {
	now := s.Now()
	var streak int
	var changed bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.UserRepo.WithTx(tx)
		user, err := users.FindForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		streak, changed = NextStreak(user.Streak, user.LastActiveAt, now, s.Location)
		if !changed {
			return nil
		}
		return users.UpdateStreak(ctx, userID, streak, now)
	})
	if err != nil {
		return streak, err
	}
	if changed && s.OnRankChanged != nil {
		s.OnRankChanged(ctx)
	}
	return streak, nil
}

// NextStreak 同一天不变，隔一天加一，中断后重置为 1
func NextStreak(current int, lastActive *time.Time, now time.Time, loc *time.Location) (int, bool) {
	if lastActive == nil || current <= 0 {
		return 1, true
	}
	days := dayNumber(now, loc) - dayNumber(*lastActive, loc)
	switch {
	case days == 0:
		return current, false
	case days == 1:
		return current + 1, true
	case days > 1:
		return 1, true
	default:
		// 时钟回拨，保持原值
		return current, false
	}
}

func dayNumber(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Resolve 已存在且资料未变时不写库
func (s *UserService) Resolve(c *gin.Context, claims *util.Claims) (*model.User, error) {
	ctx := c.Request.Context()
	if claims == nil || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", util.ErrValidation)
	}
	user, err := s.UserRepo.FindByExternalID(ctx, claims.Subject)
	if err == nil && user.Name == claims.Name && user.Email == claims.Email && user.ImageURL == claims.ImageURL {
		return user, nil
	}
	if err != nil && !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}
	return s.SyncUser(ctx, claims)
}
