package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const leaderboardKeyPrefix = "leaderboard:top:"

type LeaderboardUser struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type LeaderboardEntry struct {
	Rank             int             `json:"rank"`
	User             LeaderboardUser `json:"user"`
	Points           int             `json:"points"`
	Streak           int             `json:"streak"`
	CoursesCompleted int             `json:"coursesCompleted"`
}

// LeaderboardService Redis 为空时直接查库
type LeaderboardService struct {
	UserRepo     *repository.UserRepository
	Redis        *redis.Client
	DefaultLimit int
	MaxLimit     int

	ttl   atomic.Int64
	group singleflight.Group
}

func NewLeaderboardService(userRepo *repository.UserRepository, rdb *redis.Client, defaultLimit, maxLimit int, ttl time.Duration) *LeaderboardService {
	s := &LeaderboardService{
		UserRepo:     userRepo,
		Redis:        rdb,
		DefaultLimit: defaultLimit,
		MaxLimit:     maxLimit,
	}
	s.SetTTL(ttl)
	return s
}

func (s *LeaderboardService) SetTTL(ttl time.Duration) {
	s.ttl.Store(int64(ttl))
}

// ClampLimit 非正数取默认值，超过上限按上限
func (s *LeaderboardService) ClampLimit(limit int) int {
	if limit <= 0 {
		limit = s.DefaultLimit
	}
	if limit > s.MaxLimit {
		limit = s.MaxLimit
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// GetLeaderboard 积分降序，同分按用户 ID 升序；名次为 1 起的位置序号
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	limit = s.ClampLimit(limit)
	key := leaderboardKeyPrefix + strconv.Itoa(limit)

	if entries, ok := s.fromCache(ctx, key); ok {
		return entries, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// 同一 key 的等待者共享结果，不受发起者取消影响
		loadCtx := context.WithoutCancel(ctx)
		entries, err := s.load(loadCtx, limit)
		if err != nil {
			return nil, err
		}
		s.toCache(loadCtx, key, entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]LeaderboardEntry), nil
}

func (s *LeaderboardService) load(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.UserRepo.FindTopByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank: i + 1,
			User: LeaderboardUser{
				ID:       row.ID,
				Name:     row.Name,
				ImageURL: row.ImageURL,
			},
			Points:           row.Points,
			Streak:           row.Streak,
			CoursesCompleted: row.CoursesCompleted,
		})
	}
	return entries, nil
}

func (s *LeaderboardService) cacheEnabled() bool {
	return s.Redis != nil && s.ttl.Load() > 0
}

func (s *LeaderboardService) fromCache(ctx context.Context, key string) ([]LeaderboardEntry, bool) {
	if !s.cacheEnabled() {
		return nil, false
	}
	data, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("Leaderboard cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (s *LeaderboardService) toCache(ctx context.Context, key string, entries []LeaderboardEntry) {
	if !s.cacheEnabled() {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, data, time.Duration(s.ttl.Load())).Err(); err != nil {
		logger.Log.Warn("Leaderboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 积分变化后清除缓存
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	iter := s.Redis.Scan(ctx, 0, leaderboardKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Log.Warn("Leaderboard cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warn("Leaderboard cache invalidation failed", zap.Error(fmt.Errorf("del %d keys: %w", len(keys), err)))
	}
}
