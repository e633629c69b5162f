package service

import (
	"sync/atomic"
	"time"

	"github.com/nehaa3012/LMS/internal/config"
)

// Rules 可热更新的积分规则，配置重载时整体替换
type Rules struct {
	v atomic.Pointer[config.GamificationConfig]
}

func NewRules(cfg config.GamificationConfig) *Rules {
	r := &Rules{}
	r.Set(cfg)
	return r
}

func (r *Rules) Get() config.GamificationConfig {
	return *r.v.Load()
}

func (r *Rules) Set(cfg config.GamificationConfig) {
	r.v.Store(&cfg)
}

// Clock 服务内统一取时间，测试可替换
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
