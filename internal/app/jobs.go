package app

import (
	"context"
	"time"

	"github.com/nehaa3012/LMS/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// startBackgroundTasks 对账任务按 cron 表达式在配置的时区运行
func (a *App) startBackgroundTasks() {
	spec := a.Config.Jobs.ReconcileCron
	if spec == "" {
		return
	}

	loc, err := time.LoadLocation(a.Config.Jobs.Timezone)
	if err != nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if _, err := a.Reconcile(ctx); err != nil {
			logger.Log.Error("Scheduled reconcile failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Log.Error("Invalid reconcile schedule", zap.String("cron", spec), zap.Error(err))
		return
	}

	c.Start()
	a.cron = c
	logger.Log.Info("Reconcile job scheduled", zap.String("cron", spec), zap.String("timezone", loc.String()))
}
