// @title Progress Ledger API
// @version 1.0
// @description 学习进度、测验、积分、成就、证书与排行榜服务。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nehaa3012/LMS/internal/app"
	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configDir string

	load := func() (*config.Config, error) {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		os.Setenv("LEDGER_CONFIG_FILE", filepath.Join(configDir, "config.yaml"))
		return cfg, nil
	}

	serve := func(migrate bool) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		cfg.ForceMigrate = migrate
		application, err := app.Bootstrap(cfg)
		if err != nil {
			return err
		}
		application.Run()
		return nil
	}

	cmd := &cobra.Command{
		Use:          "ledger",
		Short:        "Progress & gamification ledger service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(false)
		},
	}
	cmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "configs", "Directory containing config.yaml")

	var migrate bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(migrate)
		},
	}
	// 启动时强制执行数据库迁移（即使是 release 模式）
	serveCmd.Flags().BoolVar(&migrate, "migrate", false, "Run database migration on start, even in release mode")
	cmd.AddCommand(serveCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Run database migration and sync the achievement catalog, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			cfg.ForceMigrate = true
			cfg.MigrateOnly = true
			application, err := app.Bootstrap(cfg)
			if err != nil {
				return err
			}
			application.Close(context.Background())
			fmt.Println("数据库迁移完成")
			return nil
		},
	})

	var timeout time.Duration
	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute derived ledger data for recently active users",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			application, err := app.Bootstrap(cfg)
			if err != nil {
				return err
			}
			defer application.Close(context.Background())

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			report, err := application.Reconcile(ctx)
			if err != nil {
				logger.Log.Error("Reconcile failed", zap.Error(err))
				return err
			}
			fmt.Printf("users=%d enrollments_fixed=%d courses_completed=%d achievements_unlocked=%d failed=%d\n",
				report.Users, report.EnrollmentsFixed, report.CoursesCompleted, report.AchievementsUnlocked, report.Failed)
			return nil
		},
	}
	reconcileCmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "Maximum run time")
	cmd.AddCommand(reconcileCmd)

	return cmd
}
