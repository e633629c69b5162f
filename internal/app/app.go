package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/controller"
	"github.com/nehaa3012/LMS/internal/repository"
	"github.com/nehaa3012/LMS/internal/service"
	"github.com/nehaa3012/LMS/pkg/configwatcher"
	"github.com/nehaa3012/LMS/pkg/database"
	"github.com/nehaa3012/LMS/pkg/events"
	"github.com/nehaa3012/LMS/pkg/logger"
	"github.com/nehaa3012/LMS/pkg/monitoring"
	"github.com/nehaa3012/LMS/pkg/security"
	"github.com/nehaa3012/LMS/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Events          events.Publisher
	services        *services
	configCallbacks []func(*config.Config)
	limiter         *security.RateLimiter
	cron            *cron.Cron
	shutdown        []func(ctx context.Context)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	enrollment  *repository.EnrollmentRepository
	progress    *repository.ProgressRepository
	quiz        *repository.QuizRepository
	points      *repository.PointsRepository
	achievement *repository.AchievementRepository
	certificate *repository.CertificateRepository
	session     *repository.SessionRepository
}

type services struct {
	rules        *service.Rules
	storage      *service.StorageService
	user         *service.UserService
	points       *service.PointsService
	achievement  *service.AchievementService
	progress     *service.ProgressService
	quiz         *service.QuizService
	certificate  *service.CertificateService
	studySession *service.StudySessionService
	leaderboard  *service.LeaderboardService
	reconcile    *service.ReconcileService
}

type controllers struct {
	progress     *controller.ProgressController
	quiz         *controller.QuizController
	certificate  *controller.CertificateController
	studySession *controller.StudySessionController
	gamification *controller.GamificationController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		progress:    repository.NewProgressRepository(db),
		quiz:        repository.NewQuizRepository(db),
		points:      repository.NewPointsRepository(db),
		achievement: repository.NewAchievementRepository(db),
		certificate: repository.NewCertificateRepository(db),
		session:     repository.NewSessionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	loc, err := time.LoadLocation(cfg.Jobs.Timezone)
	if err != nil {
		logger.Log.Warn("Unknown timezone, using UTC", zap.String("timezone", cfg.Jobs.Timezone))
		loc = time.UTC
	}

	s.rules = service.NewRules(cfg.Gamification)
	s.storage = service.NewStorageService(context.Background(), &cfg.Storage)
	s.user = service.NewUserService(db, repos.user, loc)
	s.points = service.NewPointsService(db, repos.user, repos.points, a.Events)
	s.leaderboard = service.NewLeaderboardService(repos.user, rdb, cfg.Leaderboard.DefaultLimit, cfg.Leaderboard.MaxLimit, cfg.Leaderboard.CacheTTL)
	s.points.OnAwarded = s.leaderboard.Invalidate
	s.user.OnRankChanged = s.leaderboard.Invalidate

	s.achievement = service.NewAchievementService(
		db,
		repos.achievement,
		repos.user,
		repos.progress,
		repos.enrollment,
		repos.quiz,
		s.points,
		a.Events,
	)
	s.progress = service.NewProgressService(db, repos.course, repos.enrollment, repos.progress, s.user, s.achievement, a.Events)
	s.progress.OnRankChanged = s.leaderboard.Invalidate
	s.quiz = service.NewQuizService(db, repos.quiz, s.points, s.user, s.achievement, s.rules)
	s.certificate = service.NewCertificateService(
		repos.certificate,
		repos.course,
		repos.progress,
		repos.enrollment,
		repos.user,
		s.storage,
		&service.CertificateRenderer{FontPath: cfg.Storage.CertificateFont},
		s.achievement,
		a.Events,
	)
	s.certificate.OnRankChanged = s.leaderboard.Invalidate
	s.studySession = service.NewStudySessionService(db, repos.course, repos.session, repos.enrollment, s.points, s.user, s.achievement, s.rules)
	s.reconcile = service.NewReconcileService(db, repos.user, repos.enrollment, repos.progress, repos.session, s.progress, s.achievement)

	// 热更新：积分规则和排行榜缓存时间
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.rules.Set(newCfg.Gamification)
		s.leaderboard.SetTTL(newCfg.Leaderboard.CacheTTL)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		progress:     controller.NewProgressController(s.progress),
		quiz:         controller.NewQuizController(s.quiz),
		certificate:  controller.NewCertificateController(s.certificate),
		studySession: controller.NewStudySessionController(s.studySession),
		gamification: controller.NewGamificationController(s.achievement, s.leaderboard, s.points),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute, nil)
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// Bootstrap 初始化日志、数据库、Redis、事件总线并构建 App
func Bootstrap(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, migrate)
	if err != nil {
		return nil, err
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" && !cfg.MigrateOnly {
		p, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			// 事件只是通知，连不上不影响账本
			logger.Log.Warn("NATS unavailable, events disabled", zap.Error(err))
		} else {
			publisher = p
		}
	}

	app := New(cfg, db, rdb, publisher)

	if migrate {
		n, err := app.services.achievement.SyncCatalog(context.Background(), cfg.Gamification.AchievementsFile)
		if err != nil {
			logger.Log.Error("Failed to sync achievement catalog", zap.Error(err))
		} else {
			logger.Log.Info("Achievement catalog synced", zap.Int("count", n))
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("progress-ledger", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.shutdown = append(app.shutdown, func(ctx context.Context) {
				if err := tp.Shutdown(ctx); err != nil {
					logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
				}
			})
		}
	}

	return app, nil
}

// New 用已建立的连接组装服务和路由，测试直接调用
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, publisher events.Publisher) *App {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Events: publisher,
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(app.services, db, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, app.services, cfg)

	if cfg.Storage.Type == "" || cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.shutdown = append(app.shutdown, func(context.Context) {
		if err := app.Events.Close(); err != nil {
			logger.Log.Warn("Failed to close event publisher", zap.Error(err))
		}
	})

	return app
}

// Reconcile 供命令行和定时任务调用
func (a *App) Reconcile(ctx context.Context) (*service.ReconcileReport, error) {
	lookback := time.Duration(a.Config.Jobs.ReconcileLookback) * time.Hour
	return a.services.reconcile.Run(ctx, lookback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	go a.limiter.Run(ctx.Done())
	a.startBackgroundTasks()

	go func() {
		err := configwatcher.WatchConfig(ctx, a.configPath(), a.applyConfig)
		if err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	// 关闭服务（5 秒超时）
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close(shutdownCtx)

	logger.Log.Info("Server exiting")
}

// Close 释放事件总线、追踪等资源
func (a *App) Close(ctx context.Context) {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		a.shutdown[i](ctx)
	}
	a.shutdown = nil
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = logger.Log.Sync()
}

func (a *App) configPath() string {
	if p := os.Getenv("LEDGER_CONFIG_FILE"); p != "" {
		return p
	}
	return "configs/config.yaml"
}
