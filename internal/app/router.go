package app

import (
	"github.com/nehaa3012/LMS/docs"
	"github.com/nehaa3012/LMS/internal/config"
	"github.com/nehaa3012/LMS/internal/middleware"
	"github.com/nehaa3012/LMS/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(&cfg.JWT, s.user))
	{
		a.registerLearnerRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/leaderboard", c.gamification.GetLeaderboard)
		public.GET("/certificates/verify/:number", c.certificate.Verify)
	}
}

func (a *App) registerLearnerRoutes(r *gin.RouterGroup, c *controllers) {
	courses := r.Group("/courses/:courseId")
	{
		courses.POST("/enroll", c.progress.Enroll)
		courses.GET("/progress", c.progress.GetCourseProgress)
	}

	r.POST("/lessons/:lessonId/progress", c.progress.RecordLessonProgress)

	quiz := r.Group("/quiz/:quizId")
	{
		quiz.GET("", c.quiz.GetQuiz)
		quiz.POST("/attempt", c.quiz.SubmitAttempt)
	}

	certificates := r.Group("/certificates")
	{
		certificates.POST("/generate", c.certificate.Generate)
		certificates.GET("", c.certificate.List)
		certificates.GET("/:id", c.certificate.Get)
	}

	sessions := r.Group("/study-session")
	{
		sessions.POST("/start", c.studySession.Start)
		sessions.POST("/end", c.studySession.End)
	}

	r.GET("/achievements", c.gamification.GetAchievements)
	r.GET("/points/history", c.gamification.GetPointsHistory)
}
