package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_points_awarded_total",
			Help: "Points credited to users, by source",
		},
		[]string{"source"},
	)

	CertificatesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_certificates_issued_total",
			Help: "Certificates newly issued",
		},
	)

	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_achievements_unlocked_total",
			Help: "Achievements unlocked, by achievement key",
		},
		[]string{"key"},
	)

	QuizAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_quiz_attempts_total",
			Help: "Quiz attempts recorded",
		},
		[]string{"passed"},
	)

	StudySessionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_study_session_seconds",
			Help:    "Duration of ended study sessions",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200},
		},
	)
)

var initOnce sync.Once

// Init 重复调用安全，测试里多次构建 app 不会 panic
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			PointsAwarded,
			CertificatesIssued,
			AchievementsUnlocked,
			QuizAttempts,
			StudySessionSeconds,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
