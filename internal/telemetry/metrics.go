package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizmaster",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quizmaster",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency, by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	QuizUpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizmaster",
		Name:      "quizapi_requests_total",
		Help:      "Requests sent to the quiz provider, by outcome.",
	}, []string{"outcome"})

	LeaderboardSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizmaster",
		Name:      "leaderboard_submissions_total",
		Help:      "Accepted leaderboard submissions, by known category or \"other\".",
	}, []string{"category"})

	LeaderboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizmaster",
		Name:      "leaderboard_cache_total",
		Help:      "Leaderboard cache lookups, by result.",
	}, []string{"result"})

	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quizmaster",
		Name:      "leaderboard_stream_subscribers",
		Help:      "Open leaderboard stream connections.",
	})
)

// GinMetrics records request count and latency per matched route.
func GinMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
