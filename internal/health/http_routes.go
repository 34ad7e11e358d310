package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 注册健康检查 HTTP 路由
func RegisterHTTPRoutes(r *gin.Engine, aggregator *Aggregator) {
	// Readiness 探针
	r.GET("/health/ready", func(c *gin.Context) {
		if !aggregator.Ready(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"ready":  false,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"ready":  true,
		})
	})

	// Liveness 探针
	r.GET("/health/live", func(c *gin.Context) {
		if !aggregator.Alive() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"alive": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alive": true})
	})

	// 详细健康报告；降级仍返回 200
	r.GET("/health", func(c *gin.Context) {
		results := aggregator.CheckAll(c.Request.Context())
		overall := OverallFrom(results)

		code := http.StatusOK
		if overall == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, HealthReport{
			Status:    overall,
			Timestamp: time.Now(),
			Checks:    results,
		})
	})
}
