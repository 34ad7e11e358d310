package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/vesc-bridge/internal/health"
	"github.com/taoyao-code/vesc-bridge/internal/hublink"
)

// NewHealthAggregator 创建健康检查聚合器
// 初始时只带 Hub 链路检查器，缓存/数据库检查器按启用情况追加
func NewHealthAggregator(client *hublink.Client) *health.Aggregator {
	return health.NewAggregator(
		health.NewHubChecker(client),
	)
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddDatabaseChecker 添加数据库检查器到聚合器
func AddDatabaseChecker(aggregator *health.Aggregator, dbpool *pgxpool.Pool) {
	if dbpool != nil {
		aggregator.AddChecker(health.NewDatabaseChecker(dbpool))
	}
}
