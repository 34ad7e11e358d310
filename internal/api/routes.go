package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/vesc-bridge/internal/api/middleware"
	"github.com/taoyao-code/vesc-bridge/internal/service"
)

// RegisterBridgeRoutes 注册桥接器对外路由
func RegisterBridgeRoutes(
	r *gin.Engine,
	info AppInfo,
	link ControllerLink,
	poll TelemetrySource,
	cache TelemetryCache,
	history TelemetryHistory,
	scans *service.ScanService,
	authCfg middleware.AuthConfig,
	logger *zap.Logger,
) {
	if r == nil || link == nil || scans == nil {
		return
	}

	handler := NewBridgeHandler(info, link, poll, cache, history, scans, logger)

	// API路由组(需要认证)
	api := r.Group("/api")
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	// 状态
	api.GET("/status", handler.GetStatus)

	// 遥测
	api.GET("/telemetry", handler.GetTelemetry)
	api.GET("/telemetry/history", handler.GetTelemetryHistory)
	api.GET("/values", handler.GetValues)

	// 发现
	api.GET("/devices", handler.GetDevices)
	api.GET("/scan", handler.GetScan)
	api.POST("/scan", handler.TriggerScan)

	logger.Info("bridge routes registered", zap.Int("endpoints", 7))
}
