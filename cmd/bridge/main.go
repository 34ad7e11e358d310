package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/taoyao-code/vesc-bridge/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/logging"
)

// @title           vesc-bridge API
// @version         1.0
// @description     VESC Hub 桥接服务对外查询与控制接口

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 统一启动流程
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		zap.L().Error("bridge exited with error", zap.Error(err))
		os.Exit(1)
	}
}
