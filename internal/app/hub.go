package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/discovery"
	"github.com/taoyao-code/vesc-bridge/internal/hublink"
	"github.com/taoyao-code/vesc-bridge/internal/metrics"
	"github.com/taoyao-code/vesc-bridge/internal/poller"
)

// NewHubClient 创建 VESC Hub 命令通道客户端
func NewHubClient(cfg cfgpkg.HubConfig, log *zap.Logger, m *metrics.AppMetrics) *hublink.Client {
	return hublink.New(cfg, log, m)
}

// NewPoller 创建遥测轮询器
func NewPoller(client *hublink.Client, cfg cfgpkg.PollConfig, log *zap.Logger, m *metrics.AppMetrics, sinks ...poller.Sink) *poller.Poller {
	return poller.New(client, cfg, log, m, sinks...)
}

// NewDiscovery 创建登记表与扫描器；别名表加载失败不阻断启动
func NewDiscovery(client *hublink.Client, cfg cfgpkg.ScanConfig, log *zap.Logger, m *metrics.AppMetrics) (*discovery.Registry, *discovery.Scanner) {
	reg := discovery.NewRegistry()

	var aliases *discovery.AliasMap
	if cfg.AliasFile != "" {
		am, err := discovery.LoadAliasMap(cfg.AliasFile)
		if err != nil {
			log.Warn("load alias map failed",
				zap.String("path", cfg.AliasFile),
				zap.Error(err))
		} else {
			aliases = am
			log.Info("alias map loaded", zap.String("path", cfg.AliasFile))
		}
	}

	scanner := discovery.NewScanner(client, reg, aliases, cfg, log, m)
	return reg, scanner
}
