package health

import (
	"context"
	"time"

	"github.com/taoyao-code/vesc-bridge/internal/hublink"
)

// HubChecker Hub 命令通道健康检查器。
// 断链是轮询失败后的常态（下个周期自动重连），因此只降级不判死。
type HubChecker struct {
	client *hublink.Client
}

// NewHubChecker 创建 Hub 链路检查器
func NewHubChecker(client *hublink.Client) *HubChecker {
	return &HubChecker{client: client}
}

// Name 返回检查器名称
func (c *HubChecker) Name() string {
	return "hublink"
}

// Check 执行健康检查
func (c *HubChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	connected := c.client.IsConnected()
	status := StatusHealthy
	message := "ok"
	if !connected {
		status = StatusDegraded
		message = "link down, reconnects on next cycle"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"connected": connected,
		},
		Latency: time.Since(start),
	}
}
