package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHelper 测试辅助工具
type TestHelper struct {
	t      *testing.T
	client *BridgeClient
	config *Config
}

// NewTestHelper 创建测试辅助工具
func NewTestHelper(t *testing.T) *TestHelper {
	cfg := GetConfig()
	if cfg.Verbose {
		t.Logf("Test Configuration:\n%s", cfg.String())
	}
	return &TestHelper{
		t:      t,
		client: NewBridgeClient(cfg),
		config: cfg,
	}
}

// Client 获取API客户端
func (h *TestHelper) Client() *BridgeClient {
	return h.client
}

// Config 获取配置
func (h *TestHelper) Config() *Config {
	return h.config
}

// RequireHubConnected 确保Hub链路已连接，未连接时跳过依赖链路的测试
func (h *TestHelper) RequireHubConnected(ctx context.Context) *StatusInfo {
	h.t.Helper()

	status, err := h.client.GetStatus(ctx)
	require.NoError(h.t, err, "获取运行状态失败")
	require.NotNil(h.t, status, "运行状态为空")

	if !status.Hub.Connected {
		h.t.Logf("⚠️  Hub链路未连接: %s", status.Hub.Addr)
		h.t.Logf("   说明: 链路按需建连，首次命令会触发连接；持续失败请检查Hub进程")
		h.t.Skip("Hub链路未连接，跳过需要链路的测试")
	}

	if h.config.Verbose {
		h.t.Logf("✓ Hub链路已连接: %s", status.Hub.Addr)
	}
	return status
}

// WaitForScanDone 等待扫描结束并返回最终进度
func (h *TestHelper) WaitForScanDone(ctx context.Context, timeout time.Duration) *ScanStatus {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		status, err := h.client.GetScan(ctx)
		require.NoError(h.t, err, "查询扫描进度失败")

		if status.State != ScanStateScanning {
			return status
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("等待扫描完成超时（%s）", timeout)
		}
		time.Sleep(2 * time.Second)
	}
}

// TriggerScanTolerant 触发扫描；存量扫描进行中时不视为失败
func (h *TestHelper) TriggerScanTolerant(ctx context.Context, overrides *ScanOverrides) {
	h.t.Helper()

	err := h.client.TriggerScan(ctx, overrides)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.IsConflict() {
			h.t.Log("⚠️  已有扫描在进行，直接等待其完成")
			return
		}
		require.NoError(h.t, err, "触发扫描失败")
	}
}
