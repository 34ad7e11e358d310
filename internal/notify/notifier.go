// Package notify 把发现事件异步推送到配置的 Webhook。
// 推送失败只影响指标与日志，永远不反压业务路径。
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/discovery"
	"github.com/taoyao-code/vesc-bridge/internal/metrics"
)

const (
	queueDepth  = 64
	pushTimeout = 10 * time.Second
)

// Notifier 事件通知器：入队非阻塞，单 worker 顺序推送
type Notifier struct {
	cfg    cfgpkg.NotifyConfig
	log    *zap.Logger
	m      *metrics.AppMetrics
	pusher *Pusher
	queue  chan *Event
}

// NewNotifier 创建通知器；未启用时所有方法都是空操作
func NewNotifier(cfg cfgpkg.NotifyConfig, log *zap.Logger, m *metrics.AppMetrics) *Notifier {
	n := &Notifier{cfg: cfg, log: log, m: m}
	if cfg.Enable && cfg.WebhookURL != "" {
		n.pusher = NewPusher(nil, cfg.APIKey, cfg.Secret)
		n.queue = make(chan *Event, queueDepth)
	}
	return n
}

// Enabled 返回通知器是否生效
func (n *Notifier) Enabled() bool {
	return n != nil && n.queue != nil
}

// Start 启动推送 worker，ctx 取消时退出
func (n *Notifier) Start(ctx context.Context) {
	if !n.Enabled() {
		return
	}
	go n.worker(ctx)
}

func (n *Notifier) worker(ctx context.Context) {
	n.log.Info("notify worker started", zap.String("webhookUrl", n.cfg.WebhookURL))
	for {
		select {
		case <-ctx.Done():
			n.log.Info("notify worker stopped")
			return
		case ev := <-n.queue:
			n.push(ctx, ev)
		}
	}
}

func (n *Notifier) push(ctx context.Context, ev *Event) {
	pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	code, _, err := n.pusher.SendJSON(pushCtx, n.cfg.WebhookURL, ev)
	// 4xx 不产生 error，但同样是推送失败
	if err != nil || code < 200 || code >= 300 {
		n.m.NotifyPushes.WithLabelValues("error").Inc()
		n.log.Warn("event push failed",
			zap.String("eventId", ev.EventID),
			zap.String("eventType", string(ev.EventType)),
			zap.Int("status", code),
			zap.Error(err))
		return
	}
	n.m.NotifyPushes.WithLabelValues("ok").Inc()
	n.log.Debug("event pushed",
		zap.String("eventId", ev.EventID),
		zap.String("eventType", string(ev.EventType)),
		zap.Int("status", code))
}

// DeviceDiscovered 投递 device.discovered 事件
func (n *Notifier) DeviceDiscovered(rec discovery.DeviceRecord) {
	n.enqueue(NewEvent(EventDeviceDiscovered, DeviceDiscoveredData(rec)))
}

// ScanCompleted 投递 scan.completed 事件
func (n *Notifier) ScanCompleted(report discovery.ScanReport) {
	n.enqueue(NewEvent(EventScanCompleted, ScanCompletedData(report)))
}

// enqueue 非阻塞入队；队列满时丢弃并告警
func (n *Notifier) enqueue(ev *Event) {
	if !n.Enabled() {
		return
	}
	select {
	case n.queue <- ev:
	default:
		n.m.NotifyPushes.WithLabelValues("dropped").Inc()
		n.log.Warn("notify queue full, event dropped",
			zap.String("eventType", string(ev.EventType)))
	}
}
