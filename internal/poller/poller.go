// Package poller 周期拉取 BMS 遥测并分发给注册的存储端。
// 单个周期失败只计数、记日志，不中断轮询；链路由命令通道在失败时拆除，
// 下个周期按需重连。
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/metrics"
	"github.com/taoyao-code/vesc-bridge/internal/protocol/bms"
)

// Link 轮询所需的命令通道能力
type Link interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	GetTelemetry(ctx context.Context) (*bms.Record, error)
	GetTelemetryUnlocked(ctx context.Context) (*bms.Record, error)
	GetValues(ctx context.Context) ([]byte, error)
}

// Snapshot 一个轮询周期采到的数据
type Snapshot struct {
	CapturedAt time.Time   `json:"captured_at"`
	Mode       string      `json:"mode"`
	Record     *bms.Record `json:"record"`
	Values     []byte      `json:"values,omitempty"`
}

// Sink 快照消费端；Consume 失败不会中断轮询
type Sink interface {
	Consume(ctx context.Context, snap Snapshot) error
}

// SinkFunc 函数式 Sink 适配器
type SinkFunc func(ctx context.Context, snap Snapshot) error

// Consume 实现 Sink
func (f SinkFunc) Consume(ctx context.Context, snap Snapshot) error { return f(ctx, snap) }

// Poller 遥测轮询器
type Poller struct {
	link  Link
	cfg   cfgpkg.PollConfig
	log   *zap.Logger
	m     *metrics.AppMetrics
	sinks []Sink

	mu   sync.RWMutex
	last *Snapshot
}

// New 创建轮询器；sinks 可为空
func New(link Link, cfg cfgpkg.PollConfig, log *zap.Logger, m *metrics.AppMetrics, sinks ...Sink) *Poller {
	return &Poller{link: link, cfg: cfg, log: log, m: m, sinks: sinks}
}

// AddSink 追加一个快照消费端（启动前调用）
func (p *Poller) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Latest 返回最近一次成功采集的快照
func (p *Poller) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return Snapshot{}, false
	}
	return *p.last, true
}

// Run 轮询主循环：启动即采一轮，之后按配置间隔触发，ctx 取消时退出
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("telemetry poller started",
		zap.Duration("interval", p.cfg.Interval),
		zap.String("mode", p.cfg.Mode))

	p.cycle(ctx)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("telemetry poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	start := time.Now()
	rec, err := p.fetch(ctx)
	if err != nil {
		p.m.PollCycles.WithLabelValues(p.cfg.Mode, "error").Inc()
		p.log.Warn("poll cycle failed", zap.String("mode", p.cfg.Mode), zap.Error(err))
		return
	}

	snap := Snapshot{CapturedAt: time.Now(), Mode: p.cfg.Mode, Record: rec}
	if p.cfg.WithValues {
		// 连发模式成功后连接保持打开，常规单命令复用同一连接
		if vals, verr := p.link.GetValues(ctx); verr == nil {
			snap.Values = vals
		} else {
			p.log.Debug("realtime values read failed", zap.Error(verr))
		}
	}

	p.mu.Lock()
	p.last = &snap
	p.mu.Unlock()

	for _, s := range p.sinks {
		if serr := s.Consume(ctx, snap); serr != nil {
			p.log.Warn("snapshot sink failed", zap.Error(serr))
		}
	}

	p.m.PollCycles.WithLabelValues(p.cfg.Mode, "ok").Inc()
	p.m.PollDuration.Observe(time.Since(start).Seconds())
	p.log.Debug("poll cycle done",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("withValues", snap.Values != nil))
}

// fetch 按模式取一条遥测。连发截获路径自带拆链重连；常规路径先确保链路。
func (p *Poller) fetch(ctx context.Context) (*bms.Record, error) {
	if p.cfg.Mode == "plain" {
		if !p.link.IsConnected() {
			if err := p.link.Connect(ctx); err != nil {
				return nil, err
			}
		}
		return p.link.GetTelemetry(ctx)
	}
	return p.link.GetTelemetryUnlocked(ctx)
}
