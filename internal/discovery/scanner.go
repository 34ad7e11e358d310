package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/hublink"
	"github.com/taoyao-code/vesc-bridge/internal/metrics"
	"github.com/taoyao-code/vesc-bridge/internal/protocol/vesc"
)

// ErrScanBusy 已有扫描在进行中
var ErrScanBusy = errors.New("discovery: scan already running")

// 扫描器状态
const (
	stateIdle int32 = iota
	stateScanning
	stateDone
)

// Prober 扫描所需的命令通道能力
// 探测超时会拆除连接（命令通道的统一语义），因此扫描器在每个地址前
// 都要确认链路可用并按需重连。
type Prober interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	ProbeLocal(ctx context.Context, timeout time.Duration) ([]byte, error)
	ProbeForwarded(ctx context.Context, addr uint8, inner byte, timeout time.Duration) ([]byte, error)
}

// ScanReport 一轮扫描的结果摘要
type ScanReport struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Probed     int       `json:"probed"`
	Found      int       `json:"found"`
	New        []int     `json:"new_addresses,omitempty"`
}

// Scanner CAN 总线扫描器：逐地址探测并维护设备登记表
type Scanner struct {
	link    Prober
	reg     *Registry
	aliases *AliasMap
	cfg     cfgpkg.ScanConfig
	log     *zap.Logger
	m       *metrics.AppMetrics
	limiter *rate.Limiter

	state int32
	mu    sync.Mutex
	last  *ScanReport
}

// NewScanner 创建扫描器；aliases 可为 nil
func NewScanner(link Prober, reg *Registry, aliases *AliasMap, cfg cfgpkg.ScanConfig, log *zap.Logger, m *metrics.AppMetrics) *Scanner {
	pps := cfg.ProbesPerSecond
	if pps <= 0 {
		pps = 5
	}
	return &Scanner{
		link:    link,
		reg:     reg,
		aliases: aliases,
		cfg:     cfg,
		log:     log,
		m:       m,
		limiter: rate.NewLimiter(rate.Limit(pps), 1),
	}
}

// State 返回扫描器状态：idle / scanning / done
func (s *Scanner) State() string {
	switch atomic.LoadInt32(&s.state) {
	case stateScanning:
		return "scanning"
	case stateDone:
		return "done"
	default:
		return "idle"
	}
}

// LastReport 返回最近一轮扫描摘要
func (s *Scanner) LastReport() (ScanReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return ScanReport{}, false
	}
	return *s.last, true
}

// Registry 返回扫描器维护的登记表
func (s *Scanner) Registry() *Registry {
	return s.reg
}

// Scan 以构造时的配置执行一轮发现并返回摘要。
func (s *Scanner) Scan(ctx context.Context) (*ScanReport, error) {
	return s.ScanWith(ctx, s.cfg)
}

// ScanWith 以指定配置执行一轮发现并返回摘要（API 触发的重扫可覆盖目标区间）。
// 同一时刻只允许一轮扫描；逐地址超时是常态（地址未被占用），
// 不会中断扫描。仅当 Hub 本身无法连接时才整轮失败。
func (s *Scanner) ScanWith(ctx context.Context, cfg cfgpkg.ScanConfig) (*ScanReport, error) {
	if !atomic.CompareAndSwapInt32(&s.state, stateIdle, stateScanning) &&
		!atomic.CompareAndSwapInt32(&s.state, stateDone, stateScanning) {
		return nil, ErrScanBusy
	}
	defer atomic.StoreInt32(&s.state, stateDone)

	report := &ScanReport{ID: uuid.NewString(), StartedAt: time.Now()}
	defer func() {
		report.FinishedAt = time.Now()
		s.m.DevicesRegistered.Set(float64(s.reg.Count()))
		s.mu.Lock()
		s.last = report
		s.mu.Unlock()
	}()

	addrs := targetsOf(cfg)
	s.log.Info("can scan started",
		zap.String("scanId", report.ID),
		zap.Int("addresses", len(addrs)))

	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}
		// 上一个地址的超时会拆掉连接，这里按需重建
		if !s.link.IsConnected() {
			if err := s.link.Connect(ctx); err != nil {
				return report, fmt.Errorf("hub unreachable during scan: %w", err)
			}
		}

		report.Probed++
		payload, err := s.probeFW(ctx, addr, cfg.ProbeTimeout)
		now := time.Now()
		if err != nil {
			s.handleSilent(addr, now, err)
			continue
		}
		major, minor, name, ok := ParseFirmware(payload)
		if !ok {
			s.handleSilent(addr, now, nil)
			continue
		}

		rec := DeviceRecord{
			Address: addr,
			IsLocal: addr == LocalAddress,
			Online:  true,
			FwMajor: major,
			FwMinor: minor,
			FwName:  name,
			Alias:   s.aliases.Lookup(addr),
		}
		if addr != LocalAddress {
			rec.HasBMS = s.probeBMS(ctx, addr, cfg.ProbeTimeout)
		}

		s.m.ScanProbes.WithLabelValues("found").Inc()
		report.Found++
		if s.reg.Upsert(rec, now) {
			report.New = append(report.New, addr)
			s.log.Info("device discovered",
				zap.Int("address", addr),
				zap.String("fwName", name),
				zap.Bool("hasBms", rec.HasBMS))
		}
	}

	s.log.Info("can scan finished",
		zap.String("scanId", report.ID),
		zap.Int("probed", report.Probed),
		zap.Int("found", report.Found),
		zap.Int("new", len(report.New)))
	return report, nil
}

// probeFW 发出固件探测：本机地址直连，其余走 CAN 转发
func (s *Scanner) probeFW(ctx context.Context, addr int, timeout time.Duration) ([]byte, error) {
	if addr == LocalAddress {
		return s.link.ProbeLocal(ctx, timeout)
	}
	return s.link.ProbeForwarded(ctx, uint8(addr), vesc.CmdFWVersion, timeout)
}

// probeBMS 探测设备是否携带 BMS：转发 BMS_GET_VALUES，有像样的响应即认定
func (s *Scanner) probeBMS(ctx context.Context, addr int, timeout time.Duration) bool {
	payload, err := s.link.ProbeForwarded(ctx, uint8(addr), vesc.CmdBMSGetValues, timeout)
	return err == nil && len(payload) > 10
}

// handleSilent 处理无响应/失败的地址
// 超时说明地址未被占用（或设备掉线）；其余错误只计数，等下一地址重连后继续。
func (s *Scanner) handleSilent(addr int, now time.Time, err error) {
	if err != nil && !errors.Is(err, hublink.ErrTimeout) {
		s.m.ScanProbes.WithLabelValues("error").Inc()
		s.log.Warn("probe failed", zap.Int("address", addr), zap.Error(err))
		return
	}
	s.m.ScanProbes.WithLabelValues("silent").Inc()

	if addr == LocalAddress {
		// 本机记录始终存在，探测失败仅标记离线
		if _, known := s.reg.Get(addr); known {
			s.reg.MarkOffline(addr, now)
		} else {
			s.reg.Upsert(DeviceRecord{Address: LocalAddress, IsLocal: true, Online: false, Alias: s.aliases.Lookup(addr)}, now)
		}
		return
	}
	if _, known := s.reg.Get(addr); known {
		s.reg.MarkOffline(addr, now)
	}
}

// targetsOf 计算本轮扫描地址集：显式列表优先，否则取区间；本机地址必含
func targetsOf(cfg cfgpkg.ScanConfig) []int {
	var addrs []int
	if len(cfg.Addresses) > 0 {
		addrs = append(addrs, cfg.Addresses...)
	} else {
		for a := cfg.Start; a <= cfg.End; a++ {
			addrs = append(addrs, a)
		}
	}
	for _, a := range addrs {
		if a == LocalAddress {
			return addrs
		}
	}
	return append([]int{LocalAddress}, addrs...)
}
