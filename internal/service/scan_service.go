// Package service 承载跨组件的业务编排。
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/discovery"
	"github.com/taoyao-code/vesc-bridge/internal/notify"
)

// DeviceStore 设备登记表的缓存落地（可为 nil 表示未启用）
type DeviceStore interface {
	SaveDevices(ctx context.Context, recs []discovery.DeviceRecord) error
}

// DeviceRepo 设备登记表的数据库落地（可为 nil 表示未启用）
type DeviceRepo interface {
	UpsertDevice(ctx context.Context, rec discovery.DeviceRecord) error
}

// ScanOptions API 触发重扫时对目标集的可选覆盖，零值沿用启动配置。
// Addresses 优先于 Start/End；仅给出 Start/End 时按区间扫描。
type ScanOptions struct {
	Start     *int  `json:"start"`
	End       *int  `json:"end"`
	Addresses []int `json:"addresses"`
}

// ScanService 把一轮 CAN 发现的后续动作串起来：
// 扫描 → 登记表落地（缓存/数据库）→ 事件推送。
type ScanService struct {
	scanner  *discovery.Scanner
	cfg      cfgpkg.ScanConfig
	store    DeviceStore
	repo     DeviceRepo
	notifier *notify.Notifier
	log      *zap.Logger
}

// NewScanService 创建扫描服务；store、repo、notifier 均可为 nil
func NewScanService(scanner *discovery.Scanner, cfg cfgpkg.ScanConfig, store DeviceStore, repo DeviceRepo, notifier *notify.Notifier, log *zap.Logger) *ScanService {
	return &ScanService{
		scanner:  scanner,
		cfg:      cfg,
		store:    store,
		repo:     repo,
		notifier: notifier,
		log:      log,
	}
}

// State 透出扫描器状态：idle / scanning / done
func (s *ScanService) State() string {
	return s.scanner.State()
}

// LastReport 透出最近一轮扫描摘要
func (s *ScanService) LastReport() (discovery.ScanReport, bool) {
	return s.scanner.LastReport()
}

// Devices 返回登记表快照
func (s *ScanService) Devices() []discovery.DeviceRecord {
	return s.scanner.Registry().List()
}

// DeviceCount 返回已登记设备数
func (s *ScanService) DeviceCount() int {
	return s.scanner.Registry().Count()
}

// Resolve 把覆盖项合并进启动配置并校验边界。
// 区间覆盖会清掉配置里的显式地址列表，否则列表仍然优先。
func (s *ScanService) Resolve(opts *ScanOptions) (cfgpkg.ScanConfig, error) {
	cfg := s.cfg
	if opts != nil {
		if len(opts.Addresses) > 0 {
			cfg.Addresses = append([]int(nil), opts.Addresses...)
		} else if opts.Start != nil || opts.End != nil {
			cfg.Addresses = nil
			if opts.Start != nil {
				cfg.Start = *opts.Start
			}
			if opts.End != nil {
				cfg.End = *opts.End
			}
		}
	}

	for _, a := range cfg.Addresses {
		if a < 0 || a > 254 {
			return cfg, fmt.Errorf("scan address out of range [0,254]: %d", a)
		}
	}
	if len(cfg.Addresses) == 0 {
		if cfg.Start < 0 || cfg.End > 254 || cfg.Start > cfg.End {
			return cfg, fmt.Errorf("scan range invalid: [%d, %d]", cfg.Start, cfg.End)
		}
	}
	return cfg, nil
}

// Run 以启动配置执行一轮扫描（启动时的首扫走这里）
func (s *ScanService) Run(ctx context.Context) (*discovery.ScanReport, error) {
	return s.RunWith(ctx, s.cfg)
}

// RunWith 以指定配置执行一轮扫描，成功后落地登记表并推送事件。
// 落地与推送的失败只记日志，不影响扫描结果。
func (s *ScanService) RunWith(ctx context.Context, cfg cfgpkg.ScanConfig) (*discovery.ScanReport, error) {
	report, err := s.scanner.ScanWith(ctx, cfg)
	if err != nil {
		if !errors.Is(err, discovery.ErrScanBusy) {
			s.log.Warn("scan run failed", zap.Error(err))
		}
		return report, err
	}

	s.persist(ctx, report)
	s.publish(report)
	return report, nil
}

// persist 把登记表快照写入缓存与数据库
func (s *ScanService) persist(ctx context.Context, report *discovery.ScanReport) {
	recs := s.scanner.Registry().List()
	if s.store != nil {
		if err := s.store.SaveDevices(ctx, recs); err != nil {
			s.log.Warn("save devices to cache failed",
				zap.String("scanId", report.ID),
				zap.Error(err))
		}
	}
	if s.repo != nil {
		for _, rec := range recs {
			if err := s.repo.UpsertDevice(ctx, rec); err != nil {
				s.log.Warn("upsert device failed",
					zap.Int("address", rec.Address),
					zap.Error(err))
			}
		}
	}
}

// publish 先逐个推送新设备事件，再推整轮摘要
func (s *ScanService) publish(report *discovery.ScanReport) {
	if !s.notifier.Enabled() {
		return
	}
	for _, addr := range report.New {
		if rec, ok := s.scanner.Registry().Get(addr); ok {
			s.notifier.DeviceDiscovered(rec)
		}
	}
	s.notifier.ScanCompleted(*report)
}
