package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/discovery"
	"github.com/taoyao-code/vesc-bridge/internal/hublink"
	"github.com/taoyao-code/vesc-bridge/internal/metrics"
	"github.com/taoyao-code/vesc-bridge/internal/notify"
	"github.com/taoyao-code/vesc-bridge/internal/protocol/vesc"
)

// fakeProber 按地址表应答固件/BMS 探测；查不到的地址模拟超时并拆链
type fakeProber struct {
	connected bool
	fw        map[int][]byte
	bms       map[int][]byte
}

func (f *fakeProber) Connect(_ context.Context) error {
	f.connected = true
	return nil
}

func (f *fakeProber) IsConnected() bool { return f.connected }

func (f *fakeProber) ProbeLocal(_ context.Context, _ time.Duration) ([]byte, error) {
	return f.respond(f.fw, discovery.LocalAddress)
}

func (f *fakeProber) ProbeForwarded(_ context.Context, addr uint8, inner byte, _ time.Duration) ([]byte, error) {
	if inner == vesc.CmdBMSGetValues {
		return f.respond(f.bms, int(addr))
	}
	return f.respond(f.fw, int(addr))
}

func (f *fakeProber) respond(table map[int][]byte, addr int) ([]byte, error) {
	if p, ok := table[addr]; ok {
		return p, nil
	}
	f.connected = false
	return nil, hublink.ErrTimeout
}

// MockDeviceStore 记录落地调用
type MockDeviceStore struct {
	SaveDevicesFunc func(ctx context.Context, recs []discovery.DeviceRecord) error
	calls           int
	lastRecs        []discovery.DeviceRecord
}

func (m *MockDeviceStore) SaveDevices(ctx context.Context, recs []discovery.DeviceRecord) error {
	m.calls++
	m.lastRecs = recs
	if m.SaveDevicesFunc != nil {
		return m.SaveDevicesFunc(ctx, recs)
	}
	return nil
}

// MockDeviceRepo 记录 Upsert 调用
type MockDeviceRepo struct {
	UpsertDeviceFunc func(ctx context.Context, rec discovery.DeviceRecord) error
	upserts          []int
}

func (m *MockDeviceRepo) UpsertDevice(ctx context.Context, rec discovery.DeviceRecord) error {
	m.upserts = append(m.upserts, rec.Address)
	if m.UpsertDeviceFunc != nil {
		return m.UpsertDeviceFunc(ctx, rec)
	}
	return nil
}

func fwPayload(major, minor byte, name string) []byte {
	p := []byte{0x00, major, minor}
	p = append(p, []byte(name)...)
	return append(p, 0x00)
}

func bmsPayload() []byte {
	return []byte{0x60, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
}

func newTestService(t *testing.T, prober *fakeProber, store DeviceStore, repo DeviceRepo, notifier *notify.Notifier) *ScanService {
	t.Helper()
	cfg := cfgpkg.ScanConfig{
		Addresses:       []int{3},
		ProbeTimeout:    50 * time.Millisecond,
		ProbesPerSecond: 1000,
	}
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	scanner := discovery.NewScanner(prober, discovery.NewRegistry(), nil, cfg, zap.NewNop(), m)
	return NewScanService(scanner, cfg, store, repo, notifier, zap.NewNop())
}

func TestScanServiceRunPersistsAndNotifies(t *testing.T) {
	received := make(chan notify.Event, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev notify.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := metrics.NewAppMetrics(metrics.NewRegistry())
	notifier := notify.NewNotifier(cfgpkg.NotifyConfig{
		Enable:     true,
		WebhookURL: srv.URL,
		APIKey:     "svc-key",
		Secret:     "svc-secret",
	}, zap.NewNop(), m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier.Start(ctx)

	prober := &fakeProber{
		fw: map[int][]byte{
			discovery.LocalAddress: fwPayload(6, 2, "STORMCORE_60D"),
			3:                      fwPayload(6, 5, "ENNOID-BMS"),
		},
		bms: map[int][]byte{3: bmsPayload()},
	}
	store := &MockDeviceStore{}
	repo := &MockDeviceRepo{}
	svc := newTestService(t, prober, store, repo, notifier)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Found)
	assert.Equal(t, []int{0, 3}, report.New)

	// 缓存整表落地一次，数据库逐条 Upsert
	assert.Equal(t, 1, store.calls)
	require.Len(t, store.lastRecs, 2)
	assert.Equal(t, []int{0, 3}, repo.upserts)

	// 事件顺序：先逐个 device.discovered，再 scan.completed
	wantTypes := []notify.EventType{
		notify.EventDeviceDiscovered,
		notify.EventDeviceDiscovered,
		notify.EventScanCompleted,
	}
	for i, want := range wantTypes {
		select {
		case ev := <-received:
			assert.Equal(t, want, ev.EventType, "event %d", i)
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for event %d (%s)", i, want)
		}
	}
}

func TestScanServiceRunWithoutSinks(t *testing.T) {
	prober := &fakeProber{
		fw: map[int][]byte{discovery.LocalAddress: fwPayload(6, 0, "VESC")},
	}
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	disabled := notify.NewNotifier(cfgpkg.NotifyConfig{}, zap.NewNop(), m)
	svc := newTestService(t, prober, nil, nil, disabled)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)
	// 地址 3 静默且从未登记过，不会出现在登记表里
	assert.Len(t, svc.Devices(), 1)
	assert.Equal(t, 1, svc.DeviceCount())
}

func TestScanServiceStoreFailureTolerated(t *testing.T) {
	prober := &fakeProber{
		fw: map[int][]byte{discovery.LocalAddress: fwPayload(6, 0, "VESC")},
	}
	store := &MockDeviceStore{
		SaveDevicesFunc: func(context.Context, []discovery.DeviceRecord) error {
			return assert.AnError
		},
	}
	repo := &MockDeviceRepo{}
	svc := newTestService(t, prober, store, repo, nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)
	// 缓存失败不阻断数据库落地
	assert.NotEmpty(t, repo.upserts)
}

func TestScanServiceResolve(t *testing.T) {
	svc := newTestService(t, &fakeProber{}, nil, nil, nil)

	t.Run("空覆盖沿用配置", func(t *testing.T) {
		cfg, err := svc.Resolve(nil)
		require.NoError(t, err)
		assert.Equal(t, []int{3}, cfg.Addresses)
	})

	t.Run("地址列表覆盖", func(t *testing.T) {
		cfg, err := svc.Resolve(&ScanOptions{Addresses: []int{10, 20}})
		require.NoError(t, err)
		assert.Equal(t, []int{10, 20}, cfg.Addresses)
	})

	t.Run("区间覆盖清掉地址列表", func(t *testing.T) {
		start, end := 5, 8
		cfg, err := svc.Resolve(&ScanOptions{Start: &start, End: &end})
		require.NoError(t, err)
		assert.Empty(t, cfg.Addresses)
		assert.Equal(t, 5, cfg.Start)
		assert.Equal(t, 8, cfg.End)
	})

	t.Run("地址越界报错", func(t *testing.T) {
		_, err := svc.Resolve(&ScanOptions{Addresses: []int{300}})
		assert.Error(t, err)
	})

	t.Run("区间倒置报错", func(t *testing.T) {
		start, end := 9, 2
		_, err := svc.Resolve(&ScanOptions{Start: &start, End: &end})
		assert.Error(t, err)
	})
}
