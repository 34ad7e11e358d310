package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/vesc-bridge/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/discovery"
	"github.com/taoyao-code/vesc-bridge/internal/hublink"
	"github.com/taoyao-code/vesc-bridge/internal/metrics"
	"github.com/taoyao-code/vesc-bridge/internal/poller"
	"github.com/taoyao-code/vesc-bridge/internal/protocol/bms"
	"github.com/taoyao-code/vesc-bridge/internal/service"
	"github.com/taoyao-code/vesc-bridge/internal/storage/pg"
)

// ===== 测试用假依赖 =====

type fakeLink struct {
	connected  bool
	connectErr error
	values     []byte
	valuesErr  error
}

func (f *fakeLink) IsConnected() bool { return f.connected }

func (f *fakeLink) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeLink) GetValues(context.Context) ([]byte, error) {
	return f.values, f.valuesErr
}

type fakePoll struct {
	snap *poller.Snapshot
}

func (f *fakePoll) Latest() (poller.Snapshot, bool) {
	if f.snap == nil {
		return poller.Snapshot{}, false
	}
	return *f.snap, true
}

type fakeCache struct {
	snap *poller.Snapshot
	err  error
}

func (f *fakeCache) LatestTelemetry(context.Context) (*poller.Snapshot, error) {
	return f.snap, f.err
}

type fakeHistory struct {
	rows     []pg.TelemetryRow
	err      error
	gotLimit int
}

func (f *fakeHistory) TelemetryHistory(_ context.Context, limit int) ([]pg.TelemetryRow, error) {
	f.gotLimit = limit
	return f.rows, f.err
}

// fakeProber 按地址表应答探测；查不到的地址模拟超时并拆链。
// gate 置位时 Connect 会先等门，用于把扫描卡在 scanning 状态。
type fakeProber struct {
	mu        sync.Mutex
	connected bool
	gate      chan struct{}
	fw        map[int][]byte
}

func (f *fakeProber) Connect(ctx context.Context) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeProber) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeProber) ProbeLocal(_ context.Context, _ time.Duration) ([]byte, error) {
	return f.respond(discovery.LocalAddress)
}

func (f *fakeProber) ProbeForwarded(_ context.Context, addr uint8, _ byte, _ time.Duration) ([]byte, error) {
	return f.respond(int(addr))
}

func (f *fakeProber) respond(addr int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.fw[addr]; ok {
		return p, nil
	}
	f.connected = false
	return nil, hublink.ErrTimeout
}

func fwPayload(major, minor byte, name string) []byte {
	p := []byte{0x00, major, minor}
	p = append(p, []byte(name)...)
	return append(p, 0x00)
}

func sampleSnapshot() *poller.Snapshot {
	v := 50.4
	return &poller.Snapshot{
		CapturedAt: time.Now().UTC(),
		Mode:       "burst",
		Record:     &bms.Record{TotalVoltage: &v, CellCount: 12},
	}
}

// ===== 路由搭建 =====

type testDeps struct {
	link    *fakeLink
	poll    TelemetrySource
	cache   TelemetryCache
	history TelemetryHistory
	scans   *service.ScanService
	auth    middleware.AuthConfig
}

func newTestScanService(t *testing.T, prober *fakeProber, reg *discovery.Registry) *service.ScanService {
	t.Helper()
	cfg := cfgpkg.ScanConfig{
		Addresses:       []int{3},
		ProbeTimeout:    50 * time.Millisecond,
		ProbesPerSecond: 1000,
	}
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	scanner := discovery.NewScanner(prober, reg, nil, cfg, zap.NewNop(), m)
	return service.NewScanService(scanner, cfg, nil, nil, nil, zap.NewNop())
}

func newTestRouter(t *testing.T, d testDeps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if d.link == nil {
		d.link = &fakeLink{}
	}
	if d.scans == nil {
		d.scans = newTestScanService(t, &fakeProber{}, discovery.NewRegistry())
	}

	info := AppInfo{
		Name:       "vesc-bridge",
		Env:        "test",
		InstanceID: "ins-test-1",
		HubAddr:    "veschub.vedder.se:65101",
		PollMode:   "burst",
	}
	r := gin.New()
	RegisterBridgeRoutes(r, info, d.link, d.poll, d.cache, d.history, d.scans, d.auth, zap.NewNop())
	return r
}

func doRequest(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func waitScanState(t *testing.T, svc *service.ScanService, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if svc.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting scan state %q, got %q", want, svc.State())
}

// ===== 状态与遥测 =====

func TestBridgeAPIStatus(t *testing.T) {
	r := newTestRouter(t, testDeps{
		link: &fakeLink{connected: true},
		poll: &fakePoll{snap: sampleSnapshot()},
	})

	w := doRequest(r, "GET", "/api/status", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, "vesc-bridge", resp["app"])
	assert.Equal(t, "ins-test-1", resp["instance_id"])

	hub := resp["hub"].(map[string]interface{})
	assert.Equal(t, true, hub["connected"])
	assert.Equal(t, "veschub.vedder.se:65101", hub["addr"])

	poll := resp["poll"].(map[string]interface{})
	assert.Equal(t, true, poll["enabled"])
	assert.Equal(t, "burst", poll["mode"])
	assert.Contains(t, poll, "last_capture")

	scan := resp["scan"].(map[string]interface{})
	assert.Equal(t, "idle", scan["state"])
}

func TestBridgeAPITelemetryLiveFirst(t *testing.T) {
	live := sampleSnapshot()
	stale := sampleSnapshot()
	stale.Mode = "plain"

	r := newTestRouter(t, testDeps{
		poll:  &fakePoll{snap: live},
		cache: &fakeCache{snap: stale},
	})

	w := doRequest(r, "GET", "/api/telemetry", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, "live", resp["source"])
	snap := resp["snapshot"].(map[string]interface{})
	assert.Equal(t, "burst", snap["mode"])
}

func TestBridgeAPITelemetryCacheFallback(t *testing.T) {
	r := newTestRouter(t, testDeps{
		poll:  &fakePoll{},
		cache: &fakeCache{snap: sampleSnapshot()},
	})

	w := doRequest(r, "GET", "/api/telemetry", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "cache", resp["source"])
}

func TestBridgeAPITelemetryNotFound(t *testing.T) {
	r := newTestRouter(t, testDeps{})

	w := doRequest(r, "GET", "/api/telemetry", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBridgeAPITelemetryHistory(t *testing.T) {
	hist := &fakeHistory{rows: []pg.TelemetryRow{{ID: 2, Mode: "burst"}, {ID: 1, Mode: "burst"}}}
	r := newTestRouter(t, testDeps{history: hist})

	w := doRequest(r, "GET", "/api/telemetry/history?limit=5", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, hist.gotLimit)

	resp := decodeBody(t, w)
	assert.Equal(t, float64(2), resp["count"])

	// 未带 limit 时用默认值
	doRequest(r, "GET", "/api/telemetry/history", "", nil)
	assert.Equal(t, 100, hist.gotLimit)
}

func TestBridgeAPITelemetryHistoryDatabaseDisabled(t *testing.T) {
	r := newTestRouter(t, testDeps{})

	w := doRequest(r, "GET", "/api/telemetry/history", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBridgeAPIValues(t *testing.T) {
	r := newTestRouter(t, testDeps{
		link: &fakeLink{connected: true, values: []byte{0x04, 0x01, 0x2C}},
	})

	w := doRequest(r, "GET", "/api/values", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, "04012c", resp["payload_hex"])
	assert.Equal(t, float64(3), resp["size"])
}

func TestBridgeAPIValuesHubUnreachable(t *testing.T) {
	r := newTestRouter(t, testDeps{
		link: &fakeLink{connectErr: hublink.ErrTimeout},
	})

	w := doRequest(r, "GET", "/api/values", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

// ===== 发现 =====

func TestBridgeAPIDevices(t *testing.T) {
	reg := discovery.NewRegistry()
	reg.Upsert(discovery.DeviceRecord{Address: 0, IsLocal: true, Online: true, FwName: "STORMCORE_60D"}, time.Now())
	reg.Upsert(discovery.DeviceRecord{Address: 7, Online: true, HasBMS: true, FwName: "ENNOID-BMS"}, time.Now())

	r := newTestRouter(t, testDeps{
		scans: newTestScanService(t, &fakeProber{}, reg),
	})

	w := doRequest(r, "GET", "/api/devices", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, float64(2), resp["count"])
	devices := resp["devices"].([]interface{})
	require.Len(t, devices, 2)
	first := devices[0].(map[string]interface{})
	assert.Equal(t, float64(0), first["address"])
}

func TestBridgeAPITriggerScan(t *testing.T) {
	prober := &fakeProber{fw: map[int][]byte{
		discovery.LocalAddress: fwPayload(6, 2, "STORMCORE_60D"),
		3:                      fwPayload(6, 5, "ENNOID-BMS"),
	}}
	svc := newTestScanService(t, prober, discovery.NewRegistry())
	r := newTestRouter(t, testDeps{scans: svc})

	w := doRequest(r, "POST", "/api/scan", "", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	waitScanState(t, svc, "done")

	w = doRequest(r, "GET", "/api/scan", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "done", resp["state"])
	report := resp["report"].(map[string]interface{})
	assert.Equal(t, float64(2), report["found"])
}

func TestBridgeAPIScanConflict(t *testing.T) {
	gate := make(chan struct{})
	prober := &fakeProber{gate: gate}
	svc := newTestScanService(t, prober, discovery.NewRegistry())
	r := newTestRouter(t, testDeps{scans: svc})

	w := doRequest(r, "POST", "/api/scan", "", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	waitScanState(t, svc, "scanning")

	w = doRequest(r, "POST", "/api/scan", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(gate)
	waitScanState(t, svc, "done")
}

func TestBridgeAPIScanBadOverrides(t *testing.T) {
	r := newTestRouter(t, testDeps{})

	w := doRequest(r, "POST", "/api/scan", `{"addresses":[300]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, "POST", "/api/scan", `{"start":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ===== 认证 =====

func TestBridgeAPIAuth(t *testing.T) {
	auth := middleware.AuthConfig{
		Enabled: true,
		APIKeys: []string{"sk_live_bridge_0001"},
	}
	r := newTestRouter(t, testDeps{auth: auth})

	t.Run("缺少Key返回401", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/status", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("无效Key返回403", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/status", "", map[string]string{"X-API-Key": "sk_live_wrong"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("X-API-Key放行", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/status", "", map[string]string{"X-API-Key": "sk_live_bridge_0001"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Bearer放行", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/status", "", map[string]string{"Authorization": "Bearer sk_live_bridge_0001"})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
