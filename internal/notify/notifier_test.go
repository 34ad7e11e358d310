package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/discovery"
	"github.com/taoyao-code/vesc-bridge/internal/metrics"
)

func TestNotifier_DeviceDiscovered(t *testing.T) {
	received := make(chan Event, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("bad event body: %v", err)
		}
		received <- ev
		w.WriteHeader(200)
	}))
	defer ts.Close()

	m := metrics.NewAppMetrics(metrics.NewRegistry())
	n := NewNotifier(cfgpkg.NotifyConfig{Enable: true, WebhookURL: ts.URL + "/hook", APIKey: "k", Secret: "s"},
		zap.NewNop(), m)
	if !n.Enabled() {
		t.Fatalf("notifier should be enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)

	n.DeviceDiscovered(discovery.DeviceRecord{Address: 7, FwName: "ENNOID-BMS", HasBMS: true, Alias: "garage"})

	select {
	case ev := <-received:
		if ev.EventType != EventDeviceDiscovered {
			t.Fatalf("event_type = %s", ev.EventType)
		}
		if ev.EventID == "" || ev.Timestamp == 0 {
			t.Fatalf("event metadata missing: %+v", ev)
		}
		if ev.Data["fw_name"] != "ENNOID-BMS" || ev.Data["alias"] != "garage" {
			t.Fatalf("event data = %v", ev.Data)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("webhook never called")
	}
}

func TestNotifier_ScanCompleted(t *testing.T) {
	received := make(chan Event, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		received <- ev
		w.WriteHeader(200)
	}))
	defer ts.Close()

	m := metrics.NewAppMetrics(metrics.NewRegistry())
	n := NewNotifier(cfgpkg.NotifyConfig{Enable: true, WebhookURL: ts.URL, Secret: "s"}, zap.NewNop(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)

	start := time.Now()
	n.ScanCompleted(discovery.ScanReport{
		ID: "scan-1", StartedAt: start, FinishedAt: start.Add(2 * time.Second),
		Probed: 10, Found: 2, New: []int{7},
	})

	select {
	case ev := <-received:
		if ev.EventType != EventScanCompleted {
			t.Fatalf("event_type = %s", ev.EventType)
		}
		if ev.Data["scan_id"] != "scan-1" {
			t.Fatalf("scan_id = %v", ev.Data["scan_id"])
		}
		// JSON 数字解码为 float64
		if ev.Data["probed"].(float64) != 10 {
			t.Fatalf("probed = %v", ev.Data["probed"])
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("webhook never called")
	}
}

func TestNotifier_DisabledIsNoop(t *testing.T) {
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	n := NewNotifier(cfgpkg.NotifyConfig{Enable: false}, zap.NewNop(), m)
	if n.Enabled() {
		t.Fatalf("notifier must be disabled without config")
	}

	// 不 Start 也不配置 URL，调用不应阻塞或 panic
	n.Start(context.Background())
	n.DeviceDiscovered(discovery.DeviceRecord{Address: 1})
	n.ScanCompleted(discovery.ScanReport{})
}
