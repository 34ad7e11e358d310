package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/taoyao-code/vesc-bridge/internal/discovery"
)

// EventType 事件类型
type EventType string

const (
	// EventDeviceDiscovered 扫描发现新设备
	EventDeviceDiscovered EventType = "device.discovered"

	// EventScanCompleted 一轮扫描结束
	EventScanCompleted EventType = "scan.completed"
)

// Event 推送给 Webhook 的标准事件
type Event struct {
	EventID   string                 `json:"event_id"`
	EventType EventType              `json:"event_type"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent 创建标准事件
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

// DeviceDiscoveredData 组装 device.discovered 事件数据
func DeviceDiscoveredData(rec discovery.DeviceRecord) map[string]interface{} {
	m := map[string]interface{}{
		"address":  rec.Address,
		"is_local": rec.IsLocal,
		"fw_major": rec.FwMajor,
		"fw_minor": rec.FwMinor,
		"fw_name":  rec.FwName,
		"has_bms":  rec.HasBMS,
	}
	if rec.Alias != "" {
		m["alias"] = rec.Alias
	}
	return m
}

// ScanCompletedData 组装 scan.completed 事件数据
func ScanCompletedData(report discovery.ScanReport) map[string]interface{} {
	m := map[string]interface{}{
		"scan_id":     report.ID,
		"probed":      report.Probed,
		"found":       report.Found,
		"started_at":  report.StartedAt.Unix(),
		"duration_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}
	if len(report.New) > 0 {
		m["new_addresses"] = report.New
	}
	return m
}
