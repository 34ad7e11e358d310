package e2e

import "time"

// ScanState 扫描器状态
type ScanState string

const (
	ScanStateIdle     ScanState = "idle"     // 尚未扫描过
	ScanStateScanning ScanState = "scanning" // 扫描中
	ScanStateDone     ScanState = "done"     // 最近一轮已结束
)

// HubStatus Hub链路状态
type HubStatus struct {
	Addr      string `json:"addr"`
	Connected bool   `json:"connected"`
}

// PollStatus 轮询器状态
type PollStatus struct {
	Enabled     bool       `json:"enabled"`
	Mode        string     `json:"mode"`
	LastCapture *time.Time `json:"last_capture,omitempty"`
	AgeSeconds  *float64   `json:"age_seconds,omitempty"`
}

// ScanSummary /api/status 里的扫描摘要
type ScanSummary struct {
	State      ScanState `json:"state"`
	LastScanID string    `json:"last_scan_id,omitempty"`
}

// StatusInfo 桥接服务运行状态
type StatusInfo struct {
	App        string      `json:"app"`
	Env        string      `json:"env"`
	InstanceID string      `json:"instance_id"`
	Hub        HubStatus   `json:"hub"`
	Poll       PollStatus  `json:"poll"`
	Scan       ScanSummary `json:"scan"`
	Devices    int         `json:"devices"`
	Time       time.Time   `json:"time"`
}

// BMSRecord BMS遥测记录（字段缺失时为 nil）
type BMSRecord struct {
	TotalVoltage *float64  `json:"v_tot,omitempty"`
	InputCurrent *float64  `json:"i_in,omitempty"`
	CellCount    int       `json:"cell_num,omitempty"`
	CellVoltages []float64 `json:"cell_voltages,omitempty"`
	CellMin      *float64  `json:"cell_min,omitempty"`
	CellMax      *float64  `json:"cell_max,omitempty"`
	CellDelta    *float64  `json:"cell_delta,omitempty"`
	SoC          *float64  `json:"soc,omitempty"`
	SoH          *float64  `json:"soh,omitempty"`
}

// TelemetrySnapshot 一次遥测采集
type TelemetrySnapshot struct {
	CapturedAt time.Time  `json:"captured_at"`
	Mode       string     `json:"mode"`
	Record     *BMSRecord `json:"record"`
}

// TelemetryResult GET /api/telemetry 响应
type TelemetryResult struct {
	Source   string             `json:"source"` // live / cache
	Snapshot *TelemetrySnapshot `json:"snapshot"`
}

// TelemetryRow 历史遥测摘要行
type TelemetryRow struct {
	ID           int64     `json:"id"`
	CapturedAt   time.Time `json:"captured_at"`
	Mode         string    `json:"mode"`
	TotalVoltage *float64  `json:"v_tot,omitempty"`
	SoC          *float64  `json:"soc,omitempty"`
}

// TelemetryHistoryResult GET /api/telemetry/history 响应
type TelemetryHistoryResult struct {
	Rows  []TelemetryRow `json:"rows"`
	Count int            `json:"count"`
}

// ValuesResult GET /api/values 响应（原始载荷hex）
type ValuesResult struct {
	CapturedAt time.Time `json:"captured_at"`
	Size       int       `json:"size"`
	PayloadHex string    `json:"payload_hex"`
}

// DeviceInfo 一台已登记设备
type DeviceInfo struct {
	Address   int       `json:"address"`
	IsLocal   bool      `json:"is_local"`
	Online    bool      `json:"online"`
	FwMajor   int       `json:"fw_major"`
	FwMinor   int       `json:"fw_minor"`
	FwName    string    `json:"fw_name"`
	HasBMS    bool      `json:"has_bms"`
	Alias     string    `json:"alias,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// DevicesResult GET /api/devices 响应
type DevicesResult struct {
	Devices []DeviceInfo `json:"devices"`
	Count   int          `json:"count"`
}

// ScanReport 一轮扫描摘要
type ScanReport struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Probed       int       `json:"probed"`
	Found        int       `json:"found"`
	NewAddresses []int     `json:"new_addresses,omitempty"`
}

// ScanStatus GET /api/scan 响应
type ScanStatus struct {
	State  ScanState   `json:"state"`
	Report *ScanReport `json:"report,omitempty"`
}

// ScanOverrides POST /api/scan 的目标覆盖（字段留空沿用服务端配置）
type ScanOverrides struct {
	Start     *int  `json:"start,omitempty"`
	End       *int  `json:"end,omitempty"`
	Addresses []int `json:"addresses,omitempty"`
}
