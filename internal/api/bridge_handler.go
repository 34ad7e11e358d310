package api

import (
	"context"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/vesc-bridge/internal/poller"
	"github.com/taoyao-code/vesc-bridge/internal/service"
	"github.com/taoyao-code/vesc-bridge/internal/storage/pg"
)

// ControllerLink 暴露给 API 层的主控链路能力
type ControllerLink interface {
	IsConnected() bool
	Connect(ctx context.Context) error
	GetValues(ctx context.Context) ([]byte, error)
}

// TelemetrySource 轮询器内存中的最新快照
type TelemetrySource interface {
	Latest() (poller.Snapshot, bool)
}

// TelemetryCache 缓存里的最新快照（未启用时为 nil）
type TelemetryCache interface {
	LatestTelemetry(ctx context.Context) (*poller.Snapshot, error)
}

// TelemetryHistory 数据库里的历史遥测（未启用时为 nil）
type TelemetryHistory interface {
	TelemetryHistory(ctx context.Context, limit int) ([]pg.TelemetryRow, error)
}

// AppInfo /api/status 要展示的应用信息
type AppInfo struct {
	Name       string
	Env        string
	InstanceID string
	HubAddr    string
	PollMode   string
}

// BridgeHandler 桥接器对外API处理器
type BridgeHandler struct {
	info    AppInfo
	link    ControllerLink
	poll    TelemetrySource
	cache   TelemetryCache
	history TelemetryHistory
	scans   *service.ScanService
	logger  *zap.Logger
}

// NewBridgeHandler 创建处理器；poll、cache、history 未启用时传 nil
func NewBridgeHandler(
	info AppInfo,
	link ControllerLink,
	poll TelemetrySource,
	cache TelemetryCache,
	history TelemetryHistory,
	scans *service.ScanService,
	logger *zap.Logger,
) *BridgeHandler {
	return &BridgeHandler{
		info:    info,
		link:    link,
		poll:    poll,
		cache:   cache,
		history: history,
		scans:   scans,
		logger:  logger,
	}
}

// GetStatus 查询运行状态
// @Summary 查询运行状态
// @Description 链路连接状态、轮询与扫描进度、已登记设备数
// @Tags 桥接API - 状态
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "成功"
// @Router /api/status [get]
func (h *BridgeHandler) GetStatus(c *gin.Context) {
	hub := gin.H{
		"addr":      h.info.HubAddr,
		"connected": h.link.IsConnected(),
	}

	poll := gin.H{
		"enabled": h.poll != nil,
		"mode":    h.info.PollMode,
	}
	if h.poll != nil {
		if snap, ok := h.poll.Latest(); ok {
			poll["last_capture"] = snap.CapturedAt
			poll["age_seconds"] = time.Since(snap.CapturedAt).Seconds()
		}
	}

	scan := gin.H{"state": h.scans.State()}
	if rep, ok := h.scans.LastReport(); ok {
		scan["last_scan_id"] = rep.ID
	}

	c.JSON(200, gin.H{
		"app":         h.info.Name,
		"env":         h.info.Env,
		"instance_id": h.info.InstanceID,
		"hub":         hub,
		"poll":        poll,
		"scan":        scan,
		"devices":     h.scans.DeviceCount(),
		"time":        time.Now().UTC(),
	})
}

// GetTelemetry 查询最新BMS遥测
// @Summary 查询最新遥测
// @Description 优先取轮询器内存中的快照，没有时回退缓存
// @Tags 桥接API - 遥测
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "成功"
// @Failure 404 {object} map[string]interface{} "尚无遥测"
// @Router /api/telemetry [get]
func (h *BridgeHandler) GetTelemetry(c *gin.Context) {
	if h.poll != nil {
		if snap, ok := h.poll.Latest(); ok {
			c.JSON(200, gin.H{"source": "live", "snapshot": snap})
			return
		}
	}

	// 进程刚启动或轮询关闭时，缓存里可能还有上一轮的数据
	if h.cache != nil {
		snap, err := h.cache.LatestTelemetry(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if snap != nil {
			c.JSON(200, gin.H{"source": "cache", "snapshot": snap})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "no telemetry captured yet"})
}

// GetTelemetryHistory 查询历史遥测
// @Summary 查询历史遥测
// @Description 按时间倒序返回数据库中的遥测行
// @Tags 桥接API - 遥测
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "返回条数（默认100，上限1000）"
// @Success 200 {object} map[string]interface{} "成功"
// @Failure 503 {object} map[string]interface{} "数据库未启用"
// @Router /api/telemetry/history [get]
func (h *BridgeHandler) GetTelemetryHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database disabled"})
		return
	}

	limit := 100
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}

	rows, err := h.history.TelemetryHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// 初始化为空数组，避免JSON序列化为null
	if rows == nil {
		rows = []pg.TelemetryRow{}
	}
	c.JSON(200, gin.H{"rows": rows, "count": len(rows)})
}

// GetValues 实时拉取主控遥测原始帧
// @Summary 实时拉取主控遥测
// @Description 直接向主控发一条 COMM_GET_VALUES 并返回原始载荷（hex）
// @Tags 桥接API - 遥测
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "成功"
// @Failure 502 {object} map[string]interface{} "链路不可用"
// @Router /api/values [get]
func (h *BridgeHandler) GetValues(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.link.IsConnected() {
		if err := h.link.Connect(ctx); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "hub connect failed: " + err.Error()})
			return
		}
	}

	payload, err := h.link.GetValues(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"captured_at": time.Now().UTC(),
		"size":        len(payload),
		"payload_hex": hex.EncodeToString(payload),
	})
}

// GetDevices 查询设备登记表
// @Summary 查询设备登记表
// @Description 返回历次扫描累积的全部设备记录（按CAN地址排序）
// @Tags 桥接API - 发现
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "成功"
// @Router /api/devices [get]
func (h *BridgeHandler) GetDevices(c *gin.Context) {
	list := h.scans.Devices()
	c.JSON(200, gin.H{"devices": list, "count": len(list)})
}

// GetScan 查询扫描进度
// @Summary 查询扫描进度
// @Description 返回扫描器状态与最近一轮摘要
// @Tags 桥接API - 发现
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "成功"
// @Router /api/scan [get]
func (h *BridgeHandler) GetScan(c *gin.Context) {
	resp := gin.H{"state": h.scans.State()}
	if rep, ok := h.scans.LastReport(); ok {
		resp["report"] = rep
	}
	c.JSON(200, resp)
}

// TriggerScan 触发一轮CAN重扫
// @Summary 触发设备重扫
// @Description 异步执行；body 可选覆盖扫描目标（addresses 或 start/end），进度走 GET /api/scan
// @Tags 桥接API - 发现
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.ScanOptions false "目标覆盖"
// @Success 202 {object} map[string]interface{} "已受理"
// @Failure 400 {object} map[string]interface{} "覆盖参数非法"
// @Failure 409 {object} map[string]interface{} "已有扫描在进行"
// @Router /api/scan [post]
func (h *BridgeHandler) TriggerScan(c *gin.Context) {
	var opts service.ScanOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(400, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
	}

	cfg, err := h.scans.Resolve(&opts)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if h.scans.State() == "scanning" {
		c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
		return
	}

	// 整轮扫描可能长达数十秒，不占住请求连接
	go func() {
		if _, err := h.scans.RunWith(context.Background(), cfg); err != nil {
			h.logger.Warn("api-triggered scan failed", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"state": "scanning"})
}
