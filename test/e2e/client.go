package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// BridgeClient E2E测试API客户端
type BridgeClient struct {
	config     *Config
	httpClient *http.Client
}

// NewBridgeClient 创建API客户端
func NewBridgeClient(cfg *Config) *BridgeClient {
	return &BridgeClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// APIError API错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error [%d]: %s", e.StatusCode, e.Message)
}

// IsConflict 判断是否为冲突错误（409，扫描进行中）
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsNotFound 判断是否为未找到错误（404）
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnavailable 判断是否为依赖未启用（503）
func (e *APIError) IsUnavailable() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

// doRequest 执行HTTP请求
// 桥接服务直接返回业务JSON，错误时返回 {"error": "..."} 并用HTTP状态码表达语义。
func (c *BridgeClient) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.config.ServerURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("X-API-Key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
			errResp.Error = string(respBody)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w (body: %s)", err, string(respBody))
		}
	}
	return nil
}

// GetStatus 获取运行状态
func (c *BridgeClient) GetStatus(ctx context.Context) (*StatusInfo, error) {
	var status StatusInfo
	if err := c.doRequest(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetTelemetry 获取最新遥测
func (c *BridgeClient) GetTelemetry(ctx context.Context) (*TelemetryResult, error) {
	var result TelemetryResult
	if err := c.doRequest(ctx, http.MethodGet, "/api/telemetry", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTelemetryHistory 获取历史遥测（limit<=0 使用服务端默认值）
func (c *BridgeClient) GetTelemetryHistory(ctx context.Context, limit int) (*TelemetryHistoryResult, error) {
	path := "/api/telemetry/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var result TelemetryHistoryResult
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetValues 实时拉取主控遥测原始帧
func (c *BridgeClient) GetValues(ctx context.Context) (*ValuesResult, error) {
	var result ValuesResult
	if err := c.doRequest(ctx, http.MethodGet, "/api/values", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDevices 获取设备登记表
func (c *BridgeClient) GetDevices(ctx context.Context) (*DevicesResult, error) {
	var result DevicesResult
	if err := c.doRequest(ctx, http.MethodGet, "/api/devices", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetScan 获取扫描进度
func (c *BridgeClient) GetScan(ctx context.Context) (*ScanStatus, error) {
	var status ScanStatus
	if err := c.doRequest(ctx, http.MethodGet, "/api/scan", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TriggerScan 触发一轮重扫（扫描进行中时返回409冲突）
func (c *BridgeClient) TriggerScan(ctx context.Context, overrides *ScanOverrides) error {
	var body interface{}
	if overrides != nil {
		body = overrides
	}
	return c.doRequest(ctx, http.MethodPost, "/api/scan", body, nil)
}
