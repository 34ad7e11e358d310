package e2e

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config E2E测试配置
type Config struct {
	// 桥接服务配置
	ServerURL string // 桥接服务地址
	APIKey    string // API密钥（服务端关闭鉴权时可留空）

	// 超时配置
	RequestTimeout time.Duration // 单个请求超时
	ScanTimeout    time.Duration // 等待整轮扫描完成的超时

	// 日志配置
	Verbose bool // 详细输出
}

// GetConfig 获取测试配置（支持环境变量覆盖）
func GetConfig() *Config {
	return &Config{
		ServerURL:      getEnv("E2E_SERVER_URL", "http://localhost:8080"),
		APIKey:         getEnv("E2E_API_KEY", ""),
		RequestTimeout: getDurationEnv("E2E_REQUEST_TIMEOUT", 30*time.Second),
		ScanTimeout:    getDurationEnv("E2E_SCAN_TIMEOUT", 2*time.Minute),
		Verbose:        getBoolEnv("E2E_VERBOSE", false),
	}
}

// MaskedAPIKey 返回脱敏的 API Key
func (c *Config) MaskedAPIKey() string {
	if c.APIKey == "" {
		return "(未设置)"
	}
	if len(c.APIKey) <= 8 {
		return "***"
	}
	return c.APIKey[:4] + "***" + c.APIKey[len(c.APIKey)-4:]
}

// String 返回配置的字符串表示（脱敏）
func (c *Config) String() string {
	return fmt.Sprintf(`E2E Test Configuration:
  Server URL: %s
  API Key: %s
  Request Timeout: %s
  Scan Timeout: %s
  Verbose: %v`,
		c.ServerURL, c.MaskedAPIKey(), c.RequestTimeout, c.ScanTimeout, c.Verbose)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
