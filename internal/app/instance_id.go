package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateInstanceID 生成桥接器实例ID
// 优先使用环境变量INSTANCE_ID，否则生成UUID
func GenerateInstanceID() string {
	if id := os.Getenv("INSTANCE_ID"); id != "" {
		return id
	}

	// 生成格式：vesc-bridge-{hostname}-{uuid}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("vesc-bridge-%s-%s", hostname, shortUUID)
}
