package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/vesc-bridge/internal/discovery"
	"github.com/taoyao-code/vesc-bridge/internal/poller"
)

// Redis Key 约定
const (
	latestTelemetryKey = "vesc:telemetry:latest" // 最近一次遥测快照（String，JSON）
	deviceHashKey      = "vesc:devices"          // 设备登记表（Hash，field=CAN 地址）
)

// SnapshotStore 热数据存储：最近遥测 + 设备登记表，进程重启后可恢复
type SnapshotStore struct {
	client *Client
	ttl    time.Duration // 遥测快照过期时间；0 表示不过期
}

// NewSnapshotStore 创建热数据存储
func NewSnapshotStore(client *Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

// Consume 实现 poller.Sink：把轮询快照写入 Redis
func (s *SnapshotStore) Consume(ctx context.Context, snap poller.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, latestTelemetryKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// LatestTelemetry 读取最近一次遥测快照；不存在时返回 (nil, nil)
func (s *SnapshotStore) LatestTelemetry(ctx context.Context) (*poller.Snapshot, error) {
	data, err := s.client.Get(ctx, latestTelemetryKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var snap poller.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// SaveDevices 覆盖写入设备记录（按地址为 field）
func (s *SnapshotStore) SaveDevices(ctx context.Context, recs []discovery.DeviceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal device %d: %w", rec.Address, err)
		}
		fields[strconv.Itoa(rec.Address)] = data
	}
	return s.client.HSet(ctx, deviceHashKey, fields).Err()
}

// LoadDevices 读取全部设备记录（启动恢复用）；损坏的条目跳过
func (s *SnapshotStore) LoadDevices(ctx context.Context) ([]discovery.DeviceRecord, error) {
	raw, err := s.client.HGetAll(ctx, deviceHashKey).Result()
	if err != nil {
		return nil, err
	}
	recs := make([]discovery.DeviceRecord, 0, len(raw))
	for _, v := range raw {
		var rec discovery.DeviceRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
