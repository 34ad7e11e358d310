package hublink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/vesc-bridge/internal/protocol/bms"
	"github.com/taoyao-code/vesc-bridge/internal/protocol/vesc"
)

// 连发采集窗口参数。总窗口内以较短的单次读超时反复收取分片：
// 已有数据时把单次超时当作间歇继续等，完全无数据时才放弃。
const (
	burstWindow      = 3 * time.Second
	burstReadTimeout = 500 * time.Millisecond
	burstChunkSize   = 1024
)

// GetTelemetryUnlocked 以连发序列采集 BMS 遥测（快照解码）。
// Hub 侧只有在本序列之后才会放行 BMS 数据，因此每次采集都重建连接，
// 并严格按固定顺序一次性写入四条命令后统一收取响应流：
//
//	FW_VERSION -> GET_CUSTOM_CONFIG(0x00) -> PING_CAN -> BMS_GET_VALUES
//
// 命令顺序与「先写完再读」的节奏都是实测出来的前置条件，不可调整。
func (c *Client) GetTelemetryUnlocked(ctx context.Context) (*bms.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 全新连接，丢弃旧通道上可能残留的半截响应
	c.teardownLocked()
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	var burst []byte
	burst = append(burst, vesc.EncodeCommand(vesc.CmdFWVersion, nil)...)
	burst = append(burst, vesc.EncodeCommand(vesc.CmdGetCustomConfig, []byte{0x00})...)
	burst = append(burst, vesc.EncodeCommand(vesc.CmdPingCAN, nil)...)
	burst = append(burst, vesc.EncodeCommand(vesc.CmdBMSGetValues, nil)...)

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.CommandTimeout))
	if _, err := c.conn.Write(burst); err != nil {
		c.teardownLocked()
		return nil, fmt.Errorf("write burst: %w", normalize(err))
	}
	_ = c.conn.SetWriteDeadline(time.Time{})
	c.m.HubBytesSent.Add(float64(len(burst)))

	raw, err := c.drainLocked(ctx)
	if err != nil {
		c.teardownLocked()
		return nil, err
	}
	c.log.Debug("burst responses collected", zap.Int("bytes", len(raw)))

	payload, ok := vesc.FindPayload(raw, vesc.CmdBMSGetValues)
	if !ok {
		c.teardownLocked()
		return nil, ErrNoTelemetry
	}
	rec, err := bms.DecodeSnapshot(payload[1:])
	if err != nil {
		return nil, fmt.Errorf("decode burst telemetry: %w", err)
	}
	return rec, nil
}

// drainLocked 在固定窗口内收取全部响应分片。
// 此处绕开帧读取器直接读原始字节：连接是刚建立的，帧读取器尚未缓冲任何
// 数据，且连发响应需要整段缓冲后离线扫描。
func (c *Client) drainLocked(ctx context.Context) ([]byte, error) {
	var all []byte
	buf := make([]byte, burstChunkSize)
	start := time.Now()

	for time.Since(start) < burstWindow {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(burstReadTimeout))
		n, err := c.conn.Read(buf)
		if n > 0 {
			all = append(all, buf[:n]...)
			c.m.HubBytesReceived.Add(float64(n))
		}
		if err != nil {
			if isTimeout(err) {
				if len(all) > 0 {
					continue
				}
				return nil, fmt.Errorf("burst: %w", normalize(err))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("burst read: %w", err)
		}
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	if len(all) == 0 {
		return nil, fmt.Errorf("burst: %w", ErrTimeout)
	}
	return all, nil
}
