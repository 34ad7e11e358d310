package hublink

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/vesc-bridge/internal/protocol/bms"
	"github.com/taoyao-code/vesc-bridge/internal/protocol/vesc"
)

// checkEcho 校验响应载荷的回显命令字并剥离
func checkEcho(payload []byte, want byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("%w: %d byte payload", ErrUnexpectedReply, len(payload))
	}
	if payload[0] != want {
		return nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrUnexpectedReply, payload[0], want)
	}
	return payload[1:], nil
}

// GetTelemetry 常规单命令读取 BMS 遥测（顺序解码）
func (c *Client) GetTelemetry(ctx context.Context) (*bms.Record, error) {
	payload, err := c.Send(ctx, vesc.CmdBMSGetValues, nil)
	if err != nil {
		return nil, err
	}
	data, err := checkEcho(payload, vesc.CmdBMSGetValues)
	if err != nil {
		return nil, err
	}
	return bms.DecodeSequential(data), nil
}

// GetValues 读取控制器实时数据，原始字节透传（不做字段解码）
func (c *Client) GetValues(ctx context.Context) ([]byte, error) {
	payload, err := c.Send(ctx, vesc.CmdGetValues, nil)
	if err != nil {
		return nil, err
	}
	return checkEcho(payload, vesc.CmdGetValues)
}

// ProbeLocal 直接探测本机控制器固件信息（不经 CAN 转发），返回完整响应载荷
func (c *Client) ProbeLocal(ctx context.Context, timeout time.Duration) ([]byte, error) {
	return c.SendTimeout(ctx, vesc.CmdFWVersion, nil, timeout)
}

// ProbeForwarded 通过 CAN 转发向指定地址发送内层命令，返回完整响应载荷。
// 地址未被占用时表现为超时，调用方应将其视为常态而非故障。
func (c *Client) ProbeForwarded(ctx context.Context, addr uint8, inner byte, timeout time.Duration) ([]byte, error) {
	return c.SendTimeout(ctx, vesc.CmdForwardCAN, []byte{addr, inner}, timeout)
}
