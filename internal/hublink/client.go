// Package hublink 维护与 VESC Hub 的 TCP 命令通道。
// 通道上的请求/响应靠顺序对应（协议无请求序号），因此同一时刻只允许一条
// 在途命令；任何超时、坏帧或传输错误都会整体拆除连接，由调用方择机重连。
package hublink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/vesc-bridge/internal/config"
	"github.com/taoyao-code/vesc-bridge/internal/metrics"
	"github.com/taoyao-code/vesc-bridge/internal/protocol/vesc"
)

// toolID Hub 认证行的固定前缀，与 VESC Tool 上位机一致
const toolID = "VESCTOOL"

// Client VESC Hub 命令通道客户端
type Client struct {
	cfg cfgpkg.HubConfig
	log *zap.Logger
	m   *metrics.AppMetrics

	mu        sync.Mutex
	conn      net.Conn
	rd        *vesc.PacketReader
	connected bool
}

// New 创建命令通道客户端（不建立连接）
func New(cfg cfgpkg.HubConfig, log *zap.Logger, m *metrics.AppMetrics) *Client {
	return &Client{cfg: cfg, log: log, m: m}
}

// Connect 建立 TCP 连接；已连接时直接返回。
// 配置了 VescID 与 Password 时，先发送一行明文认证，再静置片刻等待
// Hub 完成认证处理——静置期省略会导致随后的首批命令被丢弃。
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.connected {
		return nil
	}

	addr := c.cfg.Addr()
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.m.HubConnects.WithLabelValues("error").Inc()
		return fmt.Errorf("dial hub %s: %w", addr, err)
	}

	if c.cfg.VescID != "" && c.cfg.Password != "" {
		line := fmt.Sprintf("%s:%s:%s\n", toolID, c.cfg.VescID, c.cfg.Password)
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.CommandTimeout))
		if _, err := conn.Write([]byte(line)); err != nil {
			_ = conn.Close()
			c.m.HubConnects.WithLabelValues("error").Inc()
			return fmt.Errorf("send auth line: %w", normalize(err))
		}
		_ = conn.SetWriteDeadline(time.Time{})

		if c.cfg.SettleDelay > 0 {
			select {
			case <-time.After(c.cfg.SettleDelay):
			case <-ctx.Done():
				_ = conn.Close()
				return ctx.Err()
			}
		}
		c.log.Debug("hub auth line sent", zap.String("vescId", c.cfg.VescID))
	}

	c.conn = conn
	c.rd = vesc.NewPacketReader(conn)
	c.connected = true
	c.m.HubConnects.WithLabelValues("ok").Inc()
	c.m.LinkUp.Set(1)
	c.log.Info("hub connected", zap.String("addr", addr))
	return nil
}

// Disconnect 拆除连接；可重复调用
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Client) teardownLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.rd = nil
	if c.connected {
		c.connected = false
		c.m.LinkUp.Set(0)
		c.log.Info("hub disconnected")
	}
}

// IsConnected 返回通道当前状态
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send 发送一条命令并读取一帧响应，使用默认命令超时
func (c *Client) Send(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	return c.SendTimeout(ctx, cmd, args, c.cfg.CommandTimeout)
}

// SendTimeout 发送一条命令并读取一帧响应
// 响应与请求按顺序对应；失败（超时/坏帧/传输错误）即拆除连接并标记断开，
// 不做自动重试。
func (c *Client) SendTimeout(ctx context.Context, cmd byte, args []byte, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	frame := vesc.EncodeCommand(cmd, args)
	_ = c.conn.SetWriteDeadline(deadline)
	if _, err := c.conn.Write(frame); err != nil {
		c.teardownLocked()
		c.countCommand(cmd, err)
		return nil, fmt.Errorf("write command 0x%02x: %w", cmd, normalize(err))
	}
	c.m.HubBytesSent.Add(float64(len(frame)))

	_ = c.conn.SetReadDeadline(deadline)
	payload, err := c.rd.Next()
	if err != nil {
		c.teardownLocked()
		c.countCommand(cmd, err)
		return nil, fmt.Errorf("command 0x%02x: %w", cmd, normalize(err))
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	c.m.HubBytesReceived.Add(float64(frameOverhead(len(payload)) + len(payload)))
	c.countCommand(cmd, nil)
	return payload, nil
}

// frameOverhead 帧定界与校验开销（起始符+长度字段+CRC+结束符）
func frameOverhead(payloadLen int) int {
	if payloadLen < 128 {
		return 5
	}
	return 6
}

func (c *Client) countCommand(cmd byte, err error) {
	result := "ok"
	switch {
	case err == nil:
	case isTimeout(err):
		result = "timeout"
	case isBadFrame(err):
		result = "bad_frame"
	default:
		result = "error"
	}
	c.m.HubCommands.WithLabelValues(fmt.Sprintf("0x%02x", cmd), result).Inc()
}
