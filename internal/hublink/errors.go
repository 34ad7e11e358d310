package hublink

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/taoyao-code/vesc-bridge/internal/protocol/vesc"
)

var (
	// ErrNotConnected 命令通道尚未建立或已被拆除
	ErrNotConnected = errors.New("hublink: not connected")
	// ErrTimeout 截止时间内未收到完整响应
	ErrTimeout = errors.New("hublink: timeout")
	// ErrUnexpectedReply 响应回显的命令字与请求不符
	ErrUnexpectedReply = errors.New("hublink: unexpected reply")
	// ErrNoTelemetry 连发响应流中未找到 BMS 数据帧
	ErrNoTelemetry = errors.New("hublink: bms frame not found in burst response")
)

// normalize 将底层截止时间错误归一为 ErrTimeout，其余传输错误原样返回
func normalize(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// isTimeout 判断是否读写超时
func isTimeout(err error) bool {
	var ne net.Error
	return errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
}

// isBadFrame 判断是否帧级校验失败
func isBadFrame(err error) bool {
	return errors.Is(err, vesc.ErrBadFrame) || errors.Is(err, vesc.ErrFrameTooLarge)
}
