package vesc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrBadFrame CRC 或结束符校验失败，候选帧已整体消费丢弃
	ErrBadFrame = errors.New("vesc: bad frame")
	// ErrFrameTooLarge 长度字段超出保护上限
	ErrFrameTooLarge = errors.New("vesc: frame too large")
)

// PacketReader 流式帧读取器：在字节流中重同步并取出帧载荷。
// 状态机：寻找起始符 -> 读长度 -> 读载荷 -> 读 CRC -> 读结束符。
// 每次 Next 最多产出一个结果：一个完整载荷，或一个错误。
// 起始符之前的噪声字节被静默丢弃；坏帧返回 ErrBadFrame，
// 下一次调用从寻找起始符重新开始（不会在同一次调用里越过后续合法帧）。
type PacketReader struct {
	r *bufio.Reader
}

// NewPacketReader 创建帧读取器
// 读取器独占底层流的读方向；超时控制由底层连接的读截止时间承担。
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{r: bufio.NewReader(r)}
}

// Next 阻塞读取下一帧载荷
// 传输层错误（超时、连接关闭）原样向上传递，由调用方决定连接命运。
func (pr *PacketReader) Next() ([]byte, error) {
	// SEEK_START
	for {
		b, err := pr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == FrameStart {
			break
		}
	}

	// READ_LENGTH：首字节高位置位表示长格式
	b0, err := pr.r.ReadByte()
	if err != nil {
		return nil, err
	}
	length := int(b0)
	if b0&0x80 != 0 {
		b1, err := pr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		length = int(b0&0x7F)<<8 | int(b1)
	}
	if length > maxPayloadLen {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, length)
	}

	// READ_PAYLOAD + READ_CRC + READ_STOP 一次读满
	rest := make([]byte, length+3)
	if _, err := io.ReadFull(pr.r, rest); err != nil {
		return nil, err
	}
	payload := rest[:length]
	got := uint16(rest[length])<<8 | uint16(rest[length+1])
	if got != CRC16(payload) || rest[length+2] != FrameStop {
		return nil, ErrBadFrame
	}
	return payload, nil
}
