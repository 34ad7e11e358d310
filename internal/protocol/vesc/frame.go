// Package vesc 实现 VESC 二进制帧协议的编解码与流式重同步读取。
// 帧布局：
// 0x02 | len（载荷<128 时 1 字节；否则 2 字节，首字节高位 0x80 置位）| payload | crc16 大端 | 0x03
package vesc

// Encode 将载荷封装为一帧
// 编码是纯函数：对任意载荷产出确定的字节序列，不做业务校验。
func Encode(payload []byte) []byte {
	n := len(payload)
	buf := make([]byte, 0, n+6)
	if n < 128 {
		buf = append(buf, FrameStart, byte(n))
	} else {
		buf = append(buf, FrameStart, byte(0x80|(n>>8)&0xFF), byte(n&0xFF))
	}
	buf = append(buf, payload...)
	crc := CRC16(payload)
	buf = append(buf, byte(crc>>8), byte(crc&0xFF), FrameStop)
	return buf
}

// EncodeCommand 组装「命令字 + 参数」载荷并封帧
func EncodeCommand(cmd byte, args []byte) []byte {
	payload := make([]byte, 0, 1+len(args))
	payload = append(payload, cmd)
	payload = append(payload, args...)
	return Encode(payload)
}
