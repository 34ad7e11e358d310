package vesc

// FindPayload 在原始字节缓冲中扫描首个命令字为 cmd 的合法帧并返回其载荷。
// 用于连发模式：多条响应一次性到达后离线提取目标帧。
// 合法但命令字不符的帧整帧跳过；非法候选仅前进一个字节重新同步。
func FindPayload(buf []byte, cmd byte) ([]byte, bool) {
	for i := 0; i < len(buf); {
		if buf[i] != FrameStart {
			i++
			continue
		}
		payload, end, ok := parseAt(buf, i)
		if !ok {
			i++
			continue
		}
		if len(payload) > 0 && payload[0] == cmd {
			return payload, true
		}
		i = end
	}
	return nil, false
}

// parseAt 尝试在 buf[start] 处解析一个完整帧
// 返回载荷、帧结束偏移（下一字节位置）与是否成功。
func parseAt(buf []byte, start int) (payload []byte, end int, ok bool) {
	i := start + 1
	if i >= len(buf) {
		return nil, 0, false
	}
	b0 := buf[i]
	i++
	length := int(b0)
	if b0&0x80 != 0 {
		if i >= len(buf) {
			return nil, 0, false
		}
		length = int(b0&0x7F)<<8 | int(buf[i])
		i++
	}
	if length > maxPayloadLen || i+length+3 > len(buf) {
		return nil, 0, false
	}
	payload = buf[i : i+length]
	got := uint16(buf[i+length])<<8 | uint16(buf[i+length+1])
	if got != CRC16(payload) || buf[i+length+2] != FrameStop {
		return nil, 0, false
	}
	return payload, i + length + 3, true
}
