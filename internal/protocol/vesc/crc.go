package vesc

// CRC16 VESC 帧校验（多项式 0x1021，初值 0，高位先行，无反转）
// 仅覆盖载荷本身，不含定界符与长度字段。空载荷的校验值为 0。
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
