// Package discovery 负责 CAN 总线设备发现：逐地址转发探测、设备登记与别名。
package discovery

import "time"

// LocalAddress 直连控制器的保留地址，探测时不经 CAN 转发
const LocalAddress = 0

// maxFirmwareName 固件名截断长度
const maxFirmwareName = 32

// DeviceRecord 一台已发现设备的登记信息
type DeviceRecord struct {
	Address   int       `json:"address"`
	IsLocal   bool      `json:"is_local"`
	Online    bool      `json:"online"`
	FwMajor   int       `json:"fw_major"`
	FwMinor   int       `json:"fw_minor"`
	FwName    string    `json:"fw_name"`
	HasBMS    bool      `json:"has_bms"`
	Alias     string    `json:"alias,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ParseFirmware 从 FW_VERSION 响应载荷解析固件信息。
// 载荷布局：回显命令字、主版本、次版本、以 NUL 结尾的固件名。
// 长度不足 3 字节视为无效响应（地址上没有设备）。
func ParseFirmware(payload []byte) (major, minor int, name string, ok bool) {
	if len(payload) <= 2 {
		return 0, 0, "", false
	}
	major, minor = int(payload[1]), int(payload[2])
	if len(payload) > 3 {
		name = printableName(payload[3:], maxFirmwareName)
	}
	return major, minor, name, true
}

// printableName 取首个 NUL 之前的可打印字符，超长截断
func printableName(b []byte, limit int) string {
	out := make([]byte, 0, limit)
	for _, c := range b {
		if c == 0x00 {
			break
		}
		if c < 0x20 || c > 0x7E {
			continue
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return string(out)
}
