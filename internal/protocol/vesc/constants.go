package vesc

// 帧定界符
const (
	FrameStart byte = 0x02
	FrameStop  byte = 0x03
)

// VESC 命令字（与 VESC Tool 上位机约定一致，载荷首字节）
// 响应载荷会回显命令字作为首字节。
const (
	CmdFWVersion       byte = 0x00 // 固件版本
	CmdGetValues       byte = 0x04 // 控制器实时数据
	CmdForwardCAN      byte = 0x22 // CAN 转发：载荷 = [目标地址, 内层命令...]（34）
	CmdPingCAN         byte = 0x3E // CAN 总线唤醒/探测（62）
	CmdGetCustomConfig byte = 0x5D // 自定义配置读取（93）
	CmdBMSGetValues    byte = 0x60 // BMS 实时数据（96）
)

// maxPayloadLen 单帧载荷保护上限
// 长度字段最大可声明 0x7FFF，畸形数据容易伪造超大长度，这里截断以免无谓读取。
const maxPayloadLen = 4096
