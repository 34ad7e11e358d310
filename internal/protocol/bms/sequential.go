package bms

import (
	"encoding/binary"
	"math"
)

// DecodeSequential 顺序解码常规响应的数据区（不含回显命令字）。
// 字段顺序：6×float32 大端（总压/充电电压/输入电流/IC 电流/安时/瓦时）、
// u8 电芯数、电芯电压 u16 毫伏、u32 均衡位图、u8 温度点数、温度 u16（0.1℃）、
// float32 SoC、float32 SoH、float32 容量 Ah。
// 载荷在任意位置提前结束时返回已解析的部分记录，绝不报错或越界。
func DecodeSequential(data []byte) *Record {
	rec := &Record{}
	off := 0

	readF32 := func(dst **float64) bool {
		if off+4 > len(data) {
			return false
		}
		v := float64(math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4])))
		off += 4
		*dst = &v
		return true
	}

	if !readF32(&rec.TotalVoltage) ||
		!readF32(&rec.ChargeVoltage) ||
		!readF32(&rec.InputCurrent) ||
		!readF32(&rec.InputCurrentIC) ||
		!readF32(&rec.AhCounter) ||
		!readF32(&rec.WhCounter) {
		return rec
	}

	// 电芯区
	if off >= len(data) {
		return rec
	}
	rec.CellCount = int(data[off])
	off++
	n := rec.CellCount
	if n > MaxCells {
		n = MaxCells
	}
	for i := 0; i < n && off+2 <= len(data); i++ {
		mv := binary.BigEndian.Uint16(data[off : off+2])
		off += 2
		rec.CellVoltages = append(rec.CellVoltages, float64(mv)/1000.0)
	}
	rec.deriveCellStats()

	// 均衡位图
	if off+4 > len(data) {
		return rec
	}
	mask := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	rec.BalanceMask = &mask

	// 温度区
	if off >= len(data) {
		return rec
	}
	rec.TempCount = int(data[off])
	off++
	tn := rec.TempCount
	if tn > MaxTempSensors {
		tn = MaxTempSensors
	}
	for i := 0; i < tn && off+2 <= len(data); i++ {
		raw := binary.BigEndian.Uint16(data[off : off+2])
		off += 2
		rec.Temperatures = append(rec.Temperatures, float64(raw)/10.0)
	}

	readF32(&rec.SoC)
	readF32(&rec.SoH)
	readF32(&rec.CapacityAh)
	return rec
}
