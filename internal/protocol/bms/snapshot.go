package bms

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortPayload 载荷不足以容纳快照形态的电芯数字段
var ErrShortPayload = errors.New("bms: payload too short")

// 快照形态固定偏移（以去掉回显命令字后的数据区起算）
// 前 24 字节为含义未明的保留区，解码器不读取。
const (
	snapshotCellCountOff = 24
	snapshotCellsOff     = 25
)

// DecodeSnapshot 按固定偏移解码连发截获的数据区（不含回显命令字）。
// 电芯数在偏移 24，电芯电压（u16 毫伏）自偏移 25 起；
// 其后依次为逐电芯均衡标志（u8）与温度区（u8 点数 + u16 百分之一摄氏度）。
// 温度原始值仅在 (0, 10000) 区间内视为有效读数。
// 总压由电芯电压求和得出，并同时计算最小/最大/平均/压差统计。
func DecodeSnapshot(data []byte) (*Record, error) {
	if len(data) <= snapshotCellCountOff {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(data))
	}

	rec := &Record{}
	cellNum := int(data[snapshotCellCountOff])
	rec.CellCount = cellNum

	n := cellNum
	if n > MaxCells {
		n = MaxCells
	}
	for i := 0; i < n; i++ {
		off := snapshotCellsOff + i*2
		if off+2 > len(data) {
			break
		}
		mv := binary.BigEndian.Uint16(data[off : off+2])
		rec.CellVoltages = append(rec.CellVoltages, float64(mv)/1000.0)
	}

	if len(rec.CellVoltages) > 0 {
		rec.deriveCellStats()
		sum := 0.0
		for _, v := range rec.CellVoltages {
			sum += v
		}
		rec.TotalVoltage = f64ptr(sum)
	}

	// 均衡标志区：紧跟电芯区，逐电芯一字节，必须完整存在才采信
	balanceOff := snapshotCellsOff + cellNum*2
	if len(data) > balanceOff+cellNum {
		flags := make([]bool, 0, cellNum)
		for i := 0; i < cellNum; i++ {
			flags = append(flags, data[balanceOff+i] != 0)
		}
		rec.BalanceFlags = flags
	}

	// 温度区：一字节点数 + 每点 u16
	tempOff := balanceOff + cellNum
	if len(data) > tempOff+1 {
		rec.TempCount = int(data[tempOff])
		tn := rec.TempCount
		if tn > MaxTempSensors {
			tn = MaxTempSensors
		}
		for i := 0; i < tn; i++ {
			off := tempOff + 1 + i*2
			if off+2 > len(data) {
				break
			}
			raw := binary.BigEndian.Uint16(data[off : off+2])
			if raw > 0 && raw < 10000 {
				rec.Temperatures = append(rec.Temperatures, float64(raw)/100.0)
			}
		}
	}

	return rec, nil
}
