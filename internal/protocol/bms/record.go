// Package bms 解析 BMS_GET_VALUES 响应载荷。
// 同一命令存在两种响应形态，对应两种解码策略：
//   - DecodeSequential：常规单命令响应，字段按固定顺序排列；
//   - DecodeSnapshot：连发序列截获的响应，字段按固定偏移排列。
//
// 两种解码都只收取「回显命令字之后」的数据区。
package bms

// 解析保护上限，超出部分按损坏数据忽略
const (
	MaxCells       = 32
	MaxTempSensors = 10
)

// Record BMS 遥测记录
// 指针字段为 nil 表示载荷未覆盖到该字段（缺失不等于零值）。
type Record struct {
	TotalVoltage   *float64 `json:"v_tot,omitempty"`
	ChargeVoltage  *float64 `json:"v_charge,omitempty"`
	InputCurrent   *float64 `json:"i_in,omitempty"`
	InputCurrentIC *float64 `json:"i_in_ic,omitempty"`
	AhCounter      *float64 `json:"ah_cnt,omitempty"`
	WhCounter      *float64 `json:"wh_cnt,omitempty"`

	// CellCount 为载荷声明的电芯数；实际解析结果见 CellVoltages（受上限与载荷长度约束）
	CellCount    int       `json:"cell_num,omitempty"`
	CellVoltages []float64 `json:"cell_voltages,omitempty"` // V

	// BalanceMask 顺序形态的均衡位图；BalanceFlags 快照形态的逐电芯均衡标志
	BalanceMask  *uint32 `json:"bal_state,omitempty"`
	BalanceFlags []bool  `json:"balance_flags,omitempty"`

	TempCount    int       `json:"temp_adc_num,omitempty"`
	Temperatures []float64 `json:"temperatures,omitempty"` // ℃

	SoC        *float64 `json:"soc,omitempty"`
	SoH        *float64 `json:"soh,omitempty"`
	CapacityAh *float64 `json:"capacity_ah,omitempty"`

	// 电芯统计，存在已解析电芯时填充
	CellMin   *float64 `json:"cell_min,omitempty"`
	CellMax   *float64 `json:"cell_max,omitempty"`
	CellAvg   *float64 `json:"cell_avg,omitempty"`
	CellDelta *float64 `json:"cell_delta,omitempty"`
}

// deriveCellStats 由已解析电芯电压计算统计值
func (r *Record) deriveCellStats() {
	if len(r.CellVoltages) == 0 {
		return
	}
	min, max, sum := r.CellVoltages[0], r.CellVoltages[0], 0.0
	for _, v := range r.CellVoltages {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	avg := sum / float64(len(r.CellVoltages))
	delta := max - min
	r.CellMin, r.CellMax, r.CellAvg, r.CellDelta = &min, &max, &avg, &delta
}

func f64ptr(v float64) *float64 { return &v }
