package bms

import (
	"bytes"
	"errors"
	"testing"
)

func buildSnapshot(reserved byte) []byte {
	var buf bytes.Buffer
	for i := 0; i < 24; i++ { // 保留区，内容不参与解析
		buf.WriteByte(reserved)
	}
	buf.WriteByte(3) // cell_num
	putU16(&buf, 4100)
	putU16(&buf, 4110)
	putU16(&buf, 4095)
	buf.Write([]byte{1, 0, 1}) // balance_flags
	buf.WriteByte(2)           // temp_adc_num
	putU16(&buf, 2500)         // 25.00 ℃
	putU16(&buf, 2600)         // 26.00 ℃
	return buf.Bytes()
}

func TestDecodeSnapshot_Full(t *testing.T) {
	rec, err := DecodeSnapshot(buildSnapshot(0x00))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.CellCount != 3 || len(rec.CellVoltages) != 3 {
		t.Fatalf("cells = %d/%d, want 3/3", rec.CellCount, len(rec.CellVoltages))
	}
	want := []float64{4.100, 4.110, 4.095}
	for i, v := range want {
		if !almost(rec.CellVoltages[i], v) {
			t.Fatalf("cell[%d] = %v, want %v", i, rec.CellVoltages[i], v)
		}
	}
	if rec.TotalVoltage == nil || !almost(*rec.TotalVoltage, 12.305) {
		t.Fatalf("v_tot = %v, want 12.305", rec.TotalVoltage)
	}
	if rec.CellMin == nil || !almost(*rec.CellMin, 4.095) {
		t.Fatalf("cell_min = %v, want 4.095", rec.CellMin)
	}
	if rec.CellMax == nil || !almost(*rec.CellMax, 4.110) {
		t.Fatalf("cell_max = %v, want 4.110", rec.CellMax)
	}
	if rec.CellDelta == nil || !almost(*rec.CellDelta, 0.015) {
		t.Fatalf("cell_delta = %v, want 0.015", rec.CellDelta)
	}
	if rec.CellAvg == nil || !almost(*rec.CellAvg, 12.305/3) {
		t.Fatalf("cell_avg = %v", rec.CellAvg)
	}
	wantFlags := []bool{true, false, true}
	if len(rec.BalanceFlags) != 3 {
		t.Fatalf("balance_flags = %v, want 3 entries", rec.BalanceFlags)
	}
	for i, f := range wantFlags {
		if rec.BalanceFlags[i] != f {
			t.Fatalf("balance_flags[%d] = %v, want %v", i, rec.BalanceFlags[i], f)
		}
	}
	if rec.TempCount != 2 || len(rec.Temperatures) != 2 {
		t.Fatalf("temps = %d/%d, want 2/2", rec.TempCount, len(rec.Temperatures))
	}
	if !almost(rec.Temperatures[0], 25.0) || !almost(rec.Temperatures[1], 26.0) {
		t.Fatalf("temps = %v", rec.Temperatures)
	}
}

func TestDecodeSnapshot_ReservedBytesOpaque(t *testing.T) {
	a, err := DecodeSnapshot(buildSnapshot(0x00))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := DecodeSnapshot(buildSnapshot(0xFF))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *a.TotalVoltage != *b.TotalVoltage || a.CellCount != b.CellCount {
		t.Fatalf("reserved bytes leaked into parse result")
	}
}

func TestDecodeSnapshot_ShortPayload(t *testing.T) {
	for _, n := range []int{0, 1, 24} {
		if _, err := DecodeSnapshot(make([]byte, n)); !errors.Is(err, ErrShortPayload) {
			t.Fatalf("%d bytes: expected ErrShortPayload, got %v", n, err)
		}
	}
}

func TestDecodeSnapshot_TruncatedCells(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 24))
	buf.WriteByte(20) // 声明 20 节，数据只有 2 节
	putU16(&buf, 3300)
	putU16(&buf, 3310)

	rec, err := DecodeSnapshot(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.CellCount != 20 || len(rec.CellVoltages) != 2 {
		t.Fatalf("cells = %d/%d, want 20/2", rec.CellCount, len(rec.CellVoltages))
	}
	if rec.TotalVoltage == nil || !almost(*rec.TotalVoltage, 6.61) {
		t.Fatalf("v_tot = %v, want 6.61", rec.TotalVoltage)
	}
	if rec.BalanceFlags != nil || rec.TempCount != 0 {
		t.Fatalf("expected balance/temps absent")
	}
}

func TestDecodeSnapshot_TempSanityWindow(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 24))
	buf.WriteByte(1)
	putU16(&buf, 4000)
	buf.WriteByte(0) // balance flag
	buf.WriteByte(4) // 四个温度点
	putU16(&buf, 0)     // 拒绝：非正
	putU16(&buf, 10000) // 拒绝：超窗口
	putU16(&buf, 9999)  // 接受：99.99 ℃
	putU16(&buf, 2345)  // 接受：23.45 ℃

	rec, err := DecodeSnapshot(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.TempCount != 4 {
		t.Fatalf("temp_adc_num = %d, want 4", rec.TempCount)
	}
	if len(rec.Temperatures) != 2 {
		t.Fatalf("accepted temps = %v, want 2 entries", rec.Temperatures)
	}
	if !almost(rec.Temperatures[0], 99.99) || !almost(rec.Temperatures[1], 23.45) {
		t.Fatalf("temps = %v", rec.Temperatures)
	}
}
