package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/vesc-bridge/internal/discovery"
	"github.com/taoyao-code/vesc-bridge/internal/poller"
)

// Repository 设备档案与遥测历史的持久化
type Repository struct {
	Pool *pgxpool.Pool
}

// UpsertDevice 建档或刷新设备；首见时间只在插入时写入
func (r *Repository) UpsertDevice(ctx context.Context, rec discovery.DeviceRecord) error {
	const q = `INSERT INTO devices
	               (address, is_local, online, fw_major, fw_minor, fw_name, has_bms, alias, first_seen_at, last_seen_at)
	           VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	           ON CONFLICT (address) DO UPDATE SET
	               online=EXCLUDED.online, fw_major=EXCLUDED.fw_major, fw_minor=EXCLUDED.fw_minor,
	               fw_name=EXCLUDED.fw_name, has_bms=EXCLUDED.has_bms, alias=EXCLUDED.alias,
	               last_seen_at=EXCLUDED.last_seen_at, updated_at=NOW()`
	_, err := r.Pool.Exec(ctx, q,
		rec.Address, rec.IsLocal, rec.Online, rec.FwMajor, rec.FwMinor,
		rec.FwName, rec.HasBMS, rec.Alias, rec.FirstSeen, rec.LastSeen)
	return err
}

// ListDevices 返回全部设备档案（按地址排序）
func (r *Repository) ListDevices(ctx context.Context) ([]discovery.DeviceRecord, error) {
	const q = `SELECT address, is_local, online, fw_major, fw_minor, fw_name, has_bms, alias, first_seen_at, last_seen_at
	           FROM devices ORDER BY address`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []discovery.DeviceRecord
	for rows.Next() {
		var rec discovery.DeviceRecord
		if err := rows.Scan(&rec.Address, &rec.IsLocal, &rec.Online, &rec.FwMajor, &rec.FwMinor,
			&rec.FwName, &rec.HasBMS, &rec.Alias, &rec.FirstSeen, &rec.LastSeen); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// InsertTelemetry 落一条遥测历史
func (r *Repository) InsertTelemetry(ctx context.Context, snap poller.Snapshot) error {
	rec := snap.Record
	if rec == nil {
		return fmt.Errorf("snapshot has no record")
	}
	const q = `INSERT INTO bms_telemetry
	               (captured_at, mode, v_tot, v_charge, i_in, i_in_ic, ah_cnt, wh_cnt,
	                cell_count, cell_voltages, balance_mask, balance_flags,
	                temperatures, soc, soh, capacity_ah, cell_min, cell_max, cell_avg, cell_delta)
	           VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

	var mask *int64
	if rec.BalanceMask != nil {
		v := int64(*rec.BalanceMask)
		mask = &v
	}
	// 空切片落 NULL，非空序列化进 JSONB
	var cells, flags, temps []byte
	if len(rec.CellVoltages) > 0 {
		cells, _ = json.Marshal(rec.CellVoltages)
	}
	if len(rec.BalanceFlags) > 0 {
		flags, _ = json.Marshal(rec.BalanceFlags)
	}
	if len(rec.Temperatures) > 0 {
		temps, _ = json.Marshal(rec.Temperatures)
	}
	_, err := r.Pool.Exec(ctx, q,
		snap.CapturedAt, snap.Mode,
		rec.TotalVoltage, rec.ChargeVoltage, rec.InputCurrent, rec.InputCurrentIC,
		rec.AhCounter, rec.WhCounter,
		rec.CellCount, cells, mask, flags,
		temps, rec.SoC, rec.SoH, rec.CapacityAh,
		rec.CellMin, rec.CellMax, rec.CellAvg, rec.CellDelta)
	return err
}

// Consume 实现 poller.Sink：每个轮询周期落一条历史
func (r *Repository) Consume(ctx context.Context, snap poller.Snapshot) error {
	return r.InsertTelemetry(ctx, snap)
}

// TelemetryRow 历史查询返回的摘要行
type TelemetryRow struct {
	ID           int64     `json:"id"`
	CapturedAt   time.Time `json:"captured_at"`
	Mode         string    `json:"mode"`
	TotalVoltage *float64  `json:"v_tot,omitempty"`
	InputCurrent *float64  `json:"i_in,omitempty"`
	SoC          *float64  `json:"soc,omitempty"`
	CellCount    *int      `json:"cell_num,omitempty"`
	CellMin      *float64  `json:"cell_min,omitempty"`
	CellMax      *float64  `json:"cell_max,omitempty"`
	CellDelta    *float64  `json:"cell_delta,omitempty"`
}

// TelemetryHistory 按时间倒序返回最近 limit 条遥测摘要
func (r *Repository) TelemetryHistory(ctx context.Context, limit int) ([]TelemetryRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	const q = `SELECT id, captured_at, mode, v_tot, i_in, soc, cell_count, cell_min, cell_max, cell_delta
	           FROM bms_telemetry ORDER BY captured_at DESC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TelemetryRow
	for rows.Next() {
		var row TelemetryRow
		if err := rows.Scan(&row.ID, &row.CapturedAt, &row.Mode, &row.TotalVoltage, &row.InputCurrent,
			&row.SoC, &row.CellCount, &row.CellMin, &row.CellMax, &row.CellDelta); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
