package discovery

import (
	"sort"
	"sync"
	"time"
)

// Registry 设备登记表：按地址累积历次扫描发现的设备。
// 记录只增不减；再次扫到同一地址时覆盖固件信息并保留首见时间。
type Registry struct {
	mu      sync.RWMutex
	devices map[int]DeviceRecord
}

// NewRegistry 创建空登记表
func NewRegistry() *Registry {
	return &Registry{devices: make(map[int]DeviceRecord)}
}

// Upsert 登记或更新设备，返回是否为新地址
func (r *Registry) Upsert(rec DeviceRecord, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.devices[rec.Address]
	if exists {
		rec.FirstSeen = old.FirstSeen
	} else {
		rec.FirstSeen = now
	}
	rec.LastSeen = now
	r.devices[rec.Address] = rec
	return !exists
}

// MarkOffline 将已知地址标记为离线；未登记的地址忽略
func (r *Registry) MarkOffline(addr int, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[addr]
	if !ok {
		return
	}
	rec.Online = false
	rec.LastSeen = now
	r.devices[addr] = rec
}

// Get 按地址查询
func (r *Registry) Get(addr int) (DeviceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.devices[addr]
	return rec, ok
}

// List 返回按地址排序的全部记录
func (r *Registry) List() []DeviceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DeviceRecord, 0, len(r.devices))
	for _, rec := range r.devices {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Count 返回已登记设备数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Restore 从持久化快照恢复登记表（启动时使用），已有记录不覆盖
func (r *Registry) Restore(recs []DeviceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		if _, exists := r.devices[rec.Address]; exists {
			continue
		}
		r.devices[rec.Address] = rec
	}
}
