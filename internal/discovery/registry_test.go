package discovery

import (
	"testing"
	"time"
)

func TestRegistry_UpsertPreservesFirstSeen(t *testing.T) {
	r := NewRegistry()
	t0 := time.Now()
	t1 := t0.Add(time.Minute)

	if !r.Upsert(DeviceRecord{Address: 7, Online: true, FwName: "BMS"}, t0) {
		t.Fatalf("first upsert should report new address")
	}
	if r.Upsert(DeviceRecord{Address: 7, Online: true, FwName: "BMS v2"}, t1) {
		t.Fatalf("second upsert should not report new address")
	}

	rec, ok := r.Get(7)
	if !ok {
		t.Fatalf("device 7 missing")
	}
	if !rec.FirstSeen.Equal(t0) {
		t.Errorf("FirstSeen = %v, want %v", rec.FirstSeen, t0)
	}
	if !rec.LastSeen.Equal(t1) {
		t.Errorf("LastSeen = %v, want %v", rec.LastSeen, t1)
	}
	if rec.FwName != "BMS v2" {
		t.Errorf("FwName = %q, want updated value", rec.FwName)
	}
}

func TestRegistry_MarkOffline(t *testing.T) {
	r := NewRegistry()
	t0 := time.Now()
	r.Upsert(DeviceRecord{Address: 3, Online: true}, t0)

	r.MarkOffline(3, t0.Add(time.Second))
	rec, ok := r.Get(3)
	if !ok {
		t.Fatalf("record should survive offline marking")
	}
	if rec.Online {
		t.Errorf("expected Online=false after MarkOffline")
	}

	// 未登记地址不产生记录
	r.MarkOffline(99, t0)
	if _, ok := r.Get(99); ok {
		t.Errorf("MarkOffline must not create records")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	for _, a := range []int{9, 0, 3} {
		r.Upsert(DeviceRecord{Address: a}, now)
	}

	got := r.List()
	if len(got) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(got))
	}
	for i, want := range []int{0, 3, 9} {
		if got[i].Address != want {
			t.Errorf("List()[%d].Address = %d, want %d", i, got[i].Address, want)
		}
	}
	if r.Count() != 3 {
		t.Errorf("Count() = %d, want 3", r.Count())
	}
}

func TestRegistry_RestoreKeepsLiveRecords(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Upsert(DeviceRecord{Address: 1, Online: true, FwName: "live"}, now)

	r.Restore([]DeviceRecord{
		{Address: 1, Online: false, FwName: "stale"},
		{Address: 2, Online: false, FwName: "restored"},
	})

	rec, _ := r.Get(1)
	if rec.FwName != "live" {
		t.Errorf("restore overwrote live record: FwName = %q", rec.FwName)
	}
	rec, ok := r.Get(2)
	if !ok || rec.FwName != "restored" {
		t.Errorf("restore should add unknown addresses, got %+v ok=%v", rec, ok)
	}
}
