package cache

import (
	"fmt"
	"testing"

	"github.com/coreware-labs/partcache/internal/logging"
)

func newTestPartition(volumeMax int64) *Partition {
	p := NewPartition(0, volumeMax, logging.Default())
	p.Engine = NewLockEngine()
	return p
}

func insertKV(p *Partition, key, value string) *Entry {
	e := p.Create([]byte(key), []byte(value), 0, 0)
	p.Insert(e)
	p.Finish(e)
	return e
}

func TestInsertLookupFinish(t *testing.T) {
	p := newTestPartition(1 << 20)
	insertKV(p, "foo", "bar")

	hash := hashKey([]byte("foo"))
	e := p.Lookup([]byte("foo"), hash, 0)
	if e == nil {
		t.Fatal("lookup miss, want hit")
	}
	if string(e.Value) != "bar" {
		t.Fatalf("value = %q, want %q", e.Value, "bar")
	}
	if e.refcount != 1 {
		t.Fatalf("refcount = %d, want 1", e.refcount)
	}
	p.Finish(e)
	if e.refcount != 0 {
		t.Fatalf("refcount after Finish = %d, want 0", e.refcount)
	}
}

func TestLookupMiss(t *testing.T) {
	p := newTestPartition(1 << 20)
	if e := p.Lookup([]byte("missing"), hashKey([]byte("missing")), 0); e != nil {
		t.Fatalf("lookup hit for absent key: %+v", e)
	}
}

func TestUpdateCASMismatch(t *testing.T) {
	p := newTestPartition(1 << 20)
	e := insertKV(p, "k", "v1")
	hash := hashKey([]byte("k"))

	res, _ := p.Update([]byte("k"), hash, []byte("v2"), 0, 0, e.CAS+1, 0)
	if res != UpdateCASMismatch {
		t.Fatalf("result = %v, want UpdateCASMismatch", res)
	}

	res, got := p.Update([]byte("k"), hash, []byte("v2"), 0, 0, e.CAS, 0)
	if res != UpdateOK {
		t.Fatalf("result = %v, want UpdateOK", res)
	}
	if string(got.Value) != "v2" {
		t.Fatalf("value = %q, want v2", got.Value)
	}
}

func TestDelete(t *testing.T) {
	p := newTestPartition(1 << 20)
	insertKV(p, "k", "v")
	hash := hashKey([]byte("k"))

	if p.Delete([]byte("k"), hash, 0) == nil {
		t.Fatal("Delete returned nil for present key")
	}
	if p.Lookup([]byte("k"), hash, 0) != nil {
		t.Fatal("key still found after Delete")
	}
	if p.Delete([]byte("k"), hash, 0) != nil {
		t.Fatal("second Delete should miss")
	}
}

func TestExpiredLookupMisses(t *testing.T) {
	p := newTestPartition(1 << 20)
	e := p.Create([]byte("k"), []byte("v"), 0, 100)
	p.Insert(e)

	if got := p.Lookup([]byte("k"), e.hash, 50); got == nil {
		t.Fatal("lookup before expiry should hit")
	}
	if got := p.Lookup([]byte("k"), e.hash, 200); got != nil {
		t.Fatal("lookup after expiry should miss")
	}
}

func TestFlushAllExpiresEverything(t *testing.T) {
	p := newTestPartition(1 << 20)
	insertKV(p, "a", "1")
	insertKV(p, "b", "2")

	p.Flush(0, 1000)

	if p.Lookup([]byte("a"), hashKey([]byte("a")), 1000) != nil {
		t.Fatal("a should be expired after flush_all")
	}
	if p.Lookup([]byte("b"), hashKey([]byte("b")), 1000) != nil {
		t.Fatal("b should be expired after flush_all")
	}
}

func TestStrideRehousesAllEntries(t *testing.T) {
	p := newTestPartition(1 << 30)
	const n = 500
	for i := 0; i < n; i++ {
		insertKV(p, fmt.Sprintf("key-%d", i), "v")
	}
	if !p.striding {
		t.Fatal("expected striding to have triggered after many inserts")
	}

	for p.StrideStep() {
	}
	if p.striding {
		t.Fatal("striding should be complete")
	}

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key-%d", i)
		if p.Lookup([]byte(key), hashKey([]byte(key)), 0) == nil {
			t.Fatalf("key %q lost after stride", key)
		}
	}
}

func TestEvictOneReclaimsColdEntry(t *testing.T) {
	p := newTestPartition(10) // tiny budget forces eviction immediately
	insertKV(p, "a", "xxxxx")
	insertKV(p, "b", "yyyyy")
	insertKV(p, "c", "zzzzz")

	if !p.evicting {
		t.Fatal("expected evicting to be set once volume exceeded volumeMax")
	}
	for p.EvictOne() {
	}
	if p.volume > p.volumeMax {
		t.Fatalf("volume = %d still exceeds volumeMax = %d", p.volume, p.volumeMax)
	}
}

func TestEvictOneFiresOnEvictHook(t *testing.T) {
	p := newTestPartition(10)
	var evictedBytes int64
	var evictedCount int
	p.OnEvict = func(bytes int64) {
		evictedBytes += bytes
		evictedCount++
	}
	insertKV(p, "a", "xxxxx")
	insertKV(p, "b", "yyyyy")
	insertKV(p, "c", "zzzzz")

	for p.EvictOne() {
	}

	if evictedCount == 0 {
		t.Fatal("expected OnEvict to fire at least once")
	}
	if evictedBytes == 0 {
		t.Fatal("expected OnEvict to report reclaimed bytes")
	}
}

func TestEvictSkipsLiveEntry(t *testing.T) {
	p := newTestPartition(1) // forces eviction on the very first insert
	e := insertKV(p, "a", "xxxxxxxxxx")
	e.ref() // simulate an in-flight reader

	p.EvictOne()
	got := p.Lookup([]byte("a"), e.hash, 0)
	if got == nil {
		t.Fatal("live entry should not have been evicted")
	} else {
		p.Finish(got)
	}
	p.Finish(e)
}

func TestFinishClearsVoidAccountingOnLastRef(t *testing.T) {
	p := newTestPartition(1 << 20)
	e := insertKV(p, "a", "v")
	hash := hashKey([]byte("a"))
	p.Lookup([]byte("a"), hash, 0) // a reader's Lookup ref
	e.ref()                        // simulate an in-flight reader holding a splice release

	p.Delete([]byte("a"), hash, 0)
	if !e.void {
		t.Fatal("expected entry to be marked void once unlinked with a live ref")
	}
	if p.nentriesVoid != 1 {
		t.Fatalf("nentriesVoid = %d, want 1", p.nentriesVoid)
	}

	p.Finish(e) // drop the ref taken by Lookup above
	if p.nentriesVoid != 1 {
		t.Fatalf("nentriesVoid = %d after first Finish, want still 1 (one ref remains)", p.nentriesVoid)
	}

	p.Finish(e) // drop the simulated reader's ref, the last one
	if p.nentriesVoid != 0 {
		t.Fatalf("nentriesVoid = %d after last Finish, want 0", p.nentriesVoid)
	}
	if e.void {
		t.Fatal("expected void to clear once refcount reached 0")
	}
}
