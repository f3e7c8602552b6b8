package cache

import "testing"

func TestNewTableRoundsPartitionsDownToPow2(t *testing.T) {
	tbl := NewTable(Config{Partitions: 5, VolumeTotal: 1 << 20})
	if tbl.N() != 4 {
		t.Fatalf("N() = %d, want 4", tbl.N())
	}
}

func TestPartitionOfIsStableForSameKey(t *testing.T) {
	tbl := NewTable(Config{Partitions: 8, VolumeTotal: 1 << 20})
	p1, h1 := tbl.PartitionOf([]byte("hello"))
	p2, h2 := tbl.PartitionOf([]byte("hello"))
	if p1 != p2 || h1 != h2 {
		t.Fatal("PartitionOf not stable across calls for the same key")
	}
}

func TestPartitionVolumeSplitEqually(t *testing.T) {
	tbl := NewTable(Config{Partitions: 4, VolumeTotal: 4000})
	for _, p := range tbl.All() {
		if p.VolumeMax() != 1000 {
			t.Fatalf("partition %d volumeMax = %d, want 1000", p.ID, p.VolumeMax())
		}
	}
}

func TestEngineSerializesTableWideAccess(t *testing.T) {
	tbl := NewTable(Config{
		Partitions:  1,
		VolumeTotal: 1 << 20,
		NewEngine:   func(int) Engine { return NewCombinerEngine(64, 8) },
	})
	p := tbl.Partition(0)

	done := make(chan struct{})
	const n = 100
	for i := 0; i < n; i++ {
		i := i
		go func() {
			p.Do(func() {
				e := p.Create([]byte{byte(i)}, []byte("v"), 0, 0)
				p.Insert(e)
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	if p.NEntries() != n {
		t.Fatalf("NEntries() = %d, want %d", p.NEntries(), n)
	}
}
