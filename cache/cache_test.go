package cache

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/resource"
)

// oneShard sends every key to shard 0 so eviction order is predictable.
func oneShard(int) uint64 { return 0 }

func TestShardedGetSet(t *testing.T) {
	c := NewSharded[int, string](4, oneShard)
	c.Set(1, "one")

	v, ok := c.Get(1)
	if !ok || v != "one" {
		t.Errorf("expected one, got %q (%v)", v, ok)
	}
	if _, ok := c.Get(2); ok {
		t.Error("expected miss for key 2")
	}

	c.Set(1, "uno")
	if v, _ := c.Get(1); v != "uno" {
		t.Errorf("expected overwrite, got %q", v)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestShardedEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewSharded[int, int](3, oneShard)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)
	c.Get(1)
	c.Set(4, 4)

	if c.Contains(2) {
		t.Error("expected key 2 to be evicted")
	}
	for _, k := range []int{1, 3, 4} {
		if !c.Contains(k) {
			t.Errorf("expected key %d to remain", k)
		}
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", s.Evictions)
	}
}

func TestShardedDeleteAndClear(t *testing.T) {
	c := NewSharded[int, int](0, func(k int) uint64 { return uint64(k) })
	for i := range 40 {
		c.Set(i, i)
	}
	if !c.Delete(7) {
		t.Error("expected Delete to find key 7")
	}
	if c.Delete(7) {
		t.Error("expected second Delete to report false")
	}
	if c.Len() != 39 {
		t.Errorf("expected 39 entries, got %d", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestShardedStats(t *testing.T) {
	c := NewSharded[int, int](8, oneShard)
	c.Set(1, 1)
	c.Get(1)
	c.Get(1)
	c.Get(2)

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("expected 2 hits 1 miss, got %d/%d", s.Hits, s.Misses)
	}
	if s.TotalCapacity != 8*ShardCount {
		t.Errorf("expected total capacity %d, got %d", 8*ShardCount, s.TotalCapacity)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("unexpected hit rate %f", s.HitRate)
	}
}

func TestShardedConcurrentAccess(t *testing.T) {
	c := NewSharded[int, int](16, func(k int) uint64 { return uint64(k) })
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				c.Set(g*1000+i, i)
				c.Get(g*1000 + i/2)
			}
		}()
	}
	wg.Wait()
	if c.Len() > 16*ShardCount {
		t.Errorf("expected at most %d entries, got %d", 16*ShardCount, c.Len())
	}
}

var (
	effectA = resource.Hash{Low: 1, High: 10}
	effectB = resource.Hash{Low: 2, High: 20}
)

func TestShaderCacheFormatFilter(t *testing.T) {
	c := NewShaderCache(0)
	c.StoreBinaryShader(effectA, 1, device.BinaryShader{Format: 5, Data: []byte("spv")})

	if _, ok := c.BinaryShader(effectA); ok {
		t.Error("expected miss before formats are known")
	}
	c.DeviceSupportsBinaryShaderFormats([]device.BinaryShaderFormat{5})
	bin, ok := c.BinaryShader(effectA)
	if !ok || string(bin.Data) != "spv" {
		t.Errorf("expected cached binary, got %q (%v)", bin.Data, ok)
	}
}

func TestShaderCacheBrokenEntry(t *testing.T) {
	c := NewShaderCache(0)
	c.DeviceSupportsBinaryShaderFormats([]device.BinaryShaderFormat{1})
	c.StoreBinaryShader(effectA, 1, device.BinaryShader{Format: 1, Data: []byte{1}})

	c.BinaryShaderUploaded(effectA, true)
	if c.Len() != 1 {
		t.Fatal("expected successful upload to keep the entry")
	}

	c.BinaryShaderUploaded(effectA, false)
	if _, ok := c.BinaryShader(effectA); ok {
		t.Error("expected broken entry to be dropped")
	}
	if c.ShouldBeCached(effectA, 1) {
		t.Error("expected broken effect not to be cached again")
	}
}

func TestShaderCacheShouldBeCached(t *testing.T) {
	c := NewShaderCache(0, 7)
	if c.ShouldBeCached(effectA, 1) {
		t.Error("expected scene 1 to be filtered out")
	}
	if !c.ShouldBeCached(effectA, 7) {
		t.Error("expected scene 7 effect to be cached")
	}
	c.StoreBinaryShader(effectA, 7, device.BinaryShader{Format: 1, Data: []byte{1}})
	if c.ShouldBeCached(effectA, 7) {
		t.Error("expected already cached effect to be skipped")
	}
}

func TestShaderCachePersistence(t *testing.T) {
	c := NewShaderCache(0)
	c.StoreBinaryShader(effectA, 1, device.BinaryShader{Format: 1, Data: []byte("a")})
	c.StoreBinaryShader(effectB, 1, device.BinaryShader{Format: 2, Data: []byte("bb")})
	if !c.Dirty() {
		t.Fatal("expected stored entries to mark the cache dirty")
	}

	path := filepath.Join(t.TempDir(), "shaders.bin")
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}
	if c.Dirty() {
		t.Error("expected Save to clear dirty")
	}

	loaded, err := LoadShaderCache(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	loaded.DeviceSupportsBinaryShaderFormats([]device.BinaryShaderFormat{1, 2})
	bin, ok := loaded.BinaryShader(effectB)
	if !ok || bin.Format != 2 || string(bin.Data) != "bb" {
		t.Errorf("unexpected entry %+v (%v)", bin, ok)
	}
	if loaded.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", loaded.Len())
	}
}

func TestShaderCacheMissingFile(t *testing.T) {
	c, err := LoadShaderCache(filepath.Join(t.TempDir(), "none.bin"), 0)
	if err != nil {
		t.Fatalf("expected missing file to yield empty cache, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestShaderCacheCorrupt(t *testing.T) {
	c := NewShaderCache(0)
	_, err := c.ReadFrom(bytes.NewReader([]byte("not a cache")))
	if !errors.Is(err, ErrCorruptShaderCache) {
		t.Errorf("expected ErrCorruptShaderCache, got %v", err)
	}
}
