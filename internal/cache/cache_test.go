package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reclaim-app/reclaim/internal/model"
)

func TestKey(t *testing.T) {
	a := Key("text-embed", "text-embedding-3-small", "black wallet")
	b := Key("text-embed", "text-embedding-3-small", "black wallet")
	c := Key("text-embed", "text-embedding-3-small", "blue wallet")

	if a != b {
		t.Error("Key is not deterministic")
	}
	if a == c {
		t.Error("different inputs produced the same key")
	}
	if !strings.HasPrefix(a, "reclaim:v1:text-embed:") {
		t.Errorf("unexpected key prefix: %s", a)
	}
	if Key("ns", "ab", "c") == Key("ns", "a", "bc") {
		t.Error("part boundaries are not preserved")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute, 0)
	defer func() { _ = c.Close() }()

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss")
	}
	_ = c.Set("k", []byte("v"), 0)
	if v, ok := c.Get("k"); !ok || string(v) != "v" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
	_ = c.Set("short", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected expired entry to be gone")
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected deleted entry to be gone")
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("image-embed", "abc")

	if err := c.Set(key, []byte("[0.1,0.2]"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, ok := c.Get(key); !ok || string(v) != "[0.1,0.2]" {
		t.Errorf("Get() = %q, %v", v, ok)
	}

	if err := c.Set("expired", []byte("x"), -time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok := c.Get("expired"); ok {
		t.Error("expected expired entry to be a miss")
	}

	if err := c.Delete(key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestLayeredCachePromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	disk := NewDiskCache(dir, time.Hour)
	_ = disk.Set("k", []byte("from-disk"), 0)

	c := NewLayeredCache(NewMemoryCache(time.Minute, time.Minute, 0), NewDiskCache(dir, time.Hour))
	if v, ok := c.Get("k"); !ok || string(v) != "from-disk" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	if v, ok := c.memory.Get("k"); !ok || string(v) != "from-disk" {
		t.Error("disk hit was not promoted to memory")
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after Clear")
	}
}

func TestMemoryCacheBoundAndStats(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute, 2)

	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)
	_ = c.Set("c", []byte("3"), 0)
	if _, ok := c.Get("c"); ok {
		t.Error("expected new key to be dropped once the cache is full")
	}
	_ = c.Set("a", []byte("updated"), 0)
	v, ok := c.Get("a")
	if !ok || string(v) != "updated" {
		t.Errorf("existing key should still update, got %q, %v", v, ok)
	}

	v[0] = 'X'
	if again, _ := c.Get("a"); string(again) != "updated" {
		t.Error("Get must return a copy")
	}

	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 || st.Items != 2 {
		t.Errorf("Stats() = %+v", st)
	}
	_ = c.Clear()
	if st := c.Stats(); st.Hits != 0 || st.Items != 0 {
		t.Errorf("Stats() after Clear = %+v", st)
	}
}

func TestDiskCacheShards(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("image-embed", "xyz")
	if err := c.Set(key, []byte("[1]"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	want := filepath.Join(dir, key[len(key)-2:])
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected shard dir %s: %v", want, err)
	}
}

func TestNew(t *testing.T) {
	c, err := New(model.CacheConfig{Enabled: false})
	if err != nil || c != nil {
		t.Errorf("disabled cache: got %v, %v", c, err)
	}

	c, err = New(model.CacheConfig{Enabled: true, Backend: "memory", TTL: time.Minute})
	if err != nil {
		t.Fatalf("New(memory) error = %v", err)
	}
	if _, ok := c.(*MemoryCache); !ok {
		t.Errorf("expected *MemoryCache, got %T", c)
	}

	if _, err := New(model.CacheConfig{Enabled: true, Backend: "layered"}); err == nil {
		t.Error("expected error for layered cache without dir")
	}
	if _, err := New(model.CacheConfig{Enabled: true, Backend: "memcached"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
