package cache

import (
	"context"
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v, want miss", ok, err)
	}

	if err := c.Set(ctx, "k", []byte("png bytes"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v, want hit", ok, err)
	}
	if string(data) != "png bytes" {
		t.Errorf("Get = %q, want %q", data, "png bytes")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get after Delete = hit, want miss")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete(missing): %v, want nil", err)
	}
}

func TestFileCacheExpiration(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expired entry returned as hit")
	}
}

func TestNullCacheNeverStores(t *testing.T) {
	c := NewNullCache()
	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("null cache returned a hit")
	}
}

func TestKeyerDeterminism(t *testing.T) {
	k := NewDefaultKeyer()
	type params struct {
		Width int
		How   string
	}
	a := k.ImageKey("taxi.csv", params{Width: 300, How: "log"})
	b := k.ImageKey("taxi.csv", params{Width: 300, How: "log"})
	if a != b {
		t.Errorf("same params gave different keys: %q vs %q", a, b)
	}
	if c := k.ImageKey("taxi.csv", params{Width: 301, How: "log"}); c == a {
		t.Error("changed width did not change the key")
	}
	if g := k.GridKey("taxi.csv", params{Width: 300, How: "log"}); g == a {
		t.Error("grid and image keys collide")
	}
}

func TestScopedKeyerPrefix(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "tenant:42:")
	got := scoped.ImageKey("feed", nil)
	want := "tenant:42:" + inner.ImageKey("feed", nil)
	if got != want {
		t.Errorf("scoped key = %q, want %q", got, want)
	}
}
