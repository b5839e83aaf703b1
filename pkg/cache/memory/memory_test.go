package memory

import (
	"context"
	"testing"
	"time"
)

func TestEviction(t *testing.T) {
	ctx := context.Background()
	c := New(2, 0)
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Error("Oldest entry should have been evicted")
	}
	if v, ok, _ := c.Get(ctx, "c"); !ok || string(v) != "c" {
		t.Errorf("Expected c, got %q %v", v, ok)
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c := New(4, 20*time.Millisecond)
	if err := c.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Entry should have expired")
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	c := New(4, 0)
	_ = c.Set(ctx, "k", []byte("v"))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Error("Close should purge entries")
	}
}
