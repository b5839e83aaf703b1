package cache

import (
	"context"
	"testing"
	"time"

	"github.com/menta2k/cocomask/pkg/cache/memory"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Options{Backend: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(None); !ok {
		t.Errorf("Expected None backend, got %T", c)
	}

	c, err = New(ctx, Options{Backend: "memory", Size: 4, TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*memory.Cache); !ok {
		t.Errorf("Expected memory backend, got %T", c)
	}

	if _, err := New(ctx, Options{Backend: "memcached"}); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestNoneNeverHits(t *testing.T) {
	ctx := context.Background()
	var c Cache = None{}
	if err := c.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Errorf("None should always miss, got ok=%v err=%v", ok, err)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := memory.New(8, 0)

	var got payload
	if ok, err := GetJSON(ctx, c, "missing", &got); ok || err != nil {
		t.Errorf("Expected a clean miss, got ok=%v err=%v", ok, err)
	}

	want := payload{Name: "square", Count: 3}
	if err := SetJSON(ctx, c, "k", want); err != nil {
		t.Fatal(err)
	}
	ok, err := GetJSON(ctx, c, "k", &got)
	if err != nil || !ok {
		t.Fatalf("Expected a hit, got ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	if err := c.Set(ctx, "bad", []byte("{")); err != nil {
		t.Fatal(err)
	}
	if _, err := GetJSON(ctx, c, "bad", &got); err == nil {
		t.Error("Expected decode error for corrupt entry")
	}
}
