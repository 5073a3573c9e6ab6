package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", time.Minute)
	v, ok := c.Get("k")
	if !ok || v.(string) != "v" {
		t.Fatalf("expected hit with value v, got %v %v", v, ok)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", 42, 0)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("zero ttl should not expire")
	}
}

func TestTTLCacheBytes(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("b", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("set bytes: %v", err)
	}
	b, ok, err := c.GetBytes("b")
	if err != nil || !ok || string(b) != "payload" {
		t.Fatalf("expected payload, got %q %v %v", b, ok, err)
	}
}

func TestEstimateKeyDeterministic(t *testing.T) {
	a := EstimateKey([]byte(`{"location":"Nairobi"}`))
	b := EstimateKey([]byte(`{"location":"Nairobi"}`))
	if a != b {
		t.Fatalf("same payload must hash to the same key")
	}
	if a == EstimateKey([]byte(`{"location":"Nakuru"}`)) {
		t.Fatalf("different payloads must not collide on key")
	}
}
