package access

import (
	"testing"
	"time"
)

func TestCacheLazyExpiry(t *testing.T) {
	clock := &fakeClock{at: time.Unix(1700000000, 0)}
	cache := newResultCache(clock.Now)

	cache.put("a@x:dashboard:page", CheckResult{HasAccess: true, Reason: "ok"}, time.Minute)

	if _, ok := cache.get("a@x:dashboard:page"); !ok {
		t.Fatalf("expected hit before expiry")
	}

	clock.Advance(59 * time.Second)
	if _, ok := cache.get("a@x:dashboard:page"); !ok {
		t.Fatalf("expected hit just before expiry")
	}

	clock.Advance(2 * time.Second)
	if _, ok := cache.get("a@x:dashboard:page"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if cache.size() != 0 {
		t.Fatalf("expired entry should be removed on read, size=%d", cache.size())
	}
}

func TestCachePutIsLastWriteWins(t *testing.T) {
	clock := &fakeClock{at: time.Unix(1700000000, 0)}
	cache := newResultCache(clock.Now)

	cache.put("k", CheckResult{HasAccess: false, Reason: "first"}, time.Minute)
	cache.put("k", CheckResult{HasAccess: true, Reason: "second"}, time.Minute)

	result, ok := cache.get("k")
	if !ok || !result.HasAccess || result.Reason != "second" {
		t.Fatalf("expected last write to win, got %+v ok=%v", result, ok)
	}
}

func TestCacheClearPrefix(t *testing.T) {
	clock := &fakeClock{at: time.Unix(1700000000, 0)}
	cache := newResultCache(clock.Now)

	cache.put("ana@example.com:dashboard:page", CheckResult{HasAccess: true}, time.Minute)
	cache.put("ana@example.com:reports:page", CheckResult{HasAccess: true}, time.Minute)
	cache.put("bob@example.com:dashboard:page", CheckResult{HasAccess: true}, time.Minute)

	cache.clearPrefix("ana@example.com:")

	if _, ok := cache.get("ana@example.com:dashboard:page"); ok {
		t.Fatalf("ana's entries should be gone")
	}
	if _, ok := cache.get("bob@example.com:dashboard:page"); !ok {
		t.Fatalf("bob's entry should remain")
	}
	if cache.size() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.size())
	}
}
