package cache

import (
	"testing"
	"time"

	"github.com/use-agent/scrapeworker/models"
)

func TestCache_SetThenGetWithinMaxAge(t *testing.T) {
	c := New(10)
	key := Key("https://example.com", models.EngineChromeCDP)
	c.Set(key, &models.SuccessResponse{Content: "hello"})

	got, ok := c.Get(key, 60000)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Content != "hello" {
		t.Errorf("got %q, want %q", got.Content, "hello")
	}
}

func TestCache_Get_MissWhenMaxAgeNonPositive(t *testing.T) {
	c := New(10)
	key := Key("https://example.com", models.EngineChromeCDP)
	c.Set(key, &models.SuccessResponse{Content: "hello"})

	if _, ok := c.Get(key, 0); ok {
		t.Error("expected miss when maxAgeMs <= 0")
	}
}

func TestCache_Get_MissWhenEntryUnknown(t *testing.T) {
	c := New(10)
	if _, ok := c.Get("nonexistent", 60000); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_Get_MissWhenEntryTooOld(t *testing.T) {
	c := New(10)
	key := "aged-key"
	c.store[key] = &entry{
		response:  &models.SuccessResponse{Content: "stale"},
		createdAt: time.Now().Add(-time.Hour),
	}

	if _, ok := c.Get(key, 1000); ok {
		t.Error("expected miss for an entry older than maxAgeMs")
	}
}

func TestCache_Set_EvictsAtCapacity(t *testing.T) {
	c := New(1)
	c.Set("a", &models.SuccessResponse{Content: "a"})
	c.Set("b", &models.SuccessResponse{Content: "b"})

	if len(c.store) != 1 {
		t.Fatalf("store size = %d, want 1", len(c.store))
	}
}

func TestKey_DiffersByEngine(t *testing.T) {
	k1 := Key("https://example.com", models.EngineChromeCDP)
	k2 := Key("https://example.com", models.EngineTLSClient)
	if k1 == k2 {
		t.Error("expected different keys for different engines")
	}
}
