package memory

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestKV_SetGet(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	if err := kv.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || got != "v" {
		t.Errorf("expected (v, true), got (%q, %v)", got, ok)
	}
}

func TestKV_GetMissing(t *testing.T) {
	kv := NewKV()

	got, ok, err := kv.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok || got != "" {
		t.Errorf("expected miss, got (%q, %v)", got, ok)
	}
}

func TestKV_Expiry(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	if err := kv.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, ok, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected expired key to be a miss")
	}
}

func TestKV_Delete(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	kv.Set(ctx, "k", "v", time.Minute)
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, ok, _ := kv.Get(ctx, "k")
	if ok {
		t.Error("expected deleted key to be a miss")
	}
}

func TestKV_Sets(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	if err := kv.SAdd(ctx, "jobs", "a", "b", "c"); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if err := kv.SRem(ctx, "jobs", "b"); err != nil {
		t.Fatalf("SRem failed: %v", err)
	}

	members, err := kv.SMembers(ctx, "jobs")
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	sort.Strings(members)
	if len(members) != 2 || members[0] != "a" || members[1] != "c" {
		t.Errorf("expected [a c], got %v", members)
	}
}

func TestKV_SMembersMissingSet(t *testing.T) {
	kv := NewKV()

	members, err := kv.SMembers(context.Background(), "nope")
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected empty set, got %v", members)
	}
}
