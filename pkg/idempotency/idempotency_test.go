package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "sgtm:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMark_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMark(context.Background(), "orders", "evt-1")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if already {
		t.Fatal("expected first delivery to be new")
	}
	if store.lastKey != "sgtm:idempotency:evt:orders:evt-1" {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %s", store.lastTTL)
	}
}

func TestCheckAndMark_Duplicate(t *testing.T) {
	manager, _ := NewManager(&fakeStore{setNXResult: false}, time.Hour)
	already, err := manager.CheckAndMark(context.Background(), "orders", "evt-1")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if !already {
		t.Fatal("expected duplicate to be reported")
	}
}

func TestCheckAndMark_StoreError(t *testing.T) {
	manager, _ := NewManager(&fakeStore{setNXError: errors.New("redis down")}, time.Hour)
	if _, err := manager.CheckAndMark(context.Background(), "orders", "evt-1"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestForgetAndValidation(t *testing.T) {
	store := &fakeStore{}
	manager, _ := NewManager(store, time.Hour)
	if err := manager.Forget(context.Background(), "orders", "evt-9"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if store.lastDeleted != "sgtm:idempotency:evt:orders:evt-9" {
		t.Fatalf("unexpected deleted key: %q", store.lastDeleted)
	}
	if _, err := manager.CheckAndMark(context.Background(), "", "evt"); err == nil {
		t.Fatal("expected consumer validation error")
	}
	if _, err := manager.CheckAndMark(context.Background(), "orders", " "); err == nil {
		t.Fatal("expected event id validation error")
	}
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected nil store error")
	}
	if _, err := NewManager(store, -time.Second); err == nil {
		t.Fatal("expected negative ttl error")
	}
}
