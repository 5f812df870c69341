package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/storage"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
)

func newTestStore(t *testing.T, kv storage.KV) *PersistentStore {
	t.Helper()
	s, err := Open(context.Background(), kv, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryKV())

	if !s.Get().IsEmpty() {
		t.Fatal("new store should be empty")
	}

	user := &domain.User{ID: "7", Email: "ana@example.com", Name: "Ana", Role: "admin"}
	if err := s.Set(ctx, "t1", user); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got := s.Get()
	if got.Token != "t1" {
		t.Errorf("Token = %q, want t1", got.Token)
	}
	if got.User == nil || got.User.Email != "ana@example.com" {
		t.Errorf("User = %+v", got.User)
	}

	// Mutating the returned copy must not affect the store.
	got.User.Name = "changed"
	if s.Get().User.Name != "Ana" {
		t.Error("Get() returned shared user pointer")
	}
	user.Name = "changed"
	if s.Get().User.Name != "Ana" {
		t.Error("Set() kept caller's user pointer")
	}
}

func TestStore_SetEmptyToken(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	if err := s.Set(context.Background(), "", nil); err == nil {
		t.Error("Set() with empty token should fail")
	}
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	s := newTestStore(t, kv)
	if err := s.Set(ctx, "persisted", &domain.User{ID: "1", Email: "a@b.c"}); err != nil {
		t.Fatal(err)
	}

	reopened := newTestStore(t, kv)
	got := reopened.Get()
	if got.Token != "persisted" || got.User == nil || got.User.ID != "1" {
		t.Errorf("reopened session = %+v", got)
	}
}

func TestStore_CorruptUserDropped(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	kv.Set(ctx, []byte(TokenKey), []byte("t"))
	kv.Set(ctx, []byte(UserKey), []byte("{not json"))

	s := newTestStore(t, kv)
	got := s.Get()
	if got.Token != "t" {
		t.Errorf("Token = %q, want t", got.Token)
	}
	if got.User != nil {
		t.Errorf("User = %+v, want nil", got.User)
	}
	if _, err := kv.Get(ctx, []byte(UserKey)); err != storage.ErrKeyNotFound {
		t.Errorf("corrupt user should be deleted, got %v", err)
	}
}

func TestStore_SetUserKeepsToken(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryKV())
	s.Set(ctx, "t1", nil)

	if err := s.SetUser(ctx, &domain.User{ID: "9"}); err != nil {
		t.Fatal(err)
	}
	got := s.Get()
	if got.Token != "t1" || got.User == nil || got.User.ID != "9" {
		t.Errorf("session = %+v", got)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)
	s.Set(ctx, "t1", &domain.User{ID: "1"})

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if !s.Get().IsEmpty() {
		t.Error("session should be empty after Clear")
	}
	if kv.Len() != 0 {
		t.Errorf("kv should be empty, has %d entries", kv.Len())
	}
}

func TestStore_InvalidateOncePerLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryKV())
	s.Set(ctx, "t1", nil)

	if !s.Invalidate(ctx) {
		t.Fatal("first Invalidate() should return true")
	}
	if s.Invalidate(ctx) {
		t.Error("second Invalidate() should return false")
	}
	if s.Get().HasToken() {
		t.Error("token should be cleared")
	}

	s.Set(ctx, "t2", nil)
	if !s.Invalidate(ctx) {
		t.Error("Invalidate() after a new login should return true")
	}
}

func TestStore_ConcurrentInvalidate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryKV())
	s.Set(ctx, "t1", nil)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Invalidate(ctx) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("Invalidate() returned true %d times, want 1", wins.Load())
	}
}

func TestStore_OnChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryKV())

	var events []EventType
	cancel := s.OnChange(func(ev Event) {
		events = append(events, ev.Type)
	})

	s.Set(ctx, "t1", &domain.User{ID: "1"})
	s.SetUser(ctx, &domain.User{ID: "1", Name: "x"})
	s.Invalidate(ctx)
	s.Invalidate(ctx)
	s.Clear(ctx)

	want := []EventType{EventLogin, EventRefresh, EventInvalidated, EventLogout}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, events[i], want[i])
		}
	}

	cancel()
	s.Set(ctx, "t2", nil)
	if len(events) != len(want) {
		t.Error("listener called after cancel")
	}
}

func TestStore_LoginEventCarriesSession(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())

	var got domain.Session
	s.OnChange(func(ev Event) { got = ev.Session })
	s.Set(context.Background(), "t1", &domain.User{Email: "a@b.c"})

	if got.Token != "t1" || got.User == nil || got.User.Email != "a@b.c" {
		t.Errorf("event session = %+v", got)
	}
}

func TestStore_SealedBackend(t *testing.T) {
	ctx := context.Background()
	inner := storage.NewMemoryKV()
	kv, err := storage.NewSealedKV(ctx, inner, "pass")
	if err != nil {
		t.Fatal(err)
	}

	s := newTestStore(t, kv)
	if err := s.Set(ctx, "sealed-token", &domain.User{ID: "1"}); err != nil {
		t.Fatal(err)
	}

	raw, _ := inner.Get(ctx, []byte(TokenKey))
	if string(raw) == "sealed-token" {
		t.Error("token stored in clear")
	}

	kv2, _ := storage.NewSealedKV(ctx, inner, "pass")
	if got := newTestStore(t, kv2).Get(); got.Token != "sealed-token" {
		t.Errorf("reopened token = %q", got.Token)
	}
}

func TestStore_SealedWithDifferentKey(t *testing.T) {
	ctx := context.Background()
	inner := storage.NewMemoryKV()
	oldKV, err := storage.NewSealedKV(ctx, inner, "old")
	if err != nil {
		t.Fatal(err)
	}
	if err := newTestStore(t, oldKV).Set(ctx, "tok", &domain.User{ID: "1"}); err != nil {
		t.Fatal(err)
	}

	newKV, err := storage.NewSealedKV(ctx, inner, "new")
	if err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t, newKV)
	if got := s.Get(); got.HasToken() || got.User != nil {
		t.Errorf("session after key change = %+v, want empty", got)
	}
	if _, err := inner.Get(ctx, []byte(TokenKey)); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Errorf("stale token still stored: err = %v", err)
	}
	if _, err := inner.Get(ctx, []byte(UserKey)); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Errorf("stale user still stored: err = %v", err)
	}

	// The store is usable again under the new key.
	if err := s.Set(ctx, "tok2", &domain.User{ID: "2"}); err != nil {
		t.Fatalf("Set() after reset error = %v", err)
	}
	if got := newTestStore(t, newKV).Get(); got.Token != "tok2" {
		t.Errorf("reopened token = %q, want tok2", got.Token)
	}
}
