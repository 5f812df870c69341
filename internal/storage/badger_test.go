package storage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestBadger(t *testing.T, dir string) *BadgerEngine {
	t.Helper()
	cfg := DefaultKVConfig(dir)
	cfg.Badger.GCInterval = "1h" // Disable auto GC for tests

	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

func TestBadgerEngine_BasicOperations(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := engine.Set(ctx, []byte("token"), []byte("abc")); err != nil {
			t.Fatal(err)
		}

		got, err := engine.Get(ctx, []byte("token"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "abc" {
			t.Errorf("expected abc, got %s", got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := engine.Get(ctx, []byte("non-existent"))
		if err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := []byte("user")
		if err := engine.Set(ctx, key, []byte(`{"id":"1"}`)); err != nil {
			t.Fatal(err)
		}
		if err := engine.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}

		_, err := engine.Get(ctx, key)
		if err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
		}
	})

	t.Run("Delete missing key", func(t *testing.T) {
		if err := engine.Delete(ctx, []byte("never-set")); err != nil {
			t.Errorf("Delete of missing key should not fail, got %v", err)
		}
	})
}

func TestBadgerEngine_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	engine := newTestBadger(t, dir)
	if err := engine.Set(ctx, []byte("token"), []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := newTestBadger(t, dir)
	defer reopened.Close()

	got, err := reopened.Get(ctx, []byte("token"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "persisted" {
		t.Errorf("expected persisted, got %s", got)
	}
}

func TestBadgerEngine_Scan(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	ctx := context.Background()

	testData := map[string]string{
		"history:1": "list products",
		"history:2": "get orders 7",
		"history:3": "whoami",
		"token":     "abc",
	}
	for k, v := range testData {
		if err := engine.Set(ctx, []byte(k), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("Scan with prefix", func(t *testing.T) {
		var results []string
		err := engine.Scan(ctx, []byte("history:"), func(key, value []byte) bool {
			results = append(results, string(value))
			return true
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 3 {
			t.Errorf("expected 3 results, got %d", len(results))
		}
	})

	t.Run("Scan with early stop", func(t *testing.T) {
		count := 0
		err := engine.Scan(ctx, []byte("history:"), func(key, value []byte) bool {
			count++
			return count < 2
		})
		if err != nil {
			t.Fatal(err)
		}
		if count != 2 {
			t.Errorf("expected 2 iterations, got %d", count)
		}
	})
}

func TestBadgerEngine_GC(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	if _, err := engine.GC(context.Background()); err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if engine.lastGCTime.Load() == 0 {
		t.Error("lastGCTime should be recorded")
	}
}

func TestBadgerEngine_CloseTwice(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}
}

func TestBadgerEngine_RegisterMetrics(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	reg := prometheus.NewRegistry()
	engine.RegisterMetrics(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"salesdesk_session_store_lsm_size_bytes",
		"salesdesk_session_store_value_log_size_bytes",
		"salesdesk_session_store_gc_runs_total",
	} {
		if !names[want] {
			t.Errorf("missing metric %s", want)
		}
	}
}

func TestNewBadgerEngine_RequiresDir(t *testing.T) {
	if _, err := NewBadgerEngine(KVConfig{}, nil); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestOpen_BadgerWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultKVConfig(t.TempDir())
	cfg.Badger.GCInterval = "1h"
	cfg.Metrics = reg

	kv, err := Open(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer kv.Close()

	if _, ok := kv.(*BadgerEngine); !ok {
		t.Fatalf("Open() = %T, want *BadgerEngine", kv)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("expected badger gauges to be registered")
	}
}
