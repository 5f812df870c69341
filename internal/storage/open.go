package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Open builds the KV store described by cfg, sealing it when an
// encryption key is configured.
func Open(ctx context.Context, cfg KVConfig, logger *slog.Logger) (KV, error) {
	var kv KV
	switch cfg.Backend {
	case BackendMemory:
		kv = NewMemoryKV()
	case BackendBadger, "":
		engine, err := NewBadgerEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Metrics != nil {
			engine.RegisterMetrics(cfg.Metrics)
		}
		kv = engine
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}

	if cfg.EncryptionKey == "" {
		return kv, nil
	}

	sealed, err := NewSealedKV(ctx, kv, cfg.EncryptionKey)
	if err != nil {
		kv.Close()
		return nil, err
	}
	return sealed, nil
}
