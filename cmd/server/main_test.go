package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/pkg/config"
)

func TestOpenStorage_Memory(t *testing.T) {
	cfg := &config.Config{StorageDriver: config.StorageMemory}
	store, err := openStorage(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	if store.users == nil || store.messages == nil || store.moderation == nil || store.audit == nil || store.idempotency == nil {
		t.Fatalf("memory driver must provide every port: %+v", store)
	}
	if len(store.readiness) != 0 {
		t.Fatalf("memory driver has nothing to ping")
	}
	store.close(context.Background())
}
