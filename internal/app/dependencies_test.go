package app

import (
	"context"
	"io"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "app-test")
}

func TestBuildDependenciesMemory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := buildDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("build memory dependencies: %v", err)
	}
	defer func() { _ = deps.Close() }()

	if deps.store == nil || deps.catalog == nil || deps.staff == nil {
		t.Fatal("store wiring is incomplete")
	}
	if deps.timeline == nil || deps.outboxRepo == nil || deps.idempotency == nil {
		t.Fatal("repository wiring is incomplete")
	}
	if deps.pinger != nil {
		t.Error("memory mode must not expose a pinger")
	}
}

func TestBuildDependenciesPostgresRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage = StoragePostgres
	cfg.PostgresDSN = ""

	_, err := buildDependencies(context.Background(), cfg, testLogger())
	if err == nil {
		t.Fatal("expected error for missing DSN")
	}
	if !strings.Contains(err.Error(), "POS_POSTGRES_DSN") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildDependenciesUnsupportedStorage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage = "redis"

	_, err := buildDependencies(context.Background(), cfg, testLogger())
	if err == nil {
		t.Fatal("expected error for unsupported storage")
	}
}
