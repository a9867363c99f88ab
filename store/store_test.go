package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/radialgames/salessync/store"
)

// Store tests require a live Postgres instance and are skipped by default.
// To run them set RUN_SALESSYNC_INTEGRATION=1 and point DATABASE_URL at a
// running Postgres instance.
func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	if os.Getenv("RUN_SALESSYNC_INTEGRATION") != "1" {
		t.Skip("integration tests skipped; set RUN_SALESSYNC_INTEGRATION=1 to run")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Fatal("DATABASE_URL must be set for integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := store.Open(ctx, store.Config{DatabaseURL: dsn, MaxConns: 5, AcquireTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestCreateAndGetCredential(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cred, err := s.CreateCredential(ctx, "steam-main", "a1b2", "v1:deadbeef:cafebabe:01")
	if err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	t.Cleanup(func() { _ = s.DeleteCredential(context.Background(), cred.ID) })

	got, err := s.GetCredential(ctx, cred.ID)
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if got.Label != "steam-main" {
		t.Errorf("Label = %q, want steam-main", got.Label)
	}

	state, err := s.GetSyncState(ctx, cred.ID)
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}
	if state.Highwatermark != 0 {
		t.Errorf("Highwatermark = %d, want 0 on a freshly created credential", state.Highwatermark)
	}
}

func TestAdvanceHighwatermarkNeverMovesBackwards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cred, err := s.CreateCredential(ctx, "steam-hwm", "b2c3", "v1:feedface:baadf00d:02")
	if err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	t.Cleanup(func() { _ = s.DeleteCredential(context.Background(), cred.ID) })

	if err := s.AdvanceHighwatermark(ctx, cred.ID, 100); err != nil {
		t.Fatalf("AdvanceHighwatermark: %v", err)
	}
	if err := s.AdvanceHighwatermark(ctx, cred.ID, 50); err != nil {
		t.Fatalf("AdvanceHighwatermark: %v", err)
	}

	state, err := s.GetSyncState(ctx, cred.ID)
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}
	if state.Highwatermark != 100 {
		t.Errorf("Highwatermark = %d, want 100 (lower value must not regress it)", state.Highwatermark)
	}
}

func TestGetCredentialNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetCredential(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err == nil {
		t.Fatal("expected error for missing credential")
	}
}
