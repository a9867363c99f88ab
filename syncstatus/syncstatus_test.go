package syncstatus_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/radialgames/salessync/syncstatus"
)

func TestPutGetInMemoryFallback(t *testing.T) {
	// No REDIS_URL: must fall back to the in-memory path transparently.
	s := syncstatus.New(zerolog.Nop(), "", time.Minute)
	ctx := context.Background()

	snap := syncstatus.Snapshot{SyncID: "abc123", Phase: "discovery", TotalTasks: 10}
	if err := s.Put(ctx, snap); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := s.Get(ctx, "abc123")
	if !ok {
		t.Fatal("expected snapshot to be found")
	}
	if got.Phase != "discovery" || got.TotalTasks != 10 {
		t.Errorf("got %+v, want Phase=discovery TotalTasks=10", got)
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	s := syncstatus.New(zerolog.Nop(), "", time.Minute)
	_, ok := s.Get(context.Background(), "does-not-exist")
	if ok {
		t.Fatal("expected ok=false for a missing sync id")
	}
}

func TestInvalidRedisURLFallsBackGracefully(t *testing.T) {
	s := syncstatus.New(zerolog.Nop(), "not-a-valid-url", time.Minute)
	ctx := context.Background()

	if err := s.Put(ctx, syncstatus.Snapshot{SyncID: "xyz", Phase: "complete"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Get(ctx, "xyz")
	if !ok || got.Phase != "complete" {
		t.Fatalf("expected fallback store to serve the snapshot, got %+v ok=%v", got, ok)
	}
}
