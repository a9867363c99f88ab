package discovery_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/radialgames/salessync/discovery"
	"github.com/radialgames/salessync/progress"
	"github.com/radialgames/salessync/records"
	"github.com/radialgames/salessync/remoteclient"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/taskqueue"
)

func openTestFixture(t *testing.T) (*store.Store, string) {
	if os.Getenv("RUN_SALESSYNC_INTEGRATION") != "1" {
		t.Skip("integration test skipped; set RUN_SALESSYNC_INTEGRATION=1 and DATABASE_URL to run")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Fatal("DATABASE_URL must be set for integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := store.Open(ctx, store.Config{DatabaseURL: dsn, MaxConns: 4, AcquireTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(s.Close)

	cred, err := s.CreateCredential(ctx, "discovery-fixture-"+uuid.NewString(), "abcd1234", "blob")
	if err != nil {
		t.Fatalf("create credential: %v", err)
	}
	return s, cred.ID
}

func TestRunWithZeroChangedDatesSkipsEnqueueAndAudit(t *testing.T) {
	db, credentialID := openTestFixture(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response":{"dates":[],"result_highwatermark":42}}`)
	}))
	defer srv.Close()

	remote := remoteclient.New(remoteclient.Config{BaseURL: srv.URL})
	queue := taskqueue.New(db)
	writer := records.New(db, 100)
	phase := discovery.New(db, remote, queue, writer)

	var events []progress.Event
	res, err := phase.Run(ctx, credentialID, "plaintext-key", func(e progress.Event) { events = append(events, e) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.DatesFound != 0 || res.NewHighwatermark != 42 {
		t.Fatalf("expected {0, 42}, got %+v", res)
	}
	if len(events) != 1 || events[0].Phase != progress.PhaseDiscovery {
		t.Fatalf("expected exactly one discovery event, got %+v", events)
	}

	counts, err := queue.CountsByStatus(ctx, credentialID)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Pending != 0 {
		t.Fatalf("expected no tasks enqueued for a zero-dates discovery, got %d pending", counts.Pending)
	}
}

func TestRunEnqueuesOneTaskPerChangedDate(t *testing.T) {
	db, credentialID := openTestFixture(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response":{"dates":["2026-01-01","2026-01-02"],"result_highwatermark":99}}`)
	}))
	defer srv.Close()

	remote := remoteclient.New(remoteclient.Config{BaseURL: srv.URL})
	queue := taskqueue.New(db)
	writer := records.New(db, 100)
	phase := discovery.New(db, remote, queue, writer)

	res, err := phase.Run(ctx, credentialID, "plaintext-key", func(progress.Event) {})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.DatesFound != 2 || res.NewHighwatermark != 99 {
		t.Fatalf("expected {2, 99}, got %+v", res)
	}

	counts, err := queue.CountsByStatus(ctx, credentialID)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Pending != 2 {
		t.Fatalf("expected 2 pending tasks, got %d", counts.Pending)
	}

	last, err := db.LastChangedDatesQuery(ctx, credentialID)
	if err != nil {
		t.Fatalf("LastChangedDatesQuery: %v", err)
	}
	if last.DatesFound != 2 {
		t.Fatalf("expected audit row to record 2 dates found, got %d", last.DatesFound)
	}
}
