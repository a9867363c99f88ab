package orchestrator_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radialgames/salessync/discovery"
	"github.com/radialgames/salessync/fetch"
	"github.com/radialgames/salessync/lookups"
	"github.com/radialgames/salessync/orchestrator"
	"github.com/radialgames/salessync/progress"
	"github.com/radialgames/salessync/records"
	"github.com/radialgames/salessync/remoteclient"
	"github.com/radialgames/salessync/secretprovider"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/syncstatus"
	"github.com/radialgames/salessync/taskqueue"
)

const onePageBody = `{"response":{
	"results":[{
		"line_item_type":"sale",
		"avg_sale_price_usd":"9.99",
		"gross_sales_usd":"9.99",
		"gross_returns_usd":"0.00",
		"net_sales_usd":"9.99",
		"net_tax_usd":"0.00",
		"gross_units_sold":1,
		"gross_units_returned":0,
		"gross_units_activated":1,
		"net_units_sold":1
	}],
	"max_id":"0",
	"app_info":[],"package_info":[],"bundle_info":[],"partner_info":[],
	"country_info":[],"game_item_info":[],"combined_discount_info":[]
}}`

func openTestFixture(t *testing.T) *store.Store {
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
	return s
}

func TestRunSyncEndToEndAdvancesHighwatermark(t *testing.T) {
	db := openTestFixture(t)
	ctx := context.Background()

	secrets, err := secretprovider.New("")
	if err != nil {
		t.Fatalf("secretprovider.New: %v", err)
	}
	blob, err := secrets.Encrypt("partner-key-123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	cred, err := db.CreateCredential(ctx, "runsync-fixture-"+uuid.NewString(), "abcd1234", blob)
	if err != nil {
		t.Fatalf("create credential: %v", err)
	}

	callCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		callCount++
		if r.URL.Path == "/GetChangedDatesForPartner/v1" {
			fmt.Fprint(w, `{"response":{"dates":["2026-03-01"],"result_highwatermark":7}}`)
			return
		}
		fmt.Fprint(w, onePageBody)
	}))
	defer srv.Close()

	remote := remoteclient.New(remoteclient.Config{BaseURL: srv.URL})
	queue := taskqueue.New(db)
	upserter := lookups.New(db)
	writer := records.New(db, 100)
	disc := discovery.New(db, remote, queue, writer)
	ft := fetch.New(remote, queue, upserter, writer, 10, 4)
	status := syncstatus.New(zerolog.Nop(), "", time.Minute)
	orch := orchestrator.New(db, secrets, queue, disc, ft, status, zerolog.Nop())

	res, err := orch.RunSync(ctx, cred.ID, func(progress.Event) {}, nil)
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if !res.HighwatermarkMoved {
		t.Fatal("expected highwatermark to advance when no tasks failed")
	}
	if res.DatesFound != 1 || res.RecordsProcessed != 1 {
		t.Fatalf("expected 1 date and 1 record processed, got %+v", res)
	}

	state, err := db.GetSyncState(ctx, cred.ID)
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}
	if state.Highwatermark != 7 {
		t.Fatalf("expected highwatermark 7, got %d", state.Highwatermark)
	}

	if callCount < 2 {
		t.Fatalf("expected both discovery and fetch endpoints to be hit, got %d calls", callCount)
	}
}
