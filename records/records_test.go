package records_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/radialgames/salessync/records"
	"github.com/radialgames/salessync/remoteclient"
	"github.com/radialgames/salessync/store"
)

func openTestRecords(t *testing.T) (*records.Writer, *store.Store, string) {
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
	db, err := store.Open(ctx, store.Config{DatabaseURL: dsn, MaxConns: 5, AcquireTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	t.Cleanup(db.Close)

	cred, err := db.CreateCredential(ctx, "records-test", "ffff", "v1:00:00:00")
	if err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	t.Cleanup(func() { _ = db.DeleteCredential(context.Background(), cred.ID) })

	return records.New(db, 2), db, cred.ID
}

func TestWriteAllFlushesInBatches(t *testing.T) {
	w, db, credID := openTestRecords(t)
	ctx := context.Background()
	date := "2026-04-01"

	items := []remoteclient.SaleItem{
		{LineItemType: "sale", GrossSalesUSDCents: 100, NetUnitsSold: 1},
		{LineItemType: "sale", GrossSalesUSDCents: 200, NetUnitsSold: 2},
		{LineItemType: "sale", GrossSalesUSDCents: 300, NetUnitsSold: 3},
	}

	n, err := w.WriteAll(ctx, nil, credID, date, items)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("WriteAll wrote %d, want 3", n)
	}

	var count int
	row := db.Pool().QueryRow(ctx, `SELECT count(*) FROM sales_records WHERE credential_id = $1 AND date = $2`, credID, date)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestDeleteForDateRemovesPriorAttempt(t *testing.T) {
	w, db, credID := openTestRecords(t)
	ctx := context.Background()
	date := "2026-04-02"

	if _, err := w.WriteAll(ctx, nil, credID, date, []remoteclient.SaleItem{{LineItemType: "sale"}}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := w.DeleteForDate(ctx, nil, credID, date); err != nil {
		t.Fatalf("DeleteForDate: %v", err)
	}

	var count int
	row := db.Pool().QueryRow(ctx, `SELECT count(*) FROM sales_records WHERE credential_id = $1 AND date = $2`, credID, date)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after DeleteForDate", count)
	}
}
