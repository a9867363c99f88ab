package remoteclient_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/radialgames/salessync/remoteclient"
)

func TestChangedDatesCoercesStringHighwatermark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"dates":["2026-01-01","2026-01-02"],"result_highwatermark":"42"}}`)
	}))
	defer srv.Close()

	c := remoteclient.New(remoteclient.Config{BaseURL: srv.URL, AttemptTimeout: time.Second})
	res, err := c.ChangedDates(context.Background(), "plaintext-key", 10)
	if err != nil {
		t.Fatalf("ChangedDates: %v", err)
	}
	if res.NewHighwatermark != 42 {
		t.Errorf("NewHighwatermark = %d, want 42", res.NewHighwatermark)
	}
	if len(res.Dates) != 2 {
		t.Errorf("Dates = %v, want 2 entries", res.Dates)
	}
}

func TestChangedDatesCoercesNumericHighwatermark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"dates":[],"result_highwatermark":99}}`)
	}))
	defer srv.Close()

	c := remoteclient.New(remoteclient.Config{BaseURL: srv.URL, AttemptTimeout: time.Second})
	res, err := c.ChangedDates(context.Background(), "key", 0)
	if err != nil {
		t.Fatalf("ChangedDates: %v", err)
	}
	if res.NewHighwatermark != 99 {
		t.Errorf("NewHighwatermark = %d, want 99", res.NewHighwatermark)
	}
}

func TestDetailedSalesPageParsesMoneyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{
			"results":[{"line_item_type":"sale","base_price":"19.99","sale_price":"9.99",
				"avg_sale_price_usd":"9.99","gross_sales_usd":"9.99","gross_returns_usd":"0",
				"net_sales_usd":"9.99","net_tax_usd":"0.80","gross_units_sold":1,"net_units_sold":1}],
			"max_id":"5"}}`)
	}))
	defer srv.Close()

	c := remoteclient.New(remoteclient.Config{BaseURL: srv.URL, AttemptTimeout: time.Second})
	page, err := c.DetailedSalesPage(context.Background(), "key", "2026-01-01", 0)
	if err != nil {
		t.Fatalf("DetailedSalesPage: %v", err)
	}
	if len(page.Results) != 1 {
		t.Fatalf("Results = %d, want 1", len(page.Results))
	}
	item := page.Results[0]
	if item.GrossSalesUSDCents != 999 {
		t.Errorf("GrossSalesUSDCents = %d, want 999", item.GrossSalesUSDCents)
	}
	if item.BasePriceCents == nil || *item.BasePriceCents != 1999 {
		t.Errorf("BasePriceCents = %v, want 1999", item.BasePriceCents)
	}
	if page.MaxID != "5" {
		t.Errorf("MaxID = %q, want 5", page.MaxID)
	}
}

func TestDetailedSalesPageTreatsUnparseablePriceAsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"results":[{"line_item_type":"sale","base_price":"n/a","gross_sales_usd":"bogus"}],"max_id":"1"}}`)
	}))
	defer srv.Close()

	c := remoteclient.New(remoteclient.Config{BaseURL: srv.URL, AttemptTimeout: time.Second})
	page, err := c.DetailedSalesPage(context.Background(), "key", "2026-01-01", 0)
	if err != nil {
		t.Fatalf("DetailedSalesPage: %v", err)
	}
	if page.Results[0].BasePriceCents != nil {
		t.Errorf("BasePriceCents = %v, want nil for unparseable price", page.Results[0].BasePriceCents)
	}
	if page.Results[0].GrossSalesUSDCents != 0 {
		t.Errorf("GrossSalesUSDCents = %d, want 0 for unparseable revenue", page.Results[0].GrossSalesUSDCents)
	}
}

func TestPaginationDoneStopsWhenCursorDoesNotAdvance(t *testing.T) {
	page := &remoteclient.SalesPage{Results: []remoteclient.SaleItem{{}}, MaxID: "5"}
	if remoteclient.PaginationDone(page, 5) != true {
		t.Error("expected pagination to stop when max_id does not exceed previous cursor")
	}
	if remoteclient.PaginationDone(page, 4) != false {
		t.Error("expected pagination to continue when max_id exceeds previous cursor")
	}
}

func TestPaginationDoneStopsOnEmptyPage(t *testing.T) {
	page := &remoteclient.SalesPage{MaxID: "100"}
	if !remoteclient.PaginationDone(page, 0) {
		t.Error("expected pagination to stop on an empty results page regardless of max_id")
	}
}

func TestGetRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"response":{"dates":["2026-01-01"],"result_highwatermark":1}}`)
	}))
	defer srv.Close()

	c := remoteclient.New(remoteclient.Config{BaseURL: srv.URL, AttemptTimeout: time.Second, MaxRetries: 3})
	res, err := c.ChangedDates(context.Background(), "key", 0)
	if err != nil {
		t.Fatalf("ChangedDates: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2 (one failure, one retry)", calls)
	}
	if len(res.Dates) != 1 {
		t.Errorf("Dates = %v, want 1 entry", res.Dates)
	}
}

func TestGetSurfacesRemoteErrorOnNonRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := remoteclient.New(remoteclient.Config{BaseURL: srv.URL, AttemptTimeout: time.Second, MaxRetries: 3})
	_, err := c.ChangedDates(context.Background(), "key", 0)
	var remoteErr *remoteclient.RemoteError
	if err == nil {
		t.Fatal("expected an error for 401")
	}
	if !errorsAs(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %T: %v", err, err)
	}
	if remoteErr.Retryable {
		t.Error("401 should not be classified retryable")
	}
}

func TestGetCancelledByCallerContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := remoteclient.New(remoteclient.Config{BaseURL: srv.URL, AttemptTimeout: time.Second})
	_, err := c.ChangedDates(ctx, "key", 0)
	if err != remoteclient.ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func errorsAs(err error, target **remoteclient.RemoteError) bool {
	re, ok := err.(*remoteclient.RemoteError)
	if !ok {
		return false
	}
	*target = re
	return true
}
