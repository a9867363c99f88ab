// Package records maps remote sale items onto sales_records rows and
// flushes them in batches. Idempotency on re-fetch comes from deleting a
// (credential, date)'s rows before its task is re-enqueued (see the
// discovery package), not from per-row upsert — surrogate ids are
// store-assigned and cannot be used as an upsert conflict target.
package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/radialgames/salessync/remoteclient"
	"github.com/radialgames/salessync/store"
)

const defaultBatchSize = 1000

// Writer buffers mapped rows and flushes them in bulk multi-row inserts.
type Writer struct {
	db        *store.Store
	batchSize int
}

// New returns a Writer that flushes every batchSize rows (0 uses the
// default of 1000, matching BATCH_SIZE's documented default).
func New(db *store.Store, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Writer{db: db, batchSize: batchSize}
}

// WithTx runs fn inside a single transaction, so a caller that needs
// the date's delete and its page inserts to land atomically (fetch's
// per-date rewrite) can pass the transaction's Querier to DeleteForDate
// and WriteAll instead of letting them run as separate autocommits.
func (w *Writer) WithTx(ctx context.Context, fn func(ctx context.Context, q store.Querier) error) error {
	return w.db.Transact(ctx, fn)
}

// DeleteForDate removes every sales_records row for (credentialID, date),
// called immediately before a task for that date is (re-)enqueued or
// re-fetched so a partially-completed prior attempt leaves no stale rows
// behind. Pass nil to run outside an explicit transaction, or the
// Querier from WithTx to include the delete in a caller's transaction.
func (w *Writer) DeleteForDate(ctx context.Context, q store.Querier, credentialID, date string) error {
	if q == nil {
		q = w.db.Pool()
	}
	_, err := q.Exec(ctx, `
		DELETE FROM sales_records WHERE credential_id = $1 AND date = $2`,
		credentialID, date)
	if err != nil {
		return fmt.Errorf("records: delete for %s/%s: %w", credentialID, date, err)
	}
	return nil
}

// WriteAll maps every item to a row and flushes in batches of
// w.batchSize. Pass nil to run outside an explicit transaction, or the
// Querier from WithTx to include the writes in a caller's transaction.
func (w *Writer) WriteAll(ctx context.Context, q store.Querier, credentialID, date string, items []remoteclient.SaleItem) (int, error) {
	if q == nil {
		q = w.db.Pool()
	}
	written := 0
	for start := 0; start < len(items); start += w.batchSize {
		end := start + w.batchSize
		if end > len(items) {
			end = len(items)
		}
		n, err := w.flush(ctx, q, credentialID, date, items[start:end])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// flush inserts one batch as a single multi-row INSERT.
func (w *Writer) flush(ctx context.Context, q store.Querier, credentialID, date string, batch []remoteclient.SaleItem) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	const cols = 24
	values := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*cols)

	for i, item := range batch {
		base := i * cols
		placeholders := make([]string, cols)
		for j := 0; j < cols; j++ {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ",")+")")

		args = append(args,
			credentialID, date, item.LineItemType,
			item.AppID, item.PackageID, item.BundleID, item.PartnerID, item.GameItemID,
			item.CountryCode, item.Platform, item.Currency,
			item.BasePriceCents, item.SalePriceCents,
			item.AvgSalePriceUSDCents, item.GrossSalesUSDCents, item.GrossReturnsUSDCents,
			item.NetSalesUSDCents, item.NetTaxUSDCents,
			item.GrossUnitsSold, item.GrossUnitsReturned, item.GrossUnitsActivated, item.NetUnitsSold,
			item.DiscountID, item.DiscountPercentage,
		)
	}
	stmt := fmt.Sprintf(`
		INSERT INTO sales_records (
			credential_id, date, line_item_type,
			app_id, package_id, bundle_id, partner_id, game_item_id,
			country_code, platform, currency,
			base_price_cents, sale_price_cents,
			avg_sale_price_usd_cents, gross_sales_usd_cents, gross_returns_usd_cents,
			net_sales_usd_cents, net_tax_usd_cents,
			gross_units_sold, gross_units_returned, gross_units_activated, net_units_sold,
			discount_id, discount_percentage
		) VALUES %s`, strings.Join(values, ","))

	if _, err := q.Exec(ctx, stmt, args...); err != nil {
		return 0, fmt.Errorf("records: flush batch of %d for %s/%s: %w", len(batch), credentialID, date, err)
	}
	return len(batch), nil
}
