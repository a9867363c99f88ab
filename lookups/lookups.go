// Package lookups bulk-upserts the reference entities a sales page
// carries alongside its line items (apps, packages, bundles, partners,
// countries, discounts, game items). Identity is stable: an existing
// row's name is never overwritten by a later page's value.
package lookups

import (
	"context"
	"fmt"

	"github.com/radialgames/salessync/remoteclient"
	"github.com/radialgames/salessync/store"
)

// Upserter writes the lookup tables, one transaction per page.
type Upserter struct {
	db *store.Store
}

// New returns an Upserter backed by db.
func New(db *store.Store) *Upserter {
	return &Upserter{db: db}
}

// ApplyPage upserts every reference array on page, deduping within the
// page first so a repeated id in the same array is written once.
func (u *Upserter) ApplyPage(ctx context.Context, page *remoteclient.SalesPage) error {
	return u.db.Transact(ctx, func(ctx context.Context, q store.Querier) error {
		if err := upsertRefs(ctx, q, "apps", page.AppInfo); err != nil {
			return err
		}
		if err := upsertRefs(ctx, q, "packages", page.PackageInfo); err != nil {
			return err
		}
		if err := upsertRefs(ctx, q, "bundles", page.BundleInfo); err != nil {
			return err
		}
		if err := upsertRefs(ctx, q, "partners", page.PartnerInfo); err != nil {
			return err
		}
		if err := upsertRefs(ctx, q, "game_items", page.GameItemInfo); err != nil {
			return err
		}
		if err := upsertCountries(ctx, q, page.CountryInfo); err != nil {
			return err
		}
		if err := upsertDiscounts(ctx, q, page.CombinedDiscountInfo); err != nil {
			return err
		}
		return nil
	})
}

func upsertRefs(ctx context.Context, q store.Querier, table string, entries []remoteclient.RefEntry) error {
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		_, err := q.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING`, table),
			e.ID, e.Name)
		if err != nil {
			return fmt.Errorf("lookups: upsert %s %d: %w", table, e.ID, err)
		}
	}
	return nil
}

func upsertCountries(ctx context.Context, q store.Querier, entries []remoteclient.CountryRef) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Code]; ok {
			continue
		}
		seen[e.Code] = struct{}{}
		_, err := q.Exec(ctx, `
			INSERT INTO countries (code, name, region) VALUES ($1, $2, $3)
			ON CONFLICT (code) DO NOTHING`,
			e.Code, e.Name, e.Region)
		if err != nil {
			return fmt.Errorf("lookups: upsert country %s: %w", e.Code, err)
		}
	}
	return nil
}

func upsertDiscounts(ctx context.Context, q store.Querier, entries []remoteclient.DiscountRef) error {
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		_, err := q.Exec(ctx, `
			INSERT INTO discounts (id, name, percentage) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.Name, e.Percentage)
		if err != nil {
			return fmt.Errorf("lookups: upsert discount %d: %w", e.ID, err)
		}
	}
	return nil
}
