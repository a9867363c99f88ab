package store

import (
	"context"
	"fmt"
)

// GetSyncState loads the highwatermark row for a credential. Every
// credential has exactly one sync_state row, seeded at creation.
func (s *Store) GetSyncState(ctx context.Context, credentialID string) (*SyncState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT credential_id, highwatermark, last_sync_at
		FROM sync_state WHERE credential_id = $1`, credentialID)

	var st SyncState
	if err := row.Scan(&st.CredentialID, &st.Highwatermark, &st.LastSyncAt); err != nil {
		return nil, fmt.Errorf("store: get sync_state %s: %w", credentialID, classify(err))
	}
	return &st, nil
}

// AdvanceHighwatermark raises a credential's highwatermark and stamps
// last_sync_at, but only if newMark is greater than the current value —
// a concurrent or retried discovery call can never move it backwards.
func (s *Store) AdvanceHighwatermark(ctx context.Context, credentialID string, newMark uint64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_state
		SET highwatermark = $2, last_sync_at = now()
		WHERE credential_id = $1 AND highwatermark < $2`,
		credentialID, newMark)
	if err != nil {
		return fmt.Errorf("store: advance highwatermark %s: %w", credentialID, classify(err))
	}
	_ = tag // no-op advance (newMark <= current) is not an error
	return nil
}

// RecordChangedDatesQuery appends an audit row for one discovery call.
func (s *Store) RecordChangedDatesQuery(ctx context.Context, q *ChangedDatesQuery) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO changed_dates_queries
			(credential_id, highwatermark_in, highwatermark_out, dates_found)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		q.CredentialID, q.HighwatermarkIn, q.HighwatermarkOut, q.DatesFound)

	if err := row.Scan(&q.ID, &q.CreatedAt); err != nil {
		return fmt.Errorf("store: record changed_dates_query: %w", classify(err))
	}
	return nil
}

// LastChangedDatesQuery returns the most recent audit row for a
// credential, or ErrNotFound if discovery has never run.
func (s *Store) LastChangedDatesQuery(ctx context.Context, credentialID string) (*ChangedDatesQuery, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, credential_id, highwatermark_in, highwatermark_out, dates_found, created_at
		FROM changed_dates_queries
		WHERE credential_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, credentialID)

	var q ChangedDatesQuery
	if err := row.Scan(&q.ID, &q.CredentialID, &q.HighwatermarkIn, &q.HighwatermarkOut, &q.DatesFound, &q.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: last changed_dates_query %s: %w", credentialID, classify(err))
	}
	return &q, nil
}
