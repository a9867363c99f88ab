/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L4
Logic:       Persistent task queue for the fetch phase: enqueue one row
             per (credential, date), hand out batches via SELECT ... FOR
             UPDATE SKIP LOCKED so concurrent workers never double-claim
             a row, and record terminal completion/failure.
Root Cause:  Crash-safe resumability requires task state to live in the
             database, not in process memory — a restart must pick up
             exactly where the previous run left off.
Suitability: L4 — claim semantics guard against duplicate remote fetches
             and lost work under process restarts.
──────────────────────────────────────────────────────────────
*/

// Package taskqueue manages the sync_tasks table: enqueueing discovered
// dates, claiming bounded batches for workers, and recording terminal
// outcomes.
package taskqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/radialgames/salessync/store"
)

// Queue drives sync_tasks through pending -> in_progress -> {completed,failed}.
type Queue struct {
	db *store.Store
}

// New returns a Queue backed by db.
func New(db *store.Store) *Queue {
	return &Queue{db: db}
}

// Enqueue upserts one pending task per date for credentialID. A date
// that reappears in the changed-dates feed is re-armed for fetching
// even if its prior task already reached completed or failed — a
// fresh remote snapshot must always be re-fetched, so the row is reset
// to pending with its timestamps and error cleared. Enqueue is
// idempotent in the sense that re-running discovery never duplicates
// a row, not in the sense that a resurfaced date is left alone.
func (q *Queue) Enqueue(ctx context.Context, credentialID string, dates []string) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	upserted := 0
	err := q.db.Transact(ctx, func(ctx context.Context, tx store.Querier) error {
		for _, date := range dates {
			tag, err := tx.Exec(ctx, `
				INSERT INTO sync_tasks (credential_id, date, status)
				VALUES ($1, $2, 'pending')
				ON CONFLICT (credential_id, date) DO UPDATE
				SET status = 'pending', error = NULL, started_at = NULL, completed_at = NULL`,
				credentialID, date)
			if err != nil {
				return fmt.Errorf("taskqueue: enqueue %s/%s: %w", credentialID, date, err)
			}
			upserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return upserted, nil
}

// DeletePending removes all pending tasks for a credential that were
// queued by a prior, now-superseded discovery call.
func (q *Queue) DeletePending(ctx context.Context, credentialID string) error {
	err := q.db.Exec(ctx, `
		DELETE FROM sync_tasks WHERE credential_id = $1 AND status = 'pending'`,
		credentialID)
	if err != nil {
		return fmt.Errorf("taskqueue: delete pending for %s: %w", credentialID, err)
	}
	return nil
}

// Claim atomically reserves up to batchSize pending tasks for a
// credential, marking them in_progress and stamping started_at. Uses
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers partition the
// queue without blocking on each other's row locks.
func (q *Queue) Claim(ctx context.Context, credentialID string, batchSize int) ([]store.SyncTask, error) {
	var claimed []store.SyncTask

	err := q.db.Transact(ctx, func(ctx context.Context, tx store.Querier) error {
		rows, err := tx.Query(ctx, `
			SELECT id, credential_id, date, status, created_at
			FROM sync_tasks
			WHERE credential_id = $1 AND status = 'pending'
			ORDER BY date ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED`,
			credentialID, batchSize)
		if err != nil {
			return fmt.Errorf("taskqueue: select claimable: %w", err)
		}

		var ids []int64
		for rows.Next() {
			var t store.SyncTask
			if err := rows.Scan(&t.ID, &t.CredentialID, &t.Date, &t.Status, &t.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("taskqueue: scan claimable: %w", err)
			}
			claimed = append(claimed, t)
			ids = append(ids, t.ID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("taskqueue: iterate claimable: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx, `
			UPDATE sync_tasks SET status = 'in_progress', started_at = $2
			WHERE id = ANY($1)`,
			ids, now)
		if err != nil {
			return fmt.Errorf("taskqueue: mark in_progress: %w", err)
		}
		for i := range claimed {
			claimed[i].Status = store.TaskInProgress
			claimed[i].StartedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks a task completed.
func (q *Queue) Complete(ctx context.Context, taskID int64) error {
	err := q.db.Exec(ctx, `
		UPDATE sync_tasks SET status = 'completed', completed_at = now(), error = NULL
		WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("taskqueue: complete task %d: %w", taskID, err)
	}
	return nil
}

// Fail marks a task failed and records the error message. Failed tasks
// are eligible for manual retry via ResetFailed.
func (q *Queue) Fail(ctx context.Context, taskID int64, cause error) error {
	msg := cause.Error()
	err := q.db.Exec(ctx, `
		UPDATE sync_tasks SET status = 'failed', completed_at = now(), error = $2
		WHERE id = $1`, taskID, msg)
	if err != nil {
		return fmt.Errorf("taskqueue: fail task %d: %w", taskID, err)
	}
	return nil
}

// ResetFailed transitions every failed task for a credential back to
// pending, clearing its error, so the next fetch pass retries it.
func (q *Queue) ResetFailed(ctx context.Context, credentialID string) (int, error) {
	var n int
	err := q.db.Transact(ctx, func(ctx context.Context, tx store.Querier) error {
		tag, err := tx.Exec(ctx, `
			UPDATE sync_tasks
			SET status = 'pending', error = NULL, started_at = NULL, completed_at = NULL
			WHERE credential_id = $1 AND status = 'failed'`, credentialID)
		if err != nil {
			return err
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("taskqueue: reset failed for %s: %w", credentialID, err)
	}
	return n, nil
}

// CountsByStatus tallies tasks for a credential by status, used for
// progress reporting and the "is this sync done" check.
func (q *Queue) CountsByStatus(ctx context.Context, credentialID string) (store.StatusCounts, error) {
	rows, err := q.db.Pool().Query(ctx, `
		SELECT status, count(*) FROM sync_tasks
		WHERE credential_id = $1 GROUP BY status`, credentialID)
	if err != nil {
		return store.StatusCounts{}, fmt.Errorf("taskqueue: counts for %s: %w", credentialID, err)
	}
	defer rows.Close()

	var counts store.StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return store.StatusCounts{}, fmt.Errorf("taskqueue: scan counts: %w", err)
		}
		switch store.TaskStatus(status) {
		case store.TaskPending:
			counts.Pending = n
		case store.TaskInProgress:
			counts.InProgress = n
		case store.TaskCompleted:
			counts.Completed = n
		case store.TaskFailed:
			counts.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return store.StatusCounts{}, fmt.Errorf("taskqueue: iterate counts: %w", err)
	}
	return counts, nil
}

// CountsByStatusAll tallies tasks for every credential, grouped by
// credential id, for the all-credentials task summary route.
func (q *Queue) CountsByStatusAll(ctx context.Context) (map[string]store.StatusCounts, error) {
	rows, err := q.db.Pool().Query(ctx, `
		SELECT credential_id, status, count(*) FROM sync_tasks
		GROUP BY credential_id, status`)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: counts for all credentials: %w", err)
	}
	defer rows.Close()

	out := make(map[string]store.StatusCounts)
	for rows.Next() {
		var credentialID, status string
		var n int
		if err := rows.Scan(&credentialID, &status, &n); err != nil {
			return nil, fmt.Errorf("taskqueue: scan counts: %w", err)
		}
		counts := out[credentialID]
		switch store.TaskStatus(status) {
		case store.TaskPending:
			counts.Pending = n
		case store.TaskInProgress:
			counts.InProgress = n
		case store.TaskCompleted:
			counts.Completed = n
		case store.TaskFailed:
			counts.Failed = n
		}
		out[credentialID] = counts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskqueue: iterate counts: %w", err)
	}
	return out, nil
}

// ListRecentFailed returns up to limit failed tasks across every
// credential, most recently completed first.
func (q *Queue) ListRecentFailed(ctx context.Context, limit int) ([]store.SyncTask, error) {
	rows, err := q.db.Pool().Query(ctx, `
		SELECT id, credential_id, date, status, error, created_at, started_at, completed_at
		FROM sync_tasks
		WHERE status = 'failed'
		ORDER BY completed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: list recent failed: %w", err)
	}
	defer rows.Close()

	var out []store.SyncTask
	for rows.Next() {
		var t store.SyncTask
		if err := rows.Scan(&t.ID, &t.CredentialID, &t.Date, &t.Status, &t.Error, &t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("taskqueue: scan failed task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskqueue: iterate recent failed: %w", err)
	}
	return out, nil
}

// ListFailed returns every failed task for a credential, most recent first.
func (q *Queue) ListFailed(ctx context.Context, credentialID string) ([]store.SyncTask, error) {
	rows, err := q.db.Pool().Query(ctx, `
		SELECT id, credential_id, date, status, error, created_at, started_at, completed_at
		FROM sync_tasks
		WHERE credential_id = $1 AND status = 'failed'
		ORDER BY completed_at DESC`, credentialID)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: list failed for %s: %w", credentialID, err)
	}
	defer rows.Close()

	var out []store.SyncTask
	for rows.Next() {
		var t store.SyncTask
		if err := rows.Scan(&t.ID, &t.CredentialID, &t.Date, &t.Status, &t.Error, &t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("taskqueue: scan failed task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskqueue: iterate failed: %w", err)
	}
	return out, nil
}

// SweepStale resets in_progress tasks older than maxAge back to pending.
// Disabled by default (see config.StaleSweepEnabled); intended as a
// manually-enabled recovery path for workers that died without marking
// their claimed tasks failed.
func (q *Queue) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	var n int
	err := q.db.Transact(ctx, func(ctx context.Context, tx store.Querier) error {
		tag, err := tx.Exec(ctx, `
			UPDATE sync_tasks
			SET status = 'pending', started_at = NULL
			WHERE status = 'in_progress' AND started_at < now() - $1::interval`,
			fmt.Sprintf("%d seconds", int(maxAge.Seconds())))
		if err != nil {
			return err
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("taskqueue: sweep stale: %w", err)
	}
	return n, nil
}
