/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L3
Logic:       Fetch-phase driver: claims bounded batches of pending
             tasks, runs up to CONCURRENT_TASKS date workers at once via
             a bounded semaphore, and checkpoints cancellation at batch
             and page boundaries.
Root Cause:  Sprint task — bulk ingest must not serialize one date at a
             time (too slow) nor run fully unbounded (remote rate limits,
             connection pool exhaustion).
Suitability: L3 — concurrency correctness matters but the shape mirrors
             an existing, reviewed pattern in the gateway's middleware.
──────────────────────────────────────────────────────────────
*/

// Package fetch implements the sync pipeline's second phase: claim
// pending tasks and populate sales data for each date with bounded
// worker concurrency.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/radialgames/salessync/lookups"
	"github.com/radialgames/salessync/progress"
	"github.com/radialgames/salessync/records"
	"github.com/radialgames/salessync/remoteclient"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/taskqueue"
)

// Phase drives the claim -> worker-pool -> complete/fail loop.
type Phase struct {
	remote          *remoteclient.Client
	queue           *taskqueue.Queue
	upserter        *lookups.Upserter
	writer          *records.Writer
	taskBatchSize   int
	concurrentTasks int
	acquireTimeout  time.Duration
}

// New returns a fetch Phase. taskBatchSize and concurrentTasks fall
// back to their documented defaults (10, 8) when non-positive.
func New(remote *remoteclient.Client, queue *taskqueue.Queue, upserter *lookups.Upserter, writer *records.Writer, taskBatchSize, concurrentTasks int) *Phase {
	if taskBatchSize <= 0 {
		taskBatchSize = 10
	}
	if concurrentTasks <= 0 {
		concurrentTasks = 8
	}
	return &Phase{
		remote:          remote,
		queue:           queue,
		upserter:        upserter,
		writer:          writer,
		taskBatchSize:   taskBatchSize,
		concurrentTasks: concurrentTasks,
		acquireTimeout:  30 * time.Second,
	}
}

// Result summarizes one credential's fetch phase.
type Result struct {
	RecordsProcessed int
	TasksFailed      int
}

// Run claims and processes batches until the queue is drained for
// credentialID or ctx is cancelled. A cancelled context stops issuing
// new claims; in-flight workers finish their current page and return.
// Before each claim, checkpoint is consulted (if non-nil) so a paused
// sync suspends at the batch boundary instead of only between
// credentials — it blocks until resumed or returns ctx's error if the
// sync is cancelled while paused.
func (p *Phase) Run(ctx context.Context, credentialID, plaintext string, emit func(progress.Event), checkpoint func(context.Context) error) (Result, error) {
	var total Result

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if checkpoint != nil {
			if err := checkpoint(ctx); err != nil {
				return total, err
			}
		}

		batch, err := p.queue.Claim(ctx, credentialID, p.taskBatchSize)
		if err != nil {
			return total, fmt.Errorf("fetch: claim batch for %s: %w", credentialID, err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		res := p.runBatch(ctx, credentialID, plaintext, batch, emit)
		total.RecordsProcessed += res.RecordsProcessed
		total.TasksFailed += res.TasksFailed
	}
}

func (p *Phase) runBatch(ctx context.Context, credentialID, plaintext string, batch []store.SyncTask, emit func(progress.Event)) Result {
	sem := newSemaphore(p.concurrentTasks)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result Result
	)

	for _, task := range batch {
		task := task
		if !sem.acquire(p.acquireTimeout) {
			// Could not get a slot in time; the task stays in_progress.
			// Claim only selects pending tasks, so it is picked up again
			// only after a stale sweep or a manual reset.
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.release()

			n, err := p.runTask(ctx, credentialID, plaintext, task, emit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					// Cancelled: the task stays in_progress, as claimed,
					// and is not counted as failed.
					return
				}
				result.TasksFailed++
				if failErr := p.queue.Fail(context.Background(), task.ID, err); failErr != nil {
					emit(progress.Event{Phase: progress.PhaseError, CredentialID: credentialID, CurrentDate: task.Date, Error: failErr.Error()})
				}
				emit(progress.Event{Phase: progress.PhasePopulate, CredentialID: credentialID, CurrentDate: task.Date, Error: err.Error()})
				return
			}
			result.RecordsProcessed += n
			if compErr := p.queue.Complete(context.Background(), task.ID); compErr != nil {
				emit(progress.Event{Phase: progress.PhaseError, CredentialID: credentialID, CurrentDate: task.Date, Error: compErr.Error()})
			}
			emit(progress.Event{Phase: progress.PhasePopulate, CredentialID: credentialID, CurrentDate: task.Date, RecordsProcessed: n})
		}()
	}
	wg.Wait()
	return result
}

// runTask paginates one date to completion and returns the total record
// count written. The date's delete and every page's insert run inside a
// single transaction (via writer.WithTx) so a mid-pagination failure
// never leaves a partial rewrite committed — the date is left exactly
// as it was before this task ran, ready for a clean retry.
func (p *Phase) runTask(ctx context.Context, credentialID, plaintext string, task store.SyncTask, emit func(progress.Event)) (int, error) {
	var total int
	err := p.writer.WithTx(ctx, func(ctx context.Context, q store.Querier) error {
		if err := p.writer.DeleteForDate(ctx, q, credentialID, task.Date); err != nil {
			return err
		}

		var cursor uint64
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			page, err := p.remote.DetailedSalesPage(ctx, plaintext, task.Date, cursor)
			if err != nil {
				return err
			}

			if err := p.upserter.ApplyPage(ctx, page); err != nil {
				return err
			}
			n, err := p.writer.WriteAll(ctx, q, credentialID, task.Date, page.Results)
			if err != nil {
				return err
			}
			total += n

			if remoteclient.PaginationDone(page, cursor) {
				return nil
			}
			next, _ := parseMaxID(page.MaxID)
			cursor = next
		}
	})
	return total, err
}

func parseMaxID(s string) (uint64, bool) {
	var n uint64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err == nil
}
