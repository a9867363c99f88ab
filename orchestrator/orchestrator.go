/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L4
Logic:       Drives one credential's discovery → fetch pipeline to
             completion and sequences RunSyncAll across credentials as a
             background goroutine, publishing progress snapshots and
             honoring pause/resume/cancel. Structurally mirrors the
             gateway's background-poller Start/Stop/cancel idiom.
Root Cause:  The two phases (discovery, fetch) must commit the
             highwatermark exactly once, only when safe, and every
             public entry point must be independently resumable after a
             crash.
Suitability: L4 — the highwatermark commit rule and cancellation
             semantics are financially and operationally load-bearing.
──────────────────────────────────────────────────────────────
*/

// Package orchestrator wires discovery, fetch, and the secret provider
// into the public sync entry points: RunSync, RunSyncAll, SyncStatus,
// PendingStatus, RetryFailed, Pause, and Resume.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radialgames/salessync/discovery"
	"github.com/radialgames/salessync/fetch"
	"github.com/radialgames/salessync/progress"
	"github.com/radialgames/salessync/secretprovider"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/syncstatus"
	"github.com/radialgames/salessync/taskqueue"
)

// Result is the final outcome of one credential's RunSync.
type Result struct {
	DatesFound        int
	RecordsProcessed  int
	HighwatermarkMoved bool
}

// Orchestrator drives sync runs for any number of credentials.
type Orchestrator struct {
	db        *store.Store
	secrets   *secretprovider.Provider
	queue     *taskqueue.Queue
	discovery *discovery.Phase
	fetch     *fetch.Phase
	status    *syncstatus.Store
	logger    zerolog.Logger

	mu      sync.Mutex
	pauses  map[string]chan struct{} // syncID -> closed to signal "resume"
	paused  map[string]bool
}

// New builds an Orchestrator from its already-constructed collaborators.
func New(db *store.Store, secrets *secretprovider.Provider, queue *taskqueue.Queue, disc *discovery.Phase, ft *fetch.Phase, status *syncstatus.Store, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		db:        db,
		secrets:   secrets,
		queue:     queue,
		discovery: disc,
		fetch:     ft,
		status:    status,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
		pauses:    make(map[string]chan struct{}),
		paused:    make(map[string]bool),
	}
}

// RunSync runs discovery then fetch for a single credential, committing
// the highwatermark only if no task in the batch ended failed.
// checkpoint, if non-nil, is consulted by the fetch phase before
// claiming every batch so a Pause(syncID) suspends at the next batch
// boundary rather than only between credentials; pass nil when the
// caller has no pause/resume concept of its own (e.g. a one-off,
// unpaused run).
func (o *Orchestrator) RunSync(ctx context.Context, credentialID string, emit func(progress.Event), checkpoint func(context.Context) error) (Result, error) {
	cred, err := o.db.GetCredential(ctx, credentialID)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: resolve credential %s: %w", credentialID, err)
	}
	plaintext, err := o.secrets.Decrypt(cred.SecretBlob)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: decrypt credential %s: %w", credentialID, err)
	}

	discRes, err := o.discovery.Run(ctx, credentialID, plaintext, emit)
	if err != nil {
		emit(progress.Event{Phase: progress.PhaseError, CredentialID: credentialID, Error: err.Error()})
		return Result{}, err
	}

	if discRes.DatesFound == 0 {
		// Nothing to fetch; zero tasks trivially satisfy "no failures",
		// so it is safe to record the remote's new cursor now.
		if err := o.db.AdvanceHighwatermark(ctx, credentialID, discRes.NewHighwatermark); err != nil {
			emit(progress.Event{Phase: progress.PhaseError, CredentialID: credentialID, Error: err.Error()})
			return Result{}, err
		}
		emit(progress.Event{Phase: progress.PhaseComplete, CredentialID: credentialID, Message: "no changed dates"})
		return Result{DatesFound: 0, HighwatermarkMoved: true}, nil
	}

	fetchRes, err := o.fetch.Run(ctx, credentialID, plaintext, emit, checkpoint)
	if err != nil {
		reason := "cancelled"
		if ctx.Err() == nil {
			reason = err.Error()
		}
		emit(progress.Event{Phase: progress.PhaseError, CredentialID: credentialID, Error: reason})
		return Result{}, err
	}

	moved := false
	if fetchRes.TasksFailed == 0 {
		if err := o.db.AdvanceHighwatermark(ctx, credentialID, discRes.NewHighwatermark); err != nil {
			emit(progress.Event{Phase: progress.PhaseError, CredentialID: credentialID, Error: err.Error()})
			return Result{}, err
		}
		moved = true
	}

	emit(progress.Event{
		Phase:            progress.PhaseComplete,
		CredentialID:     credentialID,
		TotalTasks:       discRes.DatesFound,
		RecordsProcessed: fetchRes.RecordsProcessed,
		Message:          fmt.Sprintf("%d records processed, %d tasks failed", fetchRes.RecordsProcessed, fetchRes.TasksFailed),
	})
	return Result{
		DatesFound:         discRes.DatesFound,
		RecordsProcessed:   fetchRes.RecordsProcessed,
		HighwatermarkMoved: moved,
	}, nil
}

// RunSyncAll spawns a background goroutine that runs RunSync for each
// credential in order, publishing a shared snapshot under a fresh sync
// id. It returns immediately with that id.
func (o *Orchestrator) RunSyncAll(ctx context.Context, credentialIDs []string) string {
	syncID := uuid.NewString()
	resumeCh := make(chan struct{})
	close(resumeCh) // starts unpaused; Pause replaces this channel
	o.mu.Lock()
	o.pauses[syncID] = resumeCh
	o.paused[syncID] = false
	o.mu.Unlock()

	go o.runAll(ctx, syncID, credentialIDs)
	return syncID
}

func (o *Orchestrator) runAll(ctx context.Context, syncID string, credentialIDs []string) {
	snap := syncstatus.Snapshot{SyncID: syncID, Phase: "discovery", CredentialIDs: credentialIDs}
	o.publish(ctx, snap)

	for i, credID := range credentialIDs {
		if err := o.waitIfPaused(ctx, syncID); err != nil {
			snap.Phase = "error"
			snap.Error = "cancelled"
			o.publish(ctx, snap)
			o.clearPause(syncID)
			return
		}

		snap.CurrentIndex = i
		emit := func(e progress.Event) {
			snap.Phase = string(e.Phase)
			snap.TotalTasks = e.TotalTasks
			snap.CompletedTasks = e.CompletedTasks
			snap.RecordsProcessed += e.RecordsProcessed
			snap.CurrentDate = e.CurrentDate
			if e.Error != "" {
				snap.Error = e.Error
			}
			o.publish(ctx, snap)
		}

		checkpoint := func(ctx context.Context) error { return o.waitIfPaused(ctx, syncID) }
		if _, err := o.RunSync(ctx, credID, emit, checkpoint); err != nil {
			o.logger.Warn().Str("credential_id", credID).Err(err).Msg("RunSyncAll: credential failed, continuing with remaining credentials")
			snap.Error = err.Error()
			o.publish(ctx, snap)
			continue
		}
	}

	snap.Phase = "complete"
	o.publish(ctx, snap)
	o.clearPause(syncID)
}

func (o *Orchestrator) publish(ctx context.Context, snap syncstatus.Snapshot) {
	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := o.status.Put(ctx, snap); err != nil {
		o.logger.Warn().Str("sync_id", snap.SyncID).Err(err).Msg("failed to publish sync status snapshot")
	}
}

// SyncStatus returns the latest published snapshot for syncID.
func (o *Orchestrator) SyncStatus(ctx context.Context, syncID string) (syncstatus.Snapshot, bool) {
	return o.status.Get(ctx, syncID)
}

// PendingStatus reports task counts by status for credentialID.
func (o *Orchestrator) PendingStatus(ctx context.Context, credentialID string) (store.StatusCounts, error) {
	return o.queue.CountsByStatus(ctx, credentialID)
}

// RetryFailed resets every failed task for a credential back to pending.
func (o *Orchestrator) RetryFailed(ctx context.Context, credentialID string) (int, error) {
	return o.queue.ResetFailed(ctx, credentialID)
}

// Pause requests that a running sync suspend at its next batch
// boundary. It does not cancel in-flight HTTP calls.
func (o *Orchestrator) Pause(syncID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.pauses[syncID]; !ok {
		return false
	}
	if o.paused[syncID] {
		return true
	}
	o.pauses[syncID] = make(chan struct{})
	o.paused[syncID] = true
	return true
}

// Resume releases a paused sync to continue claiming batches.
func (o *Orchestrator) Resume(syncID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.pauses[syncID]
	if !ok || !o.paused[syncID] {
		return ok
	}
	close(ch)
	o.paused[syncID] = false
	return true
}

// waitIfPaused blocks the driving goroutine until Resume is called, the
// context is cancelled, or the sync was never paused.
func (o *Orchestrator) waitIfPaused(ctx context.Context, syncID string) error {
	o.mu.Lock()
	ch := o.pauses[syncID]
	o.mu.Unlock()
	if ch == nil {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) clearPause(syncID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pauses, syncID)
	delete(o.paused, syncID)
}
