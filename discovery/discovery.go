// Package discovery implements the sync pipeline's first phase: ask the
// remote partner API which dates changed since a credential's
// highwatermark, clear any stale rows for those dates, and enqueue a
// fetch task per date.
package discovery

import (
	"context"
	"fmt"

	"github.com/radialgames/salessync/progress"
	"github.com/radialgames/salessync/records"
	"github.com/radialgames/salessync/remoteclient"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/taskqueue"
)

// Phase runs discovery for a single credential.
type Phase struct {
	db      *store.Store
	remote  *remoteclient.Client
	queue   *taskqueue.Queue
	writer  *records.Writer
}

// New returns a discovery Phase.
func New(db *store.Store, remote *remoteclient.Client, queue *taskqueue.Queue, writer *records.Writer) *Phase {
	return &Phase{db: db, remote: remote, queue: queue, writer: writer}
}

// Result is the outcome of one Run.
type Result struct {
	DatesFound       int
	NewHighwatermark uint64
}

// Run executes the discovery phase for credentialID using plaintext key
// material. On success it emits exactly one discovery progress event;
// on error it returns without emitting. It does not persist the new highwatermark — that is the
// orchestrator's responsibility once the fetch phase's outcome is known.
func (p *Phase) Run(ctx context.Context, credentialID, plaintext string, emit func(progress.Event)) (Result, error) {
	state, err := p.db.GetSyncState(ctx, credentialID)
	if err != nil {
		return Result{}, fmt.Errorf("discovery: load sync_state for %s: %w", credentialID, err)
	}

	changed, err := p.remote.ChangedDates(ctx, plaintext, state.Highwatermark)
	if err != nil {
		return Result{}, fmt.Errorf("discovery: ChangedDates for %s: %w", credentialID, err)
	}

	if len(changed.Dates) == 0 {
		emit(progress.Event{
			Phase:        progress.PhaseDiscovery,
			CredentialID: credentialID,
			TotalTasks:   0,
			Message:      "no changed dates",
		})
		return Result{DatesFound: 0, NewHighwatermark: changed.NewHighwatermark}, nil
	}

	if err := p.db.RecordChangedDatesQuery(ctx, &store.ChangedDatesQuery{
		CredentialID:     credentialID,
		HighwatermarkIn:  state.Highwatermark,
		HighwatermarkOut: changed.NewHighwatermark,
		DatesFound:       len(changed.Dates),
	}); err != nil {
		return Result{}, fmt.Errorf("discovery: record audit row for %s: %w", credentialID, err)
	}

	for _, date := range changed.Dates {
		if err := p.writer.DeleteForDate(ctx, nil, credentialID, date); err != nil {
			return Result{}, fmt.Errorf("discovery: clear stale rows for %s/%s: %w", credentialID, date, err)
		}
	}

	if _, err := p.queue.Enqueue(ctx, credentialID, changed.Dates); err != nil {
		return Result{}, fmt.Errorf("discovery: enqueue tasks for %s: %w", credentialID, err)
	}

	emit(progress.Event{
		Phase:        progress.PhaseDiscovery,
		CredentialID: credentialID,
		TotalTasks:   len(changed.Dates),
		Message:      fmt.Sprintf("discovered %d date(s)", len(changed.Dates)),
	})
	return Result{DatesFound: len(changed.Dates), NewHighwatermark: changed.NewHighwatermark}, nil
}
