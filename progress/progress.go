/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L2
Logic:       Tagged progress events delivered through a buffered channel,
             adapted from the gateway's buffered analytics-ingestion
             pipeline idiom — producers never block on a slow consumer
             up to the buffer bound, and a full buffer drops the oldest
             pending event rather than stalling the sync.
Root Cause:  The orchestrator must report phase transitions without
             coupling to any particular UI or polling surface.
Suitability: L2 — straightforward buffered-channel plumbing.
──────────────────────────────────────────────────────────────
*/

// Package progress carries sync-phase events from the orchestrator to
// whatever is watching a RunSync/RunSyncAll invocation.
package progress

// Phase is a coarse stage of one credential's sync lifecycle.
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhasePopulate  Phase = "populate"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
	PhasePaused    Phase = "paused"
)

// Event is one progress update.
type Event struct {
	Phase            Phase
	Message          string
	CredentialID     string
	TotalTasks       int
	CompletedTasks   int
	RecordsProcessed int
	CurrentDate      string
	Error            string
}

const defaultBufferSize = 64

// Channel is a bounded producer/consumer pipe for Events. Unlike a bare
// Go channel, Emit never blocks the producer: once the buffer is full,
// the oldest unread event is dropped to make room — a live sync must
// never stall waiting for a slow or absent consumer.
type Channel struct {
	ch chan Event
}

// NewChannel returns a Channel with the default buffer size.
func NewChannel() *Channel {
	return NewChannelSize(defaultBufferSize)
}

// NewChannelSize returns a Channel buffered to size events.
func NewChannelSize(size int) *Channel {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Channel{ch: make(chan Event, size)}
}

// Emit publishes an event, dropping the oldest buffered event if full.
func (c *Channel) Emit(e Event) {
	select {
	case c.ch <- e:
		return
	default:
	}
	select {
	case <-c.ch:
	default:
	}
	select {
	case c.ch <- e:
	default:
	}
}

// Events exposes the receive-only side for consumers.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Close closes the underlying channel. Callers must stop calling Emit
// before Close.
func (c *Channel) Close() {
	close(c.ch)
}
