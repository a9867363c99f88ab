package progress_test

import (
	"testing"

	"github.com/radialgames/salessync/progress"
)

func TestEmitAndReceive(t *testing.T) {
	c := progress.NewChannelSize(2)
	c.Emit(progress.Event{Phase: progress.PhaseDiscovery, TotalTasks: 5})

	got := <-c.Events()
	if got.Phase != progress.PhaseDiscovery {
		t.Errorf("Phase = %q, want discovery", got.Phase)
	}
	if got.TotalTasks != 5 {
		t.Errorf("TotalTasks = %d, want 5", got.TotalTasks)
	}
}

func TestEmitDropsOldestWhenFull(t *testing.T) {
	c := progress.NewChannelSize(1)
	c.Emit(progress.Event{Phase: progress.PhaseDiscovery, Message: "first"})
	c.Emit(progress.Event{Phase: progress.PhasePopulate, Message: "second"})

	got := <-c.Events()
	if got.Message != "second" {
		t.Errorf("Message = %q, want the newest event to survive a full buffer", got.Message)
	}
}
