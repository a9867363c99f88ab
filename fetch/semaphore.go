package fetch

import "time"

// semaphore bounds the number of in-flight date workers for one
// credential's fetch phase, adapted from the gateway's per-org
// concurrency-control middleware down to a single global limit (the
// fetch phase processes one credential at a time, so there is no
// per-key dimension to keep).
type semaphore struct {
	slots chan struct{}
}

func newSemaphore(limit int) *semaphore {
	if limit <= 0 {
		limit = 8
	}
	return &semaphore{slots: make(chan struct{}, limit)}
}

// acquire blocks until a slot is free or timeout elapses, returning
// whether a slot was acquired.
func (s *semaphore) acquire(timeout time.Duration) bool {
	select {
	case s.slots <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *semaphore) release() {
	select {
	case <-s.slots:
	default:
	}
}
