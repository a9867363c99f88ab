/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L3
Logic:       TTL-backed snapshot store for RunSyncAll progress. Prefers
             Redis (shared across API-server replicas) and degrades to
             an in-memory map with a janitor goroutine when Redis is
             unset or unreachable — the same "continue without Redis"
             posture the gateway takes at startup.
Root Cause:  A sync can run for minutes; polling clients need a stable
             place to read status that survives past the goroutine's
             own lifetime for a grace period.
Suitability: L3 — the fallback path must never be allowed to silently
             diverge from the Redis path's observable behavior.
──────────────────────────────────────────────────────────────
*/

// Package syncstatus stores time-limited snapshots of a running or
// recently-finished sync, keyed by an opaque sync id.
package syncstatus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultTTL = 5 * time.Minute

// Store holds Snapshot values behind a TTL, backed by Redis when
// available and falling back to an in-memory map otherwise.
type Store struct {
	logger zerolog.Logger
	ttl    time.Duration
	redis  *redis.Client

	mu   sync.Mutex
	mem  map[string]memEntry
}

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

// Snapshot is the wire representation of a sync's current progress.
type Snapshot struct {
	SyncID           string   `json:"syncId"`
	Phase            string   `json:"phase"`
	CredentialIDs    []string `json:"credentialIds"`
	CurrentIndex     int      `json:"currentIndex"`
	TotalTasks       int      `json:"totalTasks"`
	CompletedTasks   int      `json:"completedTasks"`
	RecordsProcessed int      `json:"recordsProcessed"`
	CurrentDate      string   `json:"currentDate,omitempty"`
	Paused           bool     `json:"paused"`
	Error            string   `json:"error,omitempty"`
	UpdatedAt        string   `json:"updatedAt"`
}

// New builds a Store. redisURL may be empty, in which case (or on a
// failed ping) the in-memory fallback is used and a warning is logged —
// mirroring the gateway's "redis init failed — continuing without
// Redis" startup posture rather than failing closed.
func New(logger zerolog.Logger, redisURL string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &Store{logger: logger, ttl: ttl, mem: make(map[string]memEntry)}

	if redisURL == "" {
		logger.Warn().Msg("syncstatus: REDIS_URL not set — using in-memory snapshot store")
		go s.janitor()
		return s
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("syncstatus: invalid REDIS_URL — continuing without Redis")
		go s.janitor()
		return s
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("syncstatus: redis ping failed — continuing without Redis")
		go s.janitor()
		return s
	}

	s.redis = client
	return s
}

// Put writes a snapshot with the store's configured TTL.
func (s *Store) Put(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, redisKey(snap.SyncID), data, s.ttl).Err(); err != nil {
			s.logger.Warn().Err(err).Str("sync_id", snap.SyncID).Msg("syncstatus: redis write failed, falling back to memory for this entry")
			s.putMem(snap.SyncID, data)
		}
		return nil
	}
	s.putMem(snap.SyncID, data)
	return nil
}

func (s *Store) putMem(syncID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[syncID] = memEntry{data: data, expiresAt: time.Now().Add(s.ttl)}
}

// Get loads a snapshot, returning (snapshot, true) if present and not expired.
func (s *Store) Get(ctx context.Context, syncID string) (Snapshot, bool) {
	if s.redis != nil {
		data, err := s.redis.Get(ctx, redisKey(syncID)).Bytes()
		if err == nil {
			var snap Snapshot
			if jsonErr := json.Unmarshal(data, &snap); jsonErr == nil {
				return snap, true
			}
		}
	}

	s.mu.Lock()
	entry, ok := s.mem[syncID]
	s.mu.Unlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(entry.data, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// janitor periodically sweeps expired in-memory entries. Only needed
// when the Redis path is unavailable — Redis expires keys on its own.
func (s *Store) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		s.sweep()
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, entry := range s.mem {
		if now.After(entry.expiresAt) {
			delete(s.mem, id)
		}
	}
}

func redisKey(syncID string) string {
	return "salessync:status:" + syncID
}
