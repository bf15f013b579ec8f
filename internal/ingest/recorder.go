// Package ingest owns the guarded write paths between the raw event feed
// and the relational store. A Recorder consults the dedup caches before
// touching the store and serializes the whole write path with one mutex;
// the store's own transaction semantics cover the single genuinely
// concurrent case, the fort-sighting uniqueness race.
package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pokewatch/pokewatch/internal/cache"
	"github.com/pokewatch/pokewatch/internal/store"
)

type Recorder struct {
	mu         sync.Mutex
	store      store.Store
	log        *slog.Logger
	anomalies  io.Writer
	sightings  *cache.SightingCache
	longspawns *cache.LongSpawnCache
	forts      *cache.FortCache
}

// New builds a Recorder around a store. anomalies receives one line per
// detected double spawn and may be nil to discard them.
func New(st store.Store, anomalies io.Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:      st,
		log:        logger,
		anomalies:  anomalies,
		sightings:  cache.NewSightingCache(),
		longspawns: cache.NewLongSpawnCache(),
		forts:      cache.NewFortCache(),
	}
}

// RecordSighting persists one pokemon observation unless it is a
// duplicate. An encounter id already cached with an expiry off by more
// than the jitter window is a possible double spawn: it is flagged to the
// anomaly log and rerouted to long-spawn storage instead of being
// discarded.
func (r *Recorder) RecordSighting(ev *store.SightingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sightings.Known(ev.EncounterID) {
		if r.sightings.Contains(ev) {
			return nil
		}
		if r.anomalies != nil {
			if _, err := fmt.Fprintf(r.anomalies, "possible double spawn: %s\n", ev.SpawnID); err != nil {
				return fmt.Errorf("failed to append anomaly log: %w", err)
			}
		}
		r.log.Warn("possible double spawn",
			"spawn_id", ev.SpawnID,
			"encounter_id", ev.EncounterID)
		return r.recordLongSpawn(ev, false)
	}

	exists, err := r.store.SightingExists(ev.EncounterID)
	if err != nil {
		return err
	}
	if exists {
		// Cold cache; the store is authoritative.
		return nil
	}

	if err := r.store.InsertSighting(ev); err != nil {
		return err
	}
	r.sightings.Add(ev)
	return nil
}

// RecordLongSpawn persists one long-spawn refinement unless the cache
// already holds it within tolerance.
func (r *Recorder) RecordLongSpawn(ev *store.SightingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordLongSpawn(ev, true)
}

// populate is false on the double-spawn redirect: only direct long-spawn
// ingestion feeds the cache.
func (r *Recorder) recordLongSpawn(ev *store.SightingEvent, populate bool) error {
	if r.longspawns.Contains(ev) {
		return nil
	}
	if err := r.store.InsertLongSpawn(ev); err != nil {
		return err
	}
	if populate {
		r.longspawns.Add(ev)
	}
	return nil
}

// RecordFortSighting persists one fort observation unless the cached
// state already matches exactly. A uniqueness race lost to a concurrent
// writer is logged and swallowed; the cache stays unpopulated so the next
// observation re-checks the store.
func (r *Recorder) RecordFortSighting(ev *store.FortEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.forts.Contains(ev) {
		return nil
	}

	outcome, err := r.store.WriteFortSighting(ev)
	if err != nil {
		return err
	}
	switch outcome {
	case store.FortWritten, store.FortUnchanged:
		r.forts.Add(ev)
	case store.FortConflict:
		r.log.Warn("fort sighting lost uniqueness race",
			"external_id", ev.ExternalID,
			"last_modified", ev.LastModified)
	}
	return nil
}

// EvictExpired sweeps the TTL-bound caches. The caller schedules this;
// the Recorder never runs its own timer.
func (r *Recorder) EvictExpired(now time.Time) (sightings, longspawns int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := now.Unix()
	sightings = r.sightings.EvictExpired(ts)
	longspawns = r.longspawns.EvictExpired(ts)
	return sightings, longspawns
}

// CacheSizes reports current cache entry counts.
func (r *Recorder) CacheSizes() (sightings, longspawns, forts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sightings.Len(), r.longspawns.Len(), r.forts.Len()
}
