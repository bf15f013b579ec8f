// Package cache holds the in-memory dedup maps that sit in front of the
// relational store. The caches are a lossy, time-bounded approximation of
// recent writes: a miss always falls through to a store-level check, so
// losing entries (restart, eviction) costs queries, not correctness.
//
// None of the caches lock internally. The owning Recorder serializes
// access and drives eviction from its periodic sweep; the caches never
// schedule their own cleanup.
package cache

import (
	"github.com/pokewatch/pokewatch/internal/store"
)

const (
	// Two observations of one encounter count as the same sighting when
	// their claimed expiries agree within this jitter window (seconds).
	// A larger mismatch signals a second spawn reusing the encounter id.
	sightingToleranceSeconds = 5
	// Sighting entries are dropped this long after their expiry.
	sightingTTLSeconds = 2700

	// Long-spawn duplicates must agree on time-till-hidden within this
	// window (milliseconds).
	longSpawnToleranceMs = 5
	longSpawnTTLSeconds  = 3600
)

type sightingEntry struct {
	expireTimestamp  int64
	lastModifiedMs   int64
	timeTillHiddenMs int64
}

// SightingCache remembers recently written sightings by encounter id.
type SightingCache struct {
	entries map[uint64]sightingEntry
}

func NewSightingCache() *SightingCache {
	return &SightingCache{entries: make(map[uint64]sightingEntry)}
}

func (c *SightingCache) Add(ev *store.SightingEvent) {
	c.entries[ev.EncounterID] = sightingEntry{
		expireTimestamp:  ev.ExpireTimestamp,
		lastModifiedMs:   ev.LastModifiedMs,
		timeTillHiddenMs: ev.TimeTillHiddenMs,
	}
}

// Known reports bare key presence, regardless of expiry agreement.
func (c *SightingCache) Known(encounterID uint64) bool {
	_, ok := c.entries[encounterID]
	return ok
}

// Contains reports whether the cache holds this encounter with an expiry
// strictly within the jitter window of the incoming event's.
func (c *SightingCache) Contains(ev *store.SightingEvent) bool {
	entry, ok := c.entries[ev.EncounterID]
	if !ok {
		return false
	}
	return entry.expireTimestamp > ev.ExpireTimestamp-sightingToleranceSeconds &&
		entry.expireTimestamp < ev.ExpireTimestamp+sightingToleranceSeconds
}

// EvictExpired drops entries whose expiry is older than the TTL relative
// to now (unix seconds) and returns how many were removed.
func (c *SightingCache) EvictExpired(now int64) int {
	removed := 0
	for id, entry := range c.entries {
		if entry.expireTimestamp < now-sightingTTLSeconds {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

func (c *SightingCache) Len() int {
	return len(c.entries)
}

type longSpawnEntry struct {
	expireTimestamp  int64
	timeTillHiddenMs int64
}

// LongSpawnCache remembers recently written long spawns by encounter id.
// The longspawns table has no uniqueness constraint, so this cache is the
// only dedup layer on that path.
type LongSpawnCache struct {
	entries map[uint64]longSpawnEntry
}

func NewLongSpawnCache() *LongSpawnCache {
	return &LongSpawnCache{entries: make(map[uint64]longSpawnEntry)}
}

func (c *LongSpawnCache) Add(ev *store.SightingEvent) {
	c.entries[ev.EncounterID] = longSpawnEntry{
		expireTimestamp:  ev.ExpireTimestamp,
		timeTillHiddenMs: ev.TimeTillHiddenMs,
	}
}

func (c *LongSpawnCache) Contains(ev *store.SightingEvent) bool {
	entry, ok := c.entries[ev.EncounterID]
	if !ok {
		return false
	}
	return entry.timeTillHiddenMs > ev.TimeTillHiddenMs-longSpawnToleranceMs &&
		entry.timeTillHiddenMs < ev.TimeTillHiddenMs+longSpawnToleranceMs
}

func (c *LongSpawnCache) EvictExpired(now int64) int {
	removed := 0
	for id, entry := range c.entries {
		if entry.expireTimestamp < now-longSpawnTTLSeconds {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

func (c *LongSpawnCache) Len() int {
	return len(c.entries)
}

type fortState struct {
	team           int
	prestige       int
	guardPokemonID int
}

// FortCache remembers the last successfully persisted state per fort
// external id. Equality is exact; any change in team, prestige or guard
// is a new observation. Fort cardinality is bounded, so there is no TTL.
type FortCache struct {
	entries map[string]fortState
}

func NewFortCache() *FortCache {
	return &FortCache{entries: make(map[string]fortState)}
}

func (c *FortCache) Add(ev *store.FortEvent) {
	c.entries[ev.ExternalID] = fortState{
		team:           ev.Team,
		prestige:       ev.Prestige,
		guardPokemonID: ev.GuardPokemonID,
	}
}

func (c *FortCache) Contains(ev *store.FortEvent) bool {
	state, ok := c.entries[ev.ExternalID]
	if !ok {
		return false
	}
	return state.team == ev.Team &&
		state.prestige == ev.Prestige &&
		state.guardPokemonID == ev.GuardPokemonID
}

func (c *FortCache) Len() int {
	return len(c.entries)
}
