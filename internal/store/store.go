package store

import (
	"time"
)

// Team ids as reported by the game.
const (
	TeamNone = iota
	TeamMystic
	TeamValor
	TeamInstinct
)

// MaxPokemonID is the highest known pokemon kind id.
const MaxPokemonID = 151

// SightingEvent is one raw pokemon observation as delivered by the
// ingestion feed. Long-spawn refinements arrive as the same shape with
// TimeTillHiddenMs carrying the exact remaining duration.
type SightingEvent struct {
	PokemonID        int     `json:"pokemon_id"`
	SpawnID          string  `json:"spawn_id"`
	EncounterID      uint64  `json:"encounter_id"`
	ExpireTimestamp  int64   `json:"expire_timestamp"`
	LastModifiedMs   int64   `json:"last_modified_timestamp_ms"`
	TimeTillHiddenMs int64   `json:"time_till_hidden_ms"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
}

// FortEvent is one raw observation of a fort's controlling state.
type FortEvent struct {
	ExternalID     string  `json:"external_id"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Team           int     `json:"team"`
	Prestige       int     `json:"prestige"`
	GuardPokemonID int     `json:"guard_pokemon_id"`
	LastModified   int64   `json:"last_modified"`
}

type Sighting struct {
	ID                  int64   `json:"id"`
	PokemonID           int     `json:"pokemon_id"`
	SpawnID             string  `json:"spawn_id"`
	ExpireTimestamp     int64   `json:"expire_timestamp"`
	EncounterID         uint64  `json:"encounter_id"`
	NormalizedTimestamp int64   `json:"normalized_timestamp"`
	Lat                 float64 `json:"lat"`
	Lon                 float64 `json:"lon"`
}

type LongSpawn struct {
	ID               int64   `json:"id"`
	PokemonID        int     `json:"pokemon_id"`
	SpawnID          string  `json:"spawn_id"`
	ExpireTimestamp  int64   `json:"expire_timestamp"`
	EncounterID      uint64  `json:"encounter_id"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	TimeTillHiddenMs int64   `json:"time_till_hidden_ms"`
	LastModifiedMs   int64   `json:"last_modified_timestamp_ms"`
}

type Fort struct {
	ID         int64   `json:"id"`
	ExternalID string  `json:"external_id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// FortState is the most recently observed controlling state of one fort.
type FortState struct {
	FortID         int64   `json:"fort_id"`
	SightingID     int64   `json:"sighting_id"`
	Team           int     `json:"team"`
	Prestige       int     `json:"prestige"`
	GuardPokemonID int     `json:"guard_pokemon_id"`
	LastModified   int64   `json:"last_modified"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
}

// SessionStats summarizes the stored sightings window.
type SessionStats struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Count       int64     `json:"count"`
	LengthHours int64     `json:"length_hours"`
	PerHour     float64   `json:"per_hour"`
}

type PokemonCount struct {
	PokemonID int   `json:"pokemon_id"`
	Count     int64 `json:"count"`
}

type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FortWriteOutcome reports how WriteFortSighting resolved.
type FortWriteOutcome int

const (
	// FortWritten means a new fort sighting row was committed.
	FortWritten FortWriteOutcome = iota
	// FortUnchanged means a row with the same team/prestige/guard already
	// existed for the fort; nothing was written.
	FortUnchanged
	// FortConflict means a concurrent writer committed the same
	// fort+last_modified pair first; this write was rolled back.
	FortConflict
)

type Store interface {
	// Write primitives, guarded by the dedup caches in internal/ingest.
	SightingExists(encounterID uint64) (bool, error)
	InsertSighting(ev *SightingEvent) error
	InsertLongSpawn(ev *SightingEvent) error
	WriteFortSighting(ev *FortEvent) (FortWriteOutcome, error)

	// Reporting.
	CurrentSightings(now int64) ([]Sighting, error)
	LatestFortStates() ([]FortState, error)
	SessionStats() (*SessionStats, error)
	PunchCard() ([]int64, error)
	TopPokemon(count int, descending bool) ([]PokemonCount, error)
	PokemonRanking(descending bool) ([]int, error)
	Stage2Pokemon(ids []int) ([]PokemonCount, error)
	MissingPokemon() ([]int, error)
	SightingsForPokemon(ids []int) ([]Sighting, error)
	SpawnsPerHour(pokemonID int) ([]HourCount, error)
	TotalSpawnsCount(pokemonID int) (int64, error)
	SpawnCoords(pokemonID int) ([]Point, error)

	// Lifecycle
	Close() error
}

// NormalizeTimestamp floors a unix timestamp to its 120-second bucket.
func NormalizeTimestamp(ts int64) int64 {
	return ts / 120 * 120
}
