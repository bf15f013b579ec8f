package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ Store = (*SQL)(nil)

// Options configure schema and reporting behavior at open time.
type Options struct {
	// SpawnIDInt stores spawn ids in a BIGINT column instead of a string
	// column. Events still carry spawn ids as strings; they are parsed on
	// write.
	SpawnIDInt bool
	// ReportSince floors every reporting query that honors it with
	// expire_timestamp > ReportSince. Zero disables the floor.
	ReportSince int64
}

// SQL is the relational store. It owns the durable schema and performs
// the guarded writes and the reporting queries over database/sql, with
// engine differences isolated in the Dialect.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	opts    Options
}

// Open connects to the given driver/DSN and creates the schema.
func Open(driver, dsn string, opts Options) (*SQL, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQL{db: db, dialect: dialect, opts: opts}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// NewSQLiteStore opens the default file-backed SQLite store under dataDir.
func NewSQLiteStore(dataDir string, opts Options) (*SQL, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "pokewatch.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return Open("sqlite", dsn, opts)
}

func (s *SQL) migrate() error {
	d := s.dialect
	schema := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sightings (
			id %s,
			pokemon_id SMALLINT,
			spawn_id %s,
			expire_timestamp INTEGER,
			encounter_id %s UNIQUE,
			normalized_timestamp INTEGER,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION
		)`, d.AutoIncrementPK(), d.SpawnIDType(s.opts.SpawnIDInt), d.EncounterIDType()),
		`CREATE INDEX IF NOT EXISTS idx_sightings_pokemon_id ON sightings(pokemon_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sightings_expire_timestamp ON sightings(expire_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_sightings_lat ON sightings(lat)`,
		`CREATE INDEX IF NOT EXISTS idx_sightings_lon ON sightings(lon)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS longspawns (
			id %s,
			pokemon_id SMALLINT,
			spawn_id %s,
			expire_timestamp INTEGER,
			encounter_id %s,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION,
			time_till_hidden_ms INTEGER,
			last_modified_timestamp_ms BIGINT
		)`, d.AutoIncrementPK(), d.SpawnIDType(s.opts.SpawnIDInt), d.EncounterIDType()),
		`CREATE INDEX IF NOT EXISTS idx_longspawns_pokemon_id ON longspawns(pokemon_id)`,
		`CREATE INDEX IF NOT EXISTS idx_longspawns_lat ON longspawns(lat)`,
		`CREATE INDEX IF NOT EXISTS idx_longspawns_lon ON longspawns(lon)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS forts (
			id %s,
			external_id TEXT UNIQUE,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION
		)`, d.AutoIncrementPK()),
		`CREATE INDEX IF NOT EXISTS idx_forts_lat ON forts(lat)`,
		`CREATE INDEX IF NOT EXISTS idx_forts_lon ON forts(lon)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS fort_sightings (
			id %s,
			fort_id BIGINT NOT NULL REFERENCES forts(id),
			last_modified INTEGER,
			team SMALLINT,
			prestige INTEGER,
			guard_pokemon_id SMALLINT,
			CONSTRAINT fort_id_last_modified_unique UNIQUE (fort_id, last_modified)
		)`, d.AutoIncrementPK()),
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// DialectName reports which SQL dialect the store was opened with.
func (s *SQL) DialectName() string {
	return s.dialect.Name()
}

func (s *SQL) ph(n int) string {
	return s.dialect.Placeholder(n)
}

// sinceClause returns the reporting floor predicate, or "" when disabled.
func (s *SQL) sinceClause(where bool) string {
	if s.opts.ReportSince == 0 {
		return ""
	}
	noun := "AND"
	if where {
		noun = "WHERE"
	}
	return fmt.Sprintf(" %s expire_timestamp > %d", noun, s.opts.ReportSince)
}

// encounterValue renders an encounter id for binding. Decimal strings
// survive both the TEXT column on SQLite and NUMERIC(20,0) elsewhere
// without losing the upper half of the unsigned range.
func encounterValue(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (s *SQL) spawnIDValue(spawnID string) (interface{}, error) {
	if !s.opts.SpawnIDInt {
		return spawnID, nil
	}
	n, err := strconv.ParseInt(spawnID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("spawn id %q is not an integer: %w", spawnID, err)
	}
	return n, nil
}

// isUniqueViolation classifies engine-level uniqueness errors. The code
// check covers the linked SQLite driver; the message fallbacks cover
// postgres (23505) and mysql (1062) drivers registered by the caller.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

// Write primitives

func (s *SQL) SightingExists(encounterID uint64) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM sightings WHERE encounter_id = %s LIMIT 1", s.ph(1))
	var one int
	err := s.db.QueryRow(query, encounterValue(encounterID)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQL) InsertSighting(ev *SightingEvent) error {
	spawnID, err := s.spawnIDValue(ev.SpawnID)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO sightings
		(pokemon_id, spawn_id, expire_timestamp, encounter_id, normalized_timestamp, lat, lon)
		VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7))
	_, err = s.db.Exec(query,
		ev.PokemonID,
		spawnID,
		ev.ExpireTimestamp,
		encounterValue(ev.EncounterID),
		NormalizeTimestamp(ev.ExpireTimestamp),
		ev.Lat,
		ev.Lon,
	)
	return err
}

func (s *SQL) InsertLongSpawn(ev *SightingEvent) error {
	spawnID, err := s.spawnIDValue(ev.SpawnID)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO longspawns
		(pokemon_id, spawn_id, expire_timestamp, encounter_id, lat, lon, time_till_hidden_ms, last_modified_timestamp_ms)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
	_, err = s.db.Exec(query,
		ev.PokemonID,
		spawnID,
		ev.ExpireTimestamp,
		encounterValue(ev.EncounterID),
		ev.Lat,
		ev.Lon,
		ev.TimeTillHiddenMs,
		ev.LastModifiedMs,
	)
	return err
}

// WriteFortSighting looks up or creates the fort, self-heals on a row
// that already records the observed state, and otherwise inserts a new
// fort sighting. A uniqueness race with a concurrent writer is resolved
// by rolling back and reporting FortConflict without an error; the
// winner's commit is authoritative.
func (s *SQL) WriteFortSighting(ev *FortEvent) (FortWriteOutcome, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return FortConflict, err
	}

	fortQuery := fmt.Sprintf(
		"SELECT id FROM forts WHERE external_id = %s AND lat = %s AND lon = %s",
		s.ph(1), s.ph(2), s.ph(3))
	var fortID int64
	err = tx.QueryRow(fortQuery, ev.ExternalID, ev.Lat, ev.Lon).Scan(&fortID)
	existed := true
	if err == sql.ErrNoRows {
		existed = false
		insertFort := fmt.Sprintf(
			"INSERT INTO forts (external_id, lat, lon) VALUES (%s, %s, %s)",
			s.ph(1), s.ph(2), s.ph(3))
		res, err := tx.Exec(insertFort, ev.ExternalID, ev.Lat, ev.Lon)
		if err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return FortConflict, nil
			}
			return FortConflict, err
		}
		fortID, err = res.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return FortConflict, err
		}
	} else if err != nil {
		_ = tx.Rollback()
		return FortConflict, err
	}

	if existed {
		// A row recording exactly this state means the cache went cold;
		// the caller repopulates it from this hit.
		existingQuery := fmt.Sprintf(`SELECT id FROM fort_sightings
			WHERE fort_id = %s AND team = %s AND prestige = %s AND guard_pokemon_id = %s
			LIMIT 1`, s.ph(1), s.ph(2), s.ph(3), s.ph(4))
		var sightingID int64
		err = tx.QueryRow(existingQuery, fortID, ev.Team, ev.Prestige, ev.GuardPokemonID).Scan(&sightingID)
		if err == nil {
			if err := tx.Commit(); err != nil {
				return FortConflict, err
			}
			return FortUnchanged, nil
		}
		if err != sql.ErrNoRows {
			_ = tx.Rollback()
			return FortConflict, err
		}
	}

	insert := fmt.Sprintf(`INSERT INTO fort_sightings
		(fort_id, last_modified, team, prestige, guard_pokemon_id)
		VALUES (%s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	_, err = tx.Exec(insert, fortID, ev.LastModified, ev.Team, ev.Prestige, ev.GuardPokemonID)
	if err == nil {
		err = tx.Commit()
		if err == nil {
			return FortWritten, nil
		}
	}

	_ = tx.Rollback()
	if isUniqueViolation(err) {
		return FortConflict, nil
	}
	return FortConflict, err
}

// Reporting

const sightingColumns = "id, pokemon_id, spawn_id, expire_timestamp, encounter_id, normalized_timestamp, lat, lon"

func scanSightings(rows *sql.Rows) ([]Sighting, error) {
	defer func() { _ = rows.Close() }()

	var sightings []Sighting
	for rows.Next() {
		var sg Sighting
		var encounter string
		if err := rows.Scan(&sg.ID, &sg.PokemonID, &sg.SpawnID, &sg.ExpireTimestamp,
			&encounter, &sg.NormalizedTimestamp, &sg.Lat, &sg.Lon); err != nil {
			return nil, err
		}
		id, err := strconv.ParseUint(encounter, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt encounter id %q: %w", encounter, err)
		}
		sg.EncounterID = id
		sightings = append(sightings, sg)
	}
	return sightings, rows.Err()
}

// CurrentSightings returns sightings whose expiration is still in the
// future relative to now.
func (s *SQL) CurrentSightings(now int64) ([]Sighting, error) {
	query := fmt.Sprintf("SELECT %s FROM sightings WHERE expire_timestamp > %d", sightingColumns, now)
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	return scanSightings(rows)
}

// LatestFortStates returns the most recent sighting of every fort using a
// correlated max-per-group subquery; the grouping never happens in Go.
func (s *SQL) LatestFortStates() ([]FortState, error) {
	query := fmt.Sprintf(`SELECT
			fs.fort_id,
			fs.id,
			fs.team,
			fs.prestige,
			fs.guard_pokemon_id,
			fs.last_modified,
			f.lat,
			f.lon
		FROM fort_sightings fs
		JOIN forts f ON f.id = fs.fort_id
		WHERE %s`, s.dialect.LatestFortPredicate())

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var states []FortState
	for rows.Next() {
		var st FortState
		if err := rows.Scan(&st.FortID, &st.SightingID, &st.Team, &st.Prestige,
			&st.GuardPokemonID, &st.LastModified, &st.Lat, &st.Lon); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func (s *SQL) SessionStats() (*SessionStats, error) {
	query := fmt.Sprintf(`SELECT
			MIN(expire_timestamp),
			MAX(expire_timestamp),
			COUNT(*)
		FROM sightings%s`, s.sinceClause(true))

	var tsMin, tsMax sql.NullInt64
	var count int64
	if err := s.db.QueryRow(query).Scan(&tsMin, &tsMax, &count); err != nil {
		return nil, err
	}
	if !tsMin.Valid {
		return &SessionStats{LengthHours: 1}, nil
	}

	hours := (tsMax.Int64 - tsMin.Int64) / 3600
	if hours == 0 {
		hours = 1
	}
	return &SessionStats{
		Start:       time.Unix(tsMin.Int64, 0),
		End:         time.Unix(tsMax.Int64, 0),
		Count:       count,
		LengthHours: hours,
		PerHour:     float64(count) / float64(hours),
	}, nil
}

// PunchCard counts sightings per 300-second bucket. The result starts at
// the first populated bucket and runs through the last one inclusive,
// with gaps filled as zero.
func (s *SQL) PunchCard() ([]int64, error) {
	query := fmt.Sprintf(`SELECT
			CAST((expire_timestamp / 300) AS %s) AS ts_bucket,
			COUNT(*)
		FROM sightings%s
		GROUP BY ts_bucket
		ORDER BY ts_bucket`, s.dialect.BucketCastType(), s.sinceClause(true))

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]int64)
	var first, last int64
	seen := false
	for rows.Next() {
		var bucket, count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, err
		}
		if !seen {
			first = bucket
			seen = true
		}
		last = bucket
		counts[bucket] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !seen {
		return nil, nil
	}

	filled := make([]int64, 0, last-first+1)
	for bucket := first; bucket <= last; bucket++ {
		filled = append(filled, counts[bucket])
	}
	return filled, nil
}

func orderKeyword(descending bool) string {
	if descending {
		return "DESC"
	}
	return "ASC"
}

func (s *SQL) TopPokemon(count int, descending bool) ([]PokemonCount, error) {
	query := fmt.Sprintf(`SELECT
			pokemon_id,
			COUNT(*) AS how_many
		FROM sightings%s
		GROUP BY pokemon_id
		ORDER BY how_many %s
		LIMIT %d`, s.sinceClause(true), orderKeyword(descending), count)

	return s.queryPokemonCounts(query)
}

func (s *SQL) queryPokemonCounts(query string, args ...interface{}) ([]PokemonCount, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var counts []PokemonCount
	for rows.Next() {
		var pc PokemonCount
		if err := rows.Scan(&pc.PokemonID, &pc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, pc)
	}
	return counts, rows.Err()
}

// PokemonRanking ranks every known kind: never-observed ids first in
// ascending id order, then observed ids ordered by count.
func (s *SQL) PokemonRanking(descending bool) ([]int, error) {
	query := fmt.Sprintf(`SELECT
			pokemon_id,
			COUNT(*) AS how_many
		FROM sightings
		GROUP BY pokemon_id
		ORDER BY how_many %s`, orderKeyword(descending))

	counts, err := s.queryPokemonCounts(query)
	if err != nil {
		return nil, err
	}

	observed := make(map[int]bool, len(counts))
	for _, pc := range counts {
		observed[pc.PokemonID] = true
	}

	ranking := make([]int, 0, MaxPokemonID)
	for id := 1; id <= MaxPokemonID; id++ {
		if !observed[id] {
			ranking = append(ranking, id)
		}
	}
	for _, pc := range counts {
		ranking = append(ranking, pc.PokemonID)
	}
	return ranking, nil
}

// Stage2Pokemon counts sightings for the configured stage-2 evolution
// ids, omitting ids that were never observed.
func (s *SQL) Stage2Pokemon(ids []int) ([]PokemonCount, error) {
	var result []PokemonCount
	for _, id := range ids {
		count, err := s.TotalSpawnsCount(id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			result = append(result, PokemonCount{PokemonID: id, Count: count})
		}
	}
	return result, nil
}

// MissingPokemon lists the kinds with no observations at all.
func (s *SQL) MissingPokemon() ([]int, error) {
	query := fmt.Sprintf("SELECT DISTINCT pokemon_id FROM sightings%s", s.sinceClause(true))
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	observed := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		observed[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int
	for id := 1; id <= MaxPokemonID; id++ {
		if !observed[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *SQL) SightingsForPokemon(ids []int) ([]Sighting, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	list := make([]string, len(ids))
	for i, id := range ids {
		list[i] = strconv.Itoa(id)
	}
	query := fmt.Sprintf("SELECT %s FROM sightings WHERE pokemon_id IN (%s)%s",
		sightingColumns, strings.Join(list, ", "), s.sinceClause(false))
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	return scanSightings(rows)
}

// SpawnsPerHour buckets one kind's sightings by hour of day (UTC).
func (s *SQL) SpawnsPerHour(pokemonID int) ([]HourCount, error) {
	query := fmt.Sprintf(`SELECT
			%s AS ts_hour,
			COUNT(*)
		FROM sightings
		WHERE pokemon_id = %d%s
		GROUP BY ts_hour
		ORDER BY ts_hour`, s.dialect.HourExpr("expire_timestamp"), pokemonID, s.sinceClause(false))

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hours []HourCount
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Count); err != nil {
			return nil, err
		}
		hours = append(hours, hc)
	}
	return hours, rows.Err()
}

func (s *SQL) TotalSpawnsCount(pokemonID int) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(id) FROM sightings WHERE pokemon_id = %d%s",
		pokemonID, s.sinceClause(false))
	var count int64
	if err := s.db.QueryRow(query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SpawnCoords returns raw coordinates for mapping, optionally filtered by
// pokemon id (0 = all kinds).
func (s *SQL) SpawnCoords(pokemonID int) ([]Point, error) {
	query := "SELECT lat, lon FROM sightings"
	if pokemonID > 0 {
		query += fmt.Sprintf(" WHERE pokemon_id = %d%s", pokemonID, s.sinceClause(false))
	} else {
		query += s.sinceClause(true)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
