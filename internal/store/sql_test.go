package store

import (
	"math"
	"os"
	"testing"
)

func setupTestStore(t *testing.T, opts Options) (*SQL, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "pokewatch-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	s, err := NewSQLiteStore(tmpDir, opts)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		t.Fatalf("failed to create store: %v", err)
	}
	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

func testSighting(pokemonID int, encounterID uint64, expire int64) *SightingEvent {
	return &SightingEvent{
		PokemonID:        pokemonID,
		SpawnID:          "spawn123",
		EncounterID:      encounterID,
		ExpireTimestamp:  expire,
		LastModifiedMs:   expire * 1000,
		TimeTillHiddenMs: 90000,
		Lat:              52.52,
		Lon:              13.405,
	}
}

func mustInsertSighting(t *testing.T, s *SQL, ev *SightingEvent) {
	t.Helper()
	if err := s.InsertSighting(ev); err != nil {
		t.Fatalf("InsertSighting failed: %v", err)
	}
}

// Sighting write tests

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		ts   int64
		want int64
	}{
		{125, 120},
		{239, 120},
		{240, 240},
		{0, 0},
		{119, 0},
	}
	for _, tt := range tests {
		if got := NormalizeTimestamp(tt.ts); got != tt.want {
			t.Errorf("NormalizeTimestamp(%d) = %d, want %d", tt.ts, got, tt.want)
		}
	}
}

func TestInsertSighting_RoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	mustInsertSighting(t, s, testSighting(16, 12345, 125))

	sightings, err := s.CurrentSightings(0)
	if err != nil {
		t.Fatalf("CurrentSightings failed: %v", err)
	}
	if len(sightings) != 1 {
		t.Fatalf("expected 1 sighting, got %d", len(sightings))
	}
	sg := sightings[0]
	if sg.PokemonID != 16 {
		t.Errorf("expected pokemon 16, got %d", sg.PokemonID)
	}
	if sg.EncounterID != 12345 {
		t.Errorf("expected encounter 12345, got %d", sg.EncounterID)
	}
	if sg.NormalizedTimestamp != 120 {
		t.Errorf("expected normalized timestamp 120, got %d", sg.NormalizedTimestamp)
	}
	if sg.SpawnID != "spawn123" {
		t.Errorf("expected spawn id 'spawn123', got %q", sg.SpawnID)
	}
}

func TestInsertSighting_FullUnsignedEncounterID(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	// 20 decimal digits, above math.MaxInt64.
	mustInsertSighting(t, s, testSighting(1, math.MaxUint64, 100))

	exists, err := s.SightingExists(math.MaxUint64)
	if err != nil {
		t.Fatalf("SightingExists failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sighting to exist")
	}

	sightings, err := s.CurrentSightings(0)
	if err != nil {
		t.Fatalf("CurrentSightings failed: %v", err)
	}
	if len(sightings) != 1 || sightings[0].EncounterID != math.MaxUint64 {
		t.Fatalf("expected encounter id to survive the round trip, got %+v", sightings)
	}
}

func TestInsertSighting_EncounterIDUnique(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	mustInsertSighting(t, s, testSighting(16, 777, 100))
	err := s.InsertSighting(testSighting(16, 777, 500))
	if err == nil {
		t.Fatal("expected uniqueness violation on duplicate encounter id")
	}
	if !isUniqueViolation(err) {
		t.Errorf("expected a unique violation, got %v", err)
	}
}

func TestSightingExists(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	exists, err := s.SightingExists(1)
	if err != nil {
		t.Fatalf("SightingExists failed: %v", err)
	}
	if exists {
		t.Error("expected no sighting in empty store")
	}

	mustInsertSighting(t, s, testSighting(16, 1, 100))
	exists, err = s.SightingExists(1)
	if err != nil {
		t.Fatalf("SightingExists failed: %v", err)
	}
	if !exists {
		t.Error("expected sighting to exist")
	}
}

func TestInsertSighting_SpawnIDInt(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{SpawnIDInt: true})
	defer cleanup()

	ev := testSighting(16, 1, 100)
	ev.SpawnID = "9876543210"
	mustInsertSighting(t, s, ev)

	sightings, err := s.CurrentSightings(0)
	if err != nil {
		t.Fatalf("CurrentSightings failed: %v", err)
	}
	if len(sightings) != 1 || sightings[0].SpawnID != "9876543210" {
		t.Fatalf("expected integer spawn id to round-trip, got %+v", sightings)
	}

	bad := testSighting(16, 2, 100)
	bad.SpawnID = "not-a-number"
	if err := s.InsertSighting(bad); err == nil {
		t.Error("expected error for non-numeric spawn id with spawn_id_int")
	}
}

func TestInsertLongSpawn(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	ev := testSighting(16, 42, 100)
	if err := s.InsertLongSpawn(ev); err != nil {
		t.Fatalf("InsertLongSpawn failed: %v", err)
	}
	// No uniqueness constraint on the longspawns table.
	if err := s.InsertLongSpawn(ev); err != nil {
		t.Fatalf("second InsertLongSpawn failed: %v", err)
	}
}

// Fort write tests

func testFort(externalID string, team int, lastModified int64) *FortEvent {
	return &FortEvent{
		ExternalID:     externalID,
		Lat:            52.52,
		Lon:            13.405,
		Team:           team,
		Prestige:       11000,
		GuardPokemonID: 65,
		LastModified:   lastModified,
	}
}

func TestWriteFortSighting_New(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	outcome, err := s.WriteFortSighting(testFort("fort-1", TeamMystic, 1000))
	if err != nil {
		t.Fatalf("WriteFortSighting failed: %v", err)
	}
	if outcome != FortWritten {
		t.Errorf("expected FortWritten, got %v", outcome)
	}

	states, err := s.LatestFortStates()
	if err != nil {
		t.Fatalf("LatestFortStates failed: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("expected 1 fort state, got %d", len(states))
	}
	if states[0].Team != TeamMystic || states[0].LastModified != 1000 {
		t.Errorf("unexpected state: %+v", states[0])
	}
}

func TestWriteFortSighting_SelfHeal(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	if _, err := s.WriteFortSighting(testFort("fort-1", TeamMystic, 1000)); err != nil {
		t.Fatalf("WriteFortSighting failed: %v", err)
	}

	// Same state again, different timestamp: an existing row already
	// records it, so nothing new is written.
	outcome, err := s.WriteFortSighting(testFort("fort-1", TeamMystic, 2000))
	if err != nil {
		t.Fatalf("WriteFortSighting failed: %v", err)
	}
	if outcome != FortUnchanged {
		t.Errorf("expected FortUnchanged, got %v", outcome)
	}

	states, err := s.LatestFortStates()
	if err != nil {
		t.Fatalf("LatestFortStates failed: %v", err)
	}
	if len(states) != 1 || states[0].LastModified != 1000 {
		t.Fatalf("expected only the original sighting, got %+v", states)
	}
}

func TestWriteFortSighting_ConflictSwallowed(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	if _, err := s.WriteFortSighting(testFort("fort-1", TeamMystic, 1000)); err != nil {
		t.Fatalf("WriteFortSighting failed: %v", err)
	}

	// Different state, same fort and last_modified: the uniqueness
	// constraint fires and the write is rolled back without an error.
	outcome, err := s.WriteFortSighting(testFort("fort-1", TeamValor, 1000))
	if err != nil {
		t.Fatalf("expected conflict to be swallowed, got %v", err)
	}
	if outcome != FortConflict {
		t.Errorf("expected FortConflict, got %v", outcome)
	}

	states, err := s.LatestFortStates()
	if err != nil {
		t.Fatalf("LatestFortStates failed: %v", err)
	}
	if len(states) != 1 || states[0].Team != TeamMystic {
		t.Fatalf("expected the first write to win, got %+v", states)
	}
}

func TestLatestFortStates_MaxPerGroup(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	writes := []*FortEvent{
		testFort("fort-1", TeamMystic, 1000),
		testFort("fort-1", TeamValor, 2000),
		testFort("fort-2", TeamInstinct, 1500),
	}
	for _, ev := range writes {
		if _, err := s.WriteFortSighting(ev); err != nil {
			t.Fatalf("WriteFortSighting failed: %v", err)
		}
	}

	states, err := s.LatestFortStates()
	if err != nil {
		t.Fatalf("LatestFortStates failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 fort states, got %d", len(states))
	}

	byFort := make(map[int64]FortState)
	for _, st := range states {
		byFort[st.FortID] = st
	}
	for _, st := range byFort {
		switch st.LastModified {
		case 2000:
			if st.Team != TeamValor {
				t.Errorf("expected fort-1 latest state to be valor, got %+v", st)
			}
		case 1500:
			if st.Team != TeamInstinct {
				t.Errorf("expected fort-2 state to be instinct, got %+v", st)
			}
		default:
			t.Errorf("unexpected state: %+v", st)
		}
	}
}

// Reporting tests

func TestSessionStats(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	mustInsertSighting(t, s, testSighting(16, 1, 1000))
	mustInsertSighting(t, s, testSighting(16, 2, 1000+7200))
	mustInsertSighting(t, s, testSighting(19, 3, 1000+3600))

	stats, err := s.SessionStats()
	if err != nil {
		t.Fatalf("SessionStats failed: %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("expected count 3, got %d", stats.Count)
	}
	if stats.LengthHours != 2 {
		t.Errorf("expected 2 hours, got %d", stats.LengthHours)
	}
	if stats.PerHour != 1.5 {
		t.Errorf("expected 1.5/hour, got %f", stats.PerHour)
	}
}

func TestSessionStats_ZeroWindowFloorsToOneHour(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	mustInsertSighting(t, s, testSighting(16, 1, 1000))
	mustInsertSighting(t, s, testSighting(16, 2, 1000))

	stats, err := s.SessionStats()
	if err != nil {
		t.Fatalf("SessionStats failed: %v", err)
	}
	if stats.LengthHours != 1 {
		t.Errorf("expected hours floored to 1, got %d", stats.LengthHours)
	}
	if stats.PerHour != 2 {
		t.Errorf("expected 2/hour, got %f", stats.PerHour)
	}
}

func TestPunchCard_FillsGaps(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	mustInsertSighting(t, s, testSighting(16, 1, 0))
	mustInsertSighting(t, s, testSighting(16, 2, 300))
	mustInsertSighting(t, s, testSighting(16, 3, 900))

	buckets, err := s.PunchCard()
	if err != nil {
		t.Fatalf("PunchCard failed: %v", err)
	}
	want := []int64{1, 1, 0, 1}
	if len(buckets) != len(want) {
		t.Fatalf("expected %d buckets, got %d (%v)", len(want), len(buckets), buckets)
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Errorf("bucket %d = %d, want %d", i, buckets[i], want[i])
		}
	}
}

func TestPunchCard_Empty(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	buckets, err := s.PunchCard()
	if err != nil {
		t.Fatalf("PunchCard failed: %v", err)
	}
	if len(buckets) != 0 {
		t.Errorf("expected no buckets, got %v", buckets)
	}
}

func seedCounts(t *testing.T, s *SQL) {
	t.Helper()
	var encounter uint64 = 1
	// pokemon 4 ten times, pokemon 5 five times
	for i := 0; i < 10; i++ {
		mustInsertSighting(t, s, testSighting(4, encounter, int64(1000+i)))
		encounter++
	}
	for i := 0; i < 5; i++ {
		mustInsertSighting(t, s, testSighting(5, encounter, int64(1000+i)))
		encounter++
	}
}

func TestTopPokemon(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()
	seedCounts(t, s)

	top, err := s.TopPokemon(30, true)
	if err != nil {
		t.Fatalf("TopPokemon failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].PokemonID != 4 || top[0].Count != 10 {
		t.Errorf("unexpected first entry: %+v", top[0])
	}
	if top[1].PokemonID != 5 || top[1].Count != 5 {
		t.Errorf("unexpected second entry: %+v", top[1])
	}

	bottom, err := s.TopPokemon(1, false)
	if err != nil {
		t.Fatalf("TopPokemon failed: %v", err)
	}
	if len(bottom) != 1 || bottom[0].PokemonID != 5 {
		t.Errorf("expected pokemon 5 first ascending, got %+v", bottom)
	}
}

func TestPokemonRanking(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()
	seedCounts(t, s)

	ranking, err := s.PokemonRanking(false)
	if err != nil {
		t.Fatalf("PokemonRanking failed: %v", err)
	}
	if len(ranking) != MaxPokemonID {
		t.Fatalf("expected %d entries, got %d", MaxPokemonID, len(ranking))
	}

	// Never-observed kinds first in id order.
	if ranking[0] != 1 || ranking[1] != 2 || ranking[2] != 3 {
		t.Errorf("expected ranking to start [1 2 3], got %v", ranking[:3])
	}
	// Observed kinds last, rarest first.
	if ranking[len(ranking)-2] != 5 || ranking[len(ranking)-1] != 4 {
		t.Errorf("expected ranking to end [5 4], got %v", ranking[len(ranking)-2:])
	}
}

func TestMissingPokemon(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()
	seedCounts(t, s)

	missing, err := s.MissingPokemon()
	if err != nil {
		t.Fatalf("MissingPokemon failed: %v", err)
	}
	if len(missing) != MaxPokemonID-2 {
		t.Fatalf("expected %d missing kinds, got %d", MaxPokemonID-2, len(missing))
	}
	for _, id := range missing {
		if id == 4 || id == 5 {
			t.Errorf("observed kind %d reported missing", id)
		}
	}
}

func TestStage2Pokemon(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()
	seedCounts(t, s)

	counts, err := s.Stage2Pokemon([]int{3, 4})
	if err != nil {
		t.Fatalf("Stage2Pokemon failed: %v", err)
	}
	// Kind 3 has no sightings and is omitted.
	if len(counts) != 1 || counts[0].PokemonID != 4 || counts[0].Count != 10 {
		t.Fatalf("unexpected stage-2 counts: %+v", counts)
	}
}

func TestSightingsForPokemon(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()
	seedCounts(t, s)

	sightings, err := s.SightingsForPokemon([]int{5})
	if err != nil {
		t.Fatalf("SightingsForPokemon failed: %v", err)
	}
	if len(sightings) != 5 {
		t.Errorf("expected 5 sightings, got %d", len(sightings))
	}

	none, err := s.SightingsForPokemon(nil)
	if err != nil {
		t.Fatalf("SightingsForPokemon failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no sightings for empty id list, got %d", len(none))
	}
}

func TestSpawnsPerHour(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	// Two sightings in hour 5 UTC, one in hour 7.
	mustInsertSighting(t, s, testSighting(16, 1, 5*3600+100))
	mustInsertSighting(t, s, testSighting(16, 2, 5*3600+200))
	mustInsertSighting(t, s, testSighting(16, 3, 7*3600))
	mustInsertSighting(t, s, testSighting(19, 4, 5*3600))

	hours, err := s.SpawnsPerHour(16)
	if err != nil {
		t.Fatalf("SpawnsPerHour failed: %v", err)
	}
	if len(hours) != 2 {
		t.Fatalf("expected 2 hour buckets, got %d (%v)", len(hours), hours)
	}
	if hours[0].Hour != 5 || hours[0].Count != 2 {
		t.Errorf("unexpected first bucket: %+v", hours[0])
	}
	if hours[1].Hour != 7 || hours[1].Count != 1 {
		t.Errorf("unexpected second bucket: %+v", hours[1])
	}
}

func TestTotalSpawnsCount(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()
	seedCounts(t, s)

	count, err := s.TotalSpawnsCount(4)
	if err != nil {
		t.Fatalf("TotalSpawnsCount failed: %v", err)
	}
	if count != 10 {
		t.Errorf("expected 10, got %d", count)
	}
}

func TestSpawnCoords(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{})
	defer cleanup()

	ev := testSighting(16, 1, 100)
	ev.Lat, ev.Lon = 1.5, 2.5
	mustInsertSighting(t, s, ev)
	mustInsertSighting(t, s, testSighting(19, 2, 100))

	all, err := s.SpawnCoords(0)
	if err != nil {
		t.Fatalf("SpawnCoords failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 points, got %d", len(all))
	}

	only, err := s.SpawnCoords(16)
	if err != nil {
		t.Fatalf("SpawnCoords failed: %v", err)
	}
	if len(only) != 1 || only[0].Lat != 1.5 || only[0].Lon != 2.5 {
		t.Errorf("unexpected filtered points: %+v", only)
	}
}

func TestReportSinceFloorsQueries(t *testing.T) {
	s, cleanup := setupTestStore(t, Options{ReportSince: 1000})
	defer cleanup()

	mustInsertSighting(t, s, testSighting(16, 1, 500))
	mustInsertSighting(t, s, testSighting(16, 2, 2000))
	mustInsertSighting(t, s, testSighting(19, 3, 2100))

	stats, err := s.SessionStats()
	if err != nil {
		t.Fatalf("SessionStats failed: %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("expected stats to exclude pre-floor sightings, got count %d", stats.Count)
	}

	count, err := s.TotalSpawnsCount(16)
	if err != nil {
		t.Fatalf("TotalSpawnsCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 post-floor sighting, got %d", count)
	}

	missing, err := s.MissingPokemon()
	if err != nil {
		t.Fatalf("MissingPokemon failed: %v", err)
	}
	for _, id := range missing {
		if id == 16 || id == 19 {
			t.Errorf("post-floor kind %d reported missing", id)
		}
	}
}
