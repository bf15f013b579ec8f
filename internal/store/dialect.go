package store

import (
	"fmt"
	"strconv"
)

// Dialect supplies the engine-specific SQL fragments the schema and the
// reporting queries need. A dialect is chosen once when the store is
// opened, never per query.
type Dialect interface {
	Name() string
	AutoIncrementPK() string
	EncounterIDType() string
	SpawnIDType(asInt bool) string
	Placeholder(n int) string
	HourExpr(column string) string
	BucketCastType() string
	LatestFortPredicate() string
}

// DialectFor maps a database/sql driver name to its dialect. Only the
// SQLite driver is linked into the binary; postgres and mysql callers
// must register their own driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "pgx":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string            { return "sqlite" }
func (sqliteDialect) AutoIncrementPK() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

// TEXT keeps the full unsigned 64-bit range; encounter ids are bound as
// decimal strings.
func (sqliteDialect) EncounterIDType() string { return "TEXT" }

func (sqliteDialect) SpawnIDType(asInt bool) string {
	if asInt {
		return "BIGINT"
	}
	return "VARCHAR(11)"
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) HourExpr(column string) string {
	return fmt.Sprintf("CAST(STRFTIME('%%H', %s, 'unixepoch') AS INTEGER)", column)
}

func (sqliteDialect) BucketCastType() string { return "BIGINT" }

// The concatenated-key form is dramatically faster than the tuple IN
// form on SQLite.
func (sqliteDialect) LatestFortPredicate() string {
	return `(fs.fort_id || '-' || fs.last_modified) IN (
		SELECT fort_id || '-' || MAX(last_modified)
		FROM fort_sightings
		GROUP BY fort_id
	)`
}

type postgresDialect struct{}

func (postgresDialect) Name() string            { return "postgresql" }
func (postgresDialect) AutoIncrementPK() string { return "BIGSERIAL PRIMARY KEY" }
func (postgresDialect) EncounterIDType() string { return "NUMERIC(20,0)" }

func (postgresDialect) SpawnIDType(asInt bool) string {
	if asInt {
		return "BIGINT"
	}
	return "VARCHAR(11)"
}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) HourExpr(column string) string {
	return fmt.Sprintf("CAST(TO_CHAR(TO_TIMESTAMP(%s), 'HH24') AS INTEGER)", column)
}

func (postgresDialect) BucketCastType() string { return "BIGINT" }

func (postgresDialect) LatestFortPredicate() string {
	return `(fs.fort_id, fs.last_modified) IN (
		SELECT fort_id, MAX(last_modified)
		FROM fort_sightings
		GROUP BY fort_id
	)`
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string            { return "mysql" }
func (mysqlDialect) AutoIncrementPK() string { return "BIGINT PRIMARY KEY AUTO_INCREMENT" }
func (mysqlDialect) EncounterIDType() string { return "NUMERIC(20,0)" }

func (mysqlDialect) SpawnIDType(asInt bool) string {
	if asInt {
		return "BIGINT"
	}
	return "VARCHAR(11)"
}

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) HourExpr(column string) string {
	return fmt.Sprintf("HOUR(FROM_UNIXTIME(%s))", column)
}

func (mysqlDialect) BucketCastType() string { return "UNSIGNED" }

func (mysqlDialect) LatestFortPredicate() string {
	return `(fs.fort_id, fs.last_modified) IN (
		SELECT fort_id, MAX(last_modified)
		FROM fort_sightings
		GROUP BY fort_id
	)`
}
