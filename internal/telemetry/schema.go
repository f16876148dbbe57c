package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/logger"
)

const SchemaVersion = 1

type table struct {
	name string
	ddl  string
}

// schemaTables in creation order; they are dropped in reverse.
var schemaTables = []table{
	{
		name: "schema_versions",
		ddl: `CREATE TABLE IF NOT EXISTS schema_versions (
            version     INTEGER PRIMARY KEY,
            applied_at  TEXT NOT NULL
        )`,
	},
	{
		name: "samples",
		ddl: `CREATE TABLE IF NOT EXISTS samples (
            id           INTEGER PRIMARY KEY AUTOINCREMENT,
            recorded_at  INTEGER NOT NULL CHECK (typeof(recorded_at) = 'integer'),
            monotonic    INTEGER NOT NULL CHECK (typeof(monotonic) = 'integer'),
            sensor       TEXT NOT NULL,
            unit         TEXT NOT NULL,
            value        REAL NOT NULL
        );
        CREATE INDEX IF NOT EXISTS samples_sensor_time ON samples (sensor, recorded_at)`,
	},
}

const insertSampleSQL = `
    INSERT INTO samples (recorded_at, monotonic, sensor, unit, value)
    VALUES (?, ?, ?, ?, ?)`

// withTx runs fn in a transaction and commits it. Any failure is reported
// under code and rolls the transaction back.
func withTx(db *sql.DB, log logger.Logger, code errors.ErrorCode, fn func(*sql.Tx) error) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(code, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Debug().Err(rbErr).Msg("Failed to roll back transaction")
		}
		if errors.HasCode(err, code) {
			return err
		}
		return errFactory.Wrap(code, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.WithData(code, struct {
			Phase string
			Error string
		}{
			Phase: "commit",
			Error: err.Error(),
		})
	}

	return nil
}

// InitSchema creates every table and records SchemaVersion.
func InitSchema(db *sql.DB, log logger.Logger) error {
	log.Debug().Msg("Creating database...")

	err := withTx(db, log, ErrSchemaInitFailed, func(tx *sql.Tx) error {
		for _, t := range schemaTables {
			if _, err := tx.Exec(t.ddl); err != nil {
				return errors.New().WithData(ErrSchemaInitFailed, struct {
					Phase string
					Table string
					Error string
				}{
					Phase: "create_table",
					Table: t.name,
					Error: err.Error(),
				})
			}
		}

		_, err := tx.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion)
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Int("version", SchemaVersion).Msg("Schema initialized")

	return nil
}

func dropTables(db *sql.DB, log logger.Logger) error {
	return withTx(db, log, ErrSchemaMigrationFailed, func(tx *sql.Tx) error {
		for i := len(schemaTables) - 1; i >= 0; i-- {
			name := schemaTables[i].name
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + name); err != nil {
				return errors.New().WithData(ErrSchemaMigrationFailed, struct {
					Phase string
					Table string
					Error string
				}{
					Phase: "drop_table",
					Table: name,
					Error: err.Error(),
				})
			}
		}

		return nil
	})
}

// GetSchemaVersion returns the current schema version, 0 for an empty database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	exists, err := TableExists(db, "schema_versions")
	if err != nil || !exists {
		return 0, err
	}

	var version int
	err = db.QueryRow(`SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

func TableExists(db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type='table' AND name=?)`, name).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: name,
			Error: err.Error(),
		})
	}

	return exists, nil
}
