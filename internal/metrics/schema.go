package metrics

import (
	"database/sql"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS transitions (
	       id               TEXT PRIMARY KEY,
	       timestamp        INTEGER NOT NULL,
	       direction        TEXT NOT NULL CHECK (direction IN ('to_capture', 'to_preview')),
	       outcome          TEXT NOT NULL CHECK (outcome IN ('ok', 'skipped', 'failed')),
	       width            INTEGER NOT NULL,
	       height           INTEGER NOT NULL,
	       duration_us      INTEGER NOT NULL,
	       luminance        INTEGER NOT NULL,
	       flash            INTEGER NOT NULL CHECK (flash IN (0, 1)),
	       preview_exposure INTEGER NOT NULL,
	       preview_gain     INTEGER NOT NULL,
	       preview_fps_x10  INTEGER NOT NULL,
	       capture_exposure INTEGER,
	       capture_gain     INTEGER,
	       vts              INTEGER,
	       vts_extra        INTEGER,
	       denoise          INTEGER,
	       naive_exposure   INTEGER,
	       banding_steps    INTEGER,
	       skipped          TEXT NOT NULL DEFAULT '',
	       error            TEXT NOT NULL DEFAULT ''
	   );
	   CREATE INDEX IF NOT EXISTS transitions_timestamp ON transitions (timestamp);
	   CREATE TABLE IF NOT EXISTS clamp_events (
	       transition_id TEXT NOT NULL REFERENCES transitions (id) ON DELETE CASCADE,
	       kind          TEXT NOT NULL,
	       requested     INTEGER NOT NULL,
	       applied       INTEGER NOT NULL
	   );`

	insertTransitionSQL = `
    INSERT INTO transitions (
        id, timestamp, direction, outcome,
        width, height, duration_us, luminance, flash,
        preview_exposure, preview_gain, preview_fps_x10,
        capture_exposure, capture_gain, vts, vts_extra, denoise,
        naive_exposure, banding_steps,
        skipped, error
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertClampSQL = `
    INSERT INTO clamp_events (transition_id, kind, requested, applied)
    VALUES (?, ?, ?, ?)`

	selectRecentSQL = `
    SELECT
        id, timestamp, direction, outcome,
        width, height, duration_us, luminance, flash,
        preview_exposure, preview_gain, preview_fps_x10,
        capture_exposure, capture_gain, vts, vts_extra, denoise,
        naive_exposure, banding_steps,
        skipped, error
    FROM transitions
    ORDER BY timestamp DESC, rowid DESC
    LIMIT ?`

	selectClampsSQL = `
    SELECT kind, requested, applied
    FROM clamp_events
    WHERE transition_id = ?
    ORDER BY rowid`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating journal database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Journal schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for an empty database
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
