package metrics

import (
	"path/filepath"

	"codeberg.org/mutker/sensorctl/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/sensorctl/journal.db"
	defaultBatchSize    = 1
	defaultBatchTimeout = 5
)

type Config struct {
	DBPath          string
	BackupOnMigrate bool
	Enabled         bool
	BatchSize       int
	BatchTimeout    int // seconds
}

func DefaultConfig() Config {
	return Config{
		DBPath:          defaultDBPath,
		BackupOnMigrate: true,
		Enabled:         false, // Disabled by default
		BatchSize:       defaultBatchSize,
		BatchTimeout:    defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if the journal is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}

	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize, BatchTimeout int
		}{c.BatchSize, c.BatchTimeout})
	}

	return nil
}

// backupDir keeps migration backups next to the database.
func (c Config) backupDir() string {
	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
