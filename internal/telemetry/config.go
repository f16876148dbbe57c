package telemetry

import "codeberg.org/mutker/thermals/internal/errors"

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/thermals/telemetry.db"
	defaultBatchSize    = 64
	defaultBatchTimeout = 10
	backupDirName       = "backups"
)

type Config struct {
	DBPath          string
	BatchSize       int
	BatchTimeout    int // seconds
	BackupOnMigrate bool
	Enabled         bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:          defaultDBPath,
		BatchSize:       defaultBatchSize,
		BatchTimeout:    defaultBatchTimeout,
		BackupOnMigrate: true,
		Enabled:         false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if telemetry is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout int
		}{
			BatchSize:    c.BatchSize,
			BatchTimeout: c.BatchTimeout,
		})
	}

	return nil
}
