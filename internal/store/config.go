package store

import "codeberg.org/mutker/mcslog/internal/errors"

const (
	// File system permissions and paths
	defaultDirPerm   = 0o755
	defaultBatchSize = 5000
	backupDirName    = "backups"
)

type Config struct {
	DBPath          string
	BatchSize       int
	BackupOnMigrate bool
	Enabled         bool
}

func DefaultConfig() Config {
	return Config{
		BatchSize:       defaultBatchSize,
		BackupOnMigrate: true,
		Enabled:         false, // Disabled unless a database path is configured
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if the store is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "batch_size",
			Value: c.BatchSize,
		})
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
