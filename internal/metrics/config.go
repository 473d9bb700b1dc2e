package metrics

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/nvidiapl/internal/errors"
)

const (
	// File system permissions
	defaultDirPerm = 0o755

	defaultBatchSize    = 10
	defaultBatchTimeout = 30 * time.Second
	backupDirName       = "backups"
)

type Config struct {
	DBPath  string
	Enabled bool

	// BackupDir receives a copy of the database before an incompatible
	// schema is replaced. Empty means a backups directory next to DBPath.
	BackupDir string

	// Samples are written once BatchSize are buffered or BatchTimeout has
	// passed, whichever comes first. A BatchSize of 1 writes immediately.
	BatchSize    int
	BatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "batch size and timeout must not be negative")
	}

	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}

	return filepath.Join(filepath.Dir(c.DBPath), backupDirName)
}
