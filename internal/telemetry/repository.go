package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/logger"
	"codeberg.org/mutker/thermals/internal/sensor"
	_ "github.com/mattn/go-sqlite3"
)

type row struct {
	recordedAt int64
	reading    sensor.Reading
}

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []row
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closeOnce     sync.Once
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	// Validate if schema is current, with backup if needed
	if err := ValidateAndUpdateSchema(db, cfg, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Int("batch_timeout", cfg.BatchTimeout).
		Msg("Telemetry repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]row, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	// Start background goroutine for periodic flushing if batching is enabled
	if cfg.BatchSize > 0 && cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

func (r *repository) Record(readings []sensor.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	for _, reading := range readings {
		r.buffer = append(r.buffer, row{recordedAt: now, reading: reading})
	}

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

func (r *repository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.close()
	})

	return err
}

func (r *repository) close() error {
	// Signal the flusher goroutine to stop and wait for its final flush
	close(r.shutdownChan)
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}
	<-r.flushDoneChan

	r.mu.Lock()
	flushErr := r.flush()
	r.mu.Unlock()
	if flushErr != nil {
		r.logger.Error().Err(flushErr).Msg("Failed to flush telemetry on close")
	}

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("Telemetry repository closed gracefully")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Debug().Err(err).Msg("Periodic telemetry flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	err := withTx(r.db, r.logger, ErrTransactionFailed, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(insertSampleSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, entry := range r.buffer {
			if _, err := stmt.Exec(
				entry.recordedAt,
				entry.reading.Time,
				string(entry.reading.Sensor),
				entry.reading.Unit.Key(),
				entry.reading.Value,
			); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Int("records", len(r.buffer)).Msg("Failed to flush samples")
		return err
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed samples to database")
	r.buffer = r.buffer[:0]

	return nil
}
