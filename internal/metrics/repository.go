package metrics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/logger"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []*Transition
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

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

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_foreign_keys=1"
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
		Msg("Journal repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]*Transition, 0, max(cfg.BatchSize, 1)),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	// Periodic flushing only matters when records are buffered
	if cfg.BatchSize > 1 && cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

func (r *repository) Record(t *Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, t)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

// Recent returns up to limit transitions, newest first. Buffered records are
// flushed before reading.
func (r *repository) Recent(ctx context.Context, limit int) ([]Transition, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.flush(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, selectRecentSQL, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	for i := range transitions {
		if transitions[i].Clamps, err = r.clamps(ctx, transitions[i].ID); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	return transitions, nil
}

func (r *repository) Close() error {
	if r.flushTicker != nil {
		close(r.shutdownChan)
		r.flushTicker.Stop()
	}

	// Wait for the flusher to finish its final flush
	<-r.flushDoneChan

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.flush(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to flush journal on close")
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

	r.logger.Debug().Msg("Journal repository closed")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic journal flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush writes the buffer in one transaction. Callers hold r.mu.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	rollback := func(cause error) error {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, cause)
	}

	insertTransition, err := tx.Prepare(insertTransitionSQL)
	if err != nil {
		return rollback(err)
	}
	defer insertTransition.Close()

	insertClamp, err := tx.Prepare(insertClampSQL)
	if err != nil {
		return rollback(err)
	}
	defer insertClamp.Close()

	for _, t := range r.buffer {
		if _, err := insertTransition.Exec(transitionValues(t)...); err != nil {
			return rollback(err)
		}

		for _, c := range t.Clamps {
			if _, err := insertClamp.Exec(t.ID.String(), c.Kind, int64(c.Requested), int64(c.Applied)); err != nil {
				return rollback(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed transitions to journal")
	r.buffer = r.buffer[:0]

	return nil
}

func (r *repository) clamps(ctx context.Context, id uuid.UUID) ([]Clamp, error) {
	rows, err := r.db.QueryContext(ctx, selectClampsSQL, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clamps []Clamp
	for rows.Next() {
		var c Clamp
		var requested, applied int64
		if err := rows.Scan(&c.Kind, &requested, &applied); err != nil {
			return nil, err
		}
		c.Requested, c.Applied = uint64(requested), uint64(applied)
		clamps = append(clamps, c)
	}

	return clamps, rows.Err()
}

func transitionValues(t *Transition) []any {
	values := []any{
		t.ID.String(),
		t.Timestamp.UnixMicro(),
		t.Direction,
		t.Outcome,
		int64(t.Width),
		int64(t.Height),
		t.Duration.Microseconds(),
		int64(t.Luminance),
		int64(boolToInt(t.FlashFired)),
		int64(t.Preview.Exposure),
		int64(t.Preview.Gain),
		int64(t.Preview.FPSx10),
	}

	if c := t.Capture; c != nil {
		values = append(values,
			int64(c.ExposureLines),
			int64(c.Gain),
			int64(c.VTS),
			int64(c.VTSExtra),
			int64(c.Denoise),
			int64(c.NaiveExposure),
			int64(c.BandingSteps),
		)
	} else {
		values = append(values, nil, nil, nil, nil, nil, nil, nil)
	}

	return append(values, t.Skipped, t.Error)
}

func scanTransition(rows *sql.Rows) (Transition, error) {
	var (
		t                                  Transition
		id                                 string
		ts, durationUS                     int64
		width, height, luminance, flash    int64
		previewExposure, previewGain, fps  int64
		exposure, gain, vts, extra, dnoise sql.NullInt64
		naive, steps                       sql.NullInt64
	)

	if err := rows.Scan(
		&id, &ts, &t.Direction, &t.Outcome,
		&width, &height, &durationUS, &luminance, &flash,
		&previewExposure, &previewGain, &fps,
		&exposure, &gain, &vts, &extra, &dnoise,
		&naive, &steps,
		&t.Skipped, &t.Error,
	); err != nil {
		return t, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return t, err
	}

	t.ID = parsed
	t.Timestamp = time.UnixMicro(ts)
	t.Width, t.Height = uint32(width), uint32(height)
	t.Duration = time.Duration(durationUS) * time.Microsecond
	t.Luminance = uint8(luminance)
	t.FlashFired = flash == 1
	t.Preview = ExposurePoint{Exposure: uint32(previewExposure), Gain: uint8(previewGain), FPSx10: uint32(fps)}

	if exposure.Valid {
		t.Capture = &CapturePoint{
			ExposureLines: uint32(exposure.Int64),
			Gain:          uint8(gain.Int64),
			VTS:           uint32(vts.Int64),
			VTSExtra:      uint32(extra.Int64),
			Denoise:       uint8(dnoise.Int64),
			NaiveExposure: uint64(naive.Int64),
			BandingSteps:  uint64(steps.Int64),
		}
	}

	return t, nil
}
