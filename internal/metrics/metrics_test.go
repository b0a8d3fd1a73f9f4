package metrics_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/logger"
	"codeberg.org/mutker/sensorctl/internal/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) metrics.Config {
	t.Helper()

	cfg := metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "journal.db")

	return cfg
}

func captureTransition(ts time.Time) *metrics.Transition {
	return &metrics.Transition{
		Timestamp:  ts,
		Direction:  "to_capture",
		Outcome:    "ok",
		Width:      2592,
		Height:     1936,
		Duration:   1500 * time.Microsecond,
		Luminance:  0x90,
		FlashFired: true,
		Preview:    metrics.ExposurePoint{Exposure: 0x3d00, Gain: 0x20, FPSx10: 300},
		Capture: &metrics.CapturePoint{
			ExposureLines: 7872,
			Gain:          40,
			VTS:           7872,
			VTSExtra:      5904,
			Denoise:       7,
			NaiveExposure: 10000,
			BandingSteps:  533,
		},
		Clamps: []metrics.Clamp{{Kind: "frame_limit", Requested: 20000, Applied: 7872}},
	}
}

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()

	rec, err := metrics.NewService(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer rec.Close()

	start := time.Now().Truncate(time.Microsecond)
	capture := captureTransition(start)
	require.NoError(t, rec.Record(ctx, capture))
	assert.NotEqual(t, uuid.Nil, capture.ID)

	preview := &metrics.Transition{
		Timestamp: start.Add(time.Second),
		Direction: "to_preview",
		Outcome:   "ok",
		Width:     800,
		Height:    600,
		Preview:   metrics.ExposurePoint{Exposure: 0x3d00, Gain: 0x20},
	}
	require.NoError(t, rec.Record(ctx, preview))

	got, err := rec.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, preview.ID, got[0].ID)
	assert.Nil(t, got[0].Capture)
	assert.Empty(t, got[0].Clamps)

	assert.Equal(t, capture.ID, got[1].ID)
	assert.True(t, capture.Timestamp.Equal(got[1].Timestamp))
	assert.Equal(t, capture.Duration, got[1].Duration)
	assert.Equal(t, capture.Preview, got[1].Preview)
	assert.Equal(t, *capture.Capture, *got[1].Capture)
	assert.Equal(t, capture.Clamps, got[1].Clamps)
	assert.True(t, got[1].FlashFired)
}

func TestJournalBatching(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.BatchSize = 10
	cfg.BatchTimeout = 60

	rec, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Record(ctx, captureTransition(time.Now().Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, rec.Close())

	rec, err = metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)
	defer rec.Close()

	got, err := rec.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestJournalRejectsIncompleteTransition(t *testing.T) {
	rec, err := metrics.NewService(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer rec.Close()

	err = rec.Record(context.Background(), &metrics.Transition{Outcome: "ok"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidTransition))

	err = rec.Record(context.Background(), nil)
	assert.Error(t, err)
}

func TestJournalDisabled(t *testing.T) {
	cfg := metrics.DefaultConfig()
	cfg.DBPath = ""

	rec, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), captureTransition(time.Now())))
	got, err := rec.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, rec.Close())
}

func TestJournalInvalidConfig(t *testing.T) {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = ""

	_, err := metrics.NewService(cfg, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidDBPath))
}

func TestJournalMigratesOldSchema(t *testing.T) {
	cfg := testConfig(t)

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));
		CREATE TABLE transitions (id TEXT);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rec, err := metrics.NewService(cfg, logger.Nop())
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Record(context.Background(), captureTransition(time.Now())))

	backups, err := os.ReadDir(filepath.Join(filepath.Dir(cfg.DBPath), "backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "journal_v99_")
}
