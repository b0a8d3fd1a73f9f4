package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/sensorctl/internal/config"
	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, args ...string) *app {
	t.Helper()

	args = append([]string{"--simulate", "--capture-hold", "1ms"}, args...)
	cfg, err := config.Load(
		config.WithConfigFile(""),
		config.WithEnvPrefix("SENSORCTL_TEST_CMD"),
		config.WithArgs(args),
	)
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.cleanup)

	return a
}

func TestCommand(t *testing.T) {
	assert.Equal(t, cmdRoundTrip, command(nil))
	assert.Equal(t, cmdInspect, command([]string{"inspect", "extra"}))
}

func TestRoundTripSimulated(t *testing.T) {
	journalDB := filepath.Join(t.TempDir(), "journal.db")
	a := newTestApp(t, "--journal", "--journal-db", journalDB)

	require.NoError(t, a.run(context.Background(), cmdRoundTrip))
	assert.Equal(t, sensor.StatePreview, a.controller.State())

	recent, err := a.journal.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	capture := recent[1]
	assert.Equal(t, "to_capture", capture.Direction)
	assert.Equal(t, "ok", capture.Outcome)
	require.NotNil(t, capture.Capture)
	assert.Equal(t, uint32(488), capture.Capture.ExposureLines)
	assert.Equal(t, uint32(300), capture.Preview.FPSx10)

	assert.Equal(t, "to_preview", recent[0].Direction)

	var out bytes.Buffer
	require.NoError(t, a.inspect(context.Background(), &out))
	assert.Contains(t, out.String(), "30.0 fps")
	assert.Contains(t, out.String(), "976.00 lines")
	assert.Contains(t, out.String(), "to_capture ok 2592x1936")
}

func TestHoldCaptureReturnsOnCancel(t *testing.T) {
	a := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	require.NoError(t, a.run(ctx, cmdCapture))
	assert.Equal(t, sensor.StatePreview, a.controller.State())
}

func TestUnknownCommand(t *testing.T) {
	a := newTestApp(t)

	err := a.run(context.Background(), "burst")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestTransitionRecord(t *testing.T) {
	report := &sensor.TransitionReport{
		Direction:  sensor.DirectionToCapture,
		Resolution: sensor.CaptureResolution,
		Preview:    sensor.ExposureGainState{Exposure: 0x3d00, Gain: 0x20},
		Result: &sensor.CaptureResult{
			Exposure: 7872,
			Gain:     40,
			Clamps:   []sensor.ClampEvent{{Kind: sensor.ClampFrameLimit, Requested: 20000, Applied: 7872}},
		},
	}

	rec := transitionRecord(report, nil)
	assert.Equal(t, "to_capture", rec.Direction)
	assert.Equal(t, "ok", rec.Outcome)
	assert.Equal(t, uint32(0x3d00), rec.Preview.Exposure)
	require.NotNil(t, rec.Capture)
	assert.Equal(t, uint8(40), rec.Capture.Gain)
	require.Len(t, rec.Clamps, 1)
	assert.Equal(t, "frame_limit", rec.Clamps[0].Kind)

	report.Skipped = "timing_unavailable"
	assert.Equal(t, "skipped", transitionRecord(report, nil).Outcome)

	failed := transitionRecord(report, errors.New().New(errors.ErrEnterCapture))
	assert.Equal(t, "failed", failed.Outcome)
	assert.NotEmpty(t, failed.Error)
}
