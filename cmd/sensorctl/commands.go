package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/sensor"
)

const (
	cmdRoundTrip = "roundtrip"
	cmdCapture   = "capture"
	cmdPreview   = "preview"
	cmdInspect   = "inspect"

	inspectJournalLimit = 5
)

func command(args []string) string {
	if len(args) == 0 {
		return cmdRoundTrip
	}

	return args[0]
}

func (a *app) run(ctx context.Context, cmd string) error {
	switch cmd {
	case cmdRoundTrip:
		return a.roundTrip(ctx)
	case cmdCapture:
		return a.holdCapture(ctx)
	case cmdPreview:
		return a.controller.Reset(ctx, a.preview)
	case cmdInspect:
		return a.inspect(ctx, os.Stdout)
	default:
		return errors.New().WithData(errors.ErrInvalidArgument, struct {
			Command string
			Valid   []string
		}{cmd, []string{cmdRoundTrip, cmdCapture, cmdPreview, cmdInspect}})
	}
}

// roundTrip switches to capture, holds for the configured time and comes back.
func (a *app) roundTrip(ctx context.Context) error {
	if err := a.enterCapture(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(a.cfg.CaptureHold)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	return a.returnToPreview()
}

// holdCapture stays in capture mode until interrupted.
func (a *app) holdCapture(ctx context.Context) error {
	if err := a.enterCapture(ctx); err != nil {
		return err
	}

	a.log.Info().Msg("Holding capture mode, interrupt to return to preview")
	<-ctx.Done()

	return a.returnToPreview()
}

func (a *app) enterCapture(ctx context.Context) error {
	report, err := a.controller.EnterCapture(ctx, a.capture)
	a.record(report, err)

	// A failed switch leaves auto exposure off; put the sensor back first
	if err != nil && !errors.HasCode(err, sensor.ErrInvalidTransition) {
		resetCtx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		defer cancel()

		if resetErr := a.controller.Reset(resetCtx, a.preview); resetErr != nil {
			logError(resetErr, "failed to reset sensor")
		}
	}

	return err
}

// returnToPreview runs on its own deadline so an interrupt still restores the
// preview operating point.
func (a *app) returnToPreview() error {
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	report, err := a.controller.ReturnToPreview(ctx, a.preview)
	a.record(report, err)

	return err
}

func (a *app) record(report *sensor.TransitionReport, err error) {
	if report == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	if recErr := a.journal.Record(ctx, transitionRecord(report, err)); recErr != nil {
		a.log.Warn().Err(recErr).Msg("Failed to journal transition")
	}
}

// inspect prints the sensor's current timing and exposure without changing it.
func (a *app) inspect(ctx context.Context, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	timing, err := sensor.ReadTiming(ctx, a.bus, a.masterClock)
	switch {
	case err == nil:
		fmt.Fprintf(w, "pixel clock\t%s\n", timing.PixelClock())
		fmt.Fprintf(w, "line length (HTS)\t%d\n", timing.HTS)
		fmt.Fprintf(w, "frame length (VTS)\t%d + %d\n", timing.VTS, timing.VTSExtra)
		fmt.Fprintf(w, "frame rate\t%d.%d fps\n", timing.FPSx10()/10, timing.FPSx10()%10)
	case sensor.IsGuard(err):
		fmt.Fprintf(w, "timing\tunavailable (%v)\n", err)
	default:
		return err
	}

	state, err := sensor.ReadExposureGain(ctx, a.bus)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "exposure\t%s\n", state.Exposure)
	fmt.Fprintf(w, "gain\t%d.%02dx\n", state.Gain/16, uint32(state.Gain%16)*100/16)

	lum, err := sensor.ReadLuminance(ctx, a.bus)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "luminance\t0x%02x\n", lum)

	recent, err := a.journal.Recent(ctx, inspectJournalLimit)
	if err != nil {
		return err
	}
	for _, t := range recent {
		fmt.Fprintf(w, "%s\t%s %s %dx%d\n", t.Timestamp.Format(time.RFC3339), t.Direction, t.Outcome, t.Width, t.Height)
	}

	return w.Flush()
}
