package main

import (
	"codeberg.org/mutker/sensorctl/internal/metrics"
	"codeberg.org/mutker/sensorctl/internal/sensor"
)

func transitionRecord(report *sensor.TransitionReport, err error) *metrics.Transition {
	t := &metrics.Transition{
		Timestamp:  report.StartedAt,
		Direction:  string(report.Direction),
		Outcome:    "ok",
		Width:      report.Resolution.Width,
		Height:     report.Resolution.Height,
		Duration:   report.Duration,
		Luminance:  report.Luminance,
		FlashFired: report.FlashFired,
		Skipped:    report.Skipped,
		Preview: metrics.ExposurePoint{
			Exposure: uint32(report.Preview.Exposure),
			Gain:     report.Preview.Gain,
			FPSx10:   report.PreviewTiming.FPSx10(),
		},
	}

	switch {
	case err != nil:
		t.Outcome = "failed"
		t.Error = err.Error()
	case report.Skipped != "":
		t.Outcome = "skipped"
	}

	if r := report.Result; r != nil {
		t.Capture = &metrics.CapturePoint{
			ExposureLines: r.Exposure,
			Gain:          r.Gain,
			VTS:           r.EffectiveVTS,
			VTSExtra:      r.VTSExtra,
			Denoise:       r.Denoise,
			NaiveExposure: r.NaiveExposure,
			BandingSteps:  r.BandingSteps,
		}

		for _, c := range r.Clamps {
			t.Clamps = append(t.Clamps, metrics.Clamp{
				Kind:      string(c.Kind),
				Requested: c.Requested,
				Applied:   c.Applied,
			})
		}
	}

	return t
}
