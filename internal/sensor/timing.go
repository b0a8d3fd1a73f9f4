package sensor

import (
	"context"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"periph.io/x/conn/v3/physic"
)

// TimingState is the line/frame timing of the sensor as currently programmed.
// It is read fresh before every use because the PLL changes per resolution.
type TimingState struct {
	HTS          uint32 // clock cycles per line
	VTS          uint32 // lines per frame
	VTSExtra     uint32 // extra lines added for long exposures
	PixelClockHz uint64
}

// FrameLines is the effective frame length including extra lines.
func (t TimingState) FrameLines() uint32 {
	return t.VTS + t.VTSExtra
}

func (t TimingState) PixelClock() physic.Frequency {
	return physic.Frequency(t.PixelClockHz) * physic.Hertz
}

// FPS returns whole frames per second, or 0 when the timing is unknown.
func (t TimingState) FPS() uint32 {
	d := uint64(t.FrameLines()) * uint64(t.HTS)
	if d == 0 {
		return 0
	}

	return uint32(t.PixelClockHz / d)
}

// FPSx10 returns the frame rate scaled by ten.
func (t TimingState) FPSx10() uint32 {
	d := uint64(t.FrameLines()) * uint64(t.HTS)
	if d == 0 {
		return 0
	}

	return uint32(t.PixelClockHz * 10 / d)
}

// ReadTiming reads HTS, VTS and extra VTS, then the pixel clock. When the
// line totals are zero it fails before touching the PLL. A PLL guard failure
// is returned together with the line totals so callers can still log them.
func ReadTiming(ctx context.Context, bus RegisterBus, masterClock uint64) (TimingState, error) {
	var t TimingState
	var err error

	if t.HTS, err = readPair(ctx, bus, regHTSHi, regHTSLo); err != nil {
		return t, err
	}
	if t.VTS, err = readPair(ctx, bus, regVTSHi, regVTSLo); err != nil {
		return t, err
	}
	if t.VTSExtra, err = readPair(ctx, bus, regVTSExtraHi, regVTSExtraLo); err != nil {
		return t, err
	}

	if t.HTS == 0 || t.FrameLines() == 0 {
		return t, errors.New().WithData(ErrDivideByZero, struct {
			HTS, VTS, VTSExtra uint32
		}{t.HTS, t.VTS, t.VTSExtra})
	}

	dividers, err := ReadPLLDividers(ctx, bus)
	if err != nil {
		return t, err
	}

	if t.PixelClockHz, err = PixelClock(masterClock, dividers); err != nil {
		return t, err
	}

	return t, nil
}

// readFrameLines reads VTS + extra VTS without the PLL.
func readFrameLines(ctx context.Context, bus RegisterBus) (uint32, error) {
	vts, err := readPair(ctx, bus, regVTSHi, regVTSLo)
	if err != nil {
		return 0, err
	}

	extra, err := readPair(ctx, bus, regVTSExtraHi, regVTSExtraLo)
	if err != nil {
		return 0, err
	}

	return vts + extra, nil
}
