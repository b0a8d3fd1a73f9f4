package sensor

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/logger"
)

// TransitionReport describes one completed or attempted mode switch.
type TransitionReport struct {
	Direction  Direction
	Resolution Resolution
	StartedAt  time.Time
	Duration   time.Duration

	Luminance     uint8
	FlashFired    bool
	Preview       ExposureGainState
	PreviewTiming TimingState
	Result        *CaptureResult
	Skipped       string // why exposure sync was skipped, empty when applied
	Restored      *ExposureGainState
}

// previewSample is everything read from the sensor before leaving preview.
type previewSample struct {
	luminance  uint8
	state      ExposureGainState
	frameLines uint32
	timing     TimingState
	timingErr  error
}

// Controller runs the preview <-> capture state machine for one sensor.
// Register traffic is strictly ordered; calls are serialized by a mutex.
type Controller struct {
	mu sync.Mutex

	bus         RegisterBus
	modes       ModeWriter
	translator  *Translator
	flash       *FlashPolicy
	counters    Counters
	logger      logger.Logger
	masterClock uint64
	autoWB      bool

	state      State
	saved      *ExposureGainState
	flashFired bool
}

type ControllerOption func(*Controller)

func WithLogger(log logger.Logger) ControllerOption {
	return func(c *Controller) { c.logger = log }
}

func WithCounters(counters Counters) ControllerOption {
	return func(c *Controller) { c.counters = counters }
}

func WithFlash(policy *FlashPolicy) ControllerOption {
	return func(c *Controller) { c.flash = policy }
}

func WithMasterClock(hz uint64) ControllerOption {
	return func(c *Controller) { c.masterClock = hz }
}

// WithAutoWB unlocks white balance again when returning to preview.
func WithAutoWB(enabled bool) ControllerOption {
	return func(c *Controller) { c.autoWB = enabled }
}

func NewController(bus RegisterBus, modes ModeWriter, translator *Translator, opts ...ControllerOption) *Controller {
	c := &Controller{
		bus:         bus,
		modes:       modes,
		translator:  translator,
		counters:    nopCounters{},
		logger:      logger.Nop(),
		masterClock: DefaultMasterClock,
		autoWB:      true,
		state:       StatePreview,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SavedPreview returns the preview operating point that ReturnToPreview will
// restore, if a capture is in progress.
func (c *Controller) SavedPreview() (ExposureGainState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.saved == nil {
		return ExposureGainState{}, false
	}

	return *c.saved, true
}

// EnterCapture switches from preview to the capture resolution, carrying the
// preview exposure over to the capture timing. On a transport error the
// controller stays in preview with auto exposure and gain off; the caller is
// expected to return the sensor to a known mode.
func (c *Controller) EnterCapture(ctx context.Context, res Resolution) (*TransitionReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	errFactory := errors.New()
	report := &TransitionReport{Direction: DirectionToCapture, Resolution: res, StartedAt: time.Now()}

	if c.state != StatePreview {
		return report, errFactory.WithData(ErrInvalidTransition, struct {
			From, Want string
		}{c.state.String(), StatePreview.String()})
	}

	c.state = StateTransitioningToCapture

	if err := c.enterCapture(ctx, res, report); err != nil {
		c.state = StatePreview
		if flashErr := c.flashOff(ctx); flashErr != nil {
			c.logger.Warn().Err(flashErr).Msg("Failed to release flash")
		}
		c.counters.Transition(string(DirectionToCapture), "failed")
		return report, errFactory.Wrap(errors.ErrEnterCapture, err)
	}

	c.state = StateCapture
	report.Duration = time.Since(report.StartedAt)
	c.counters.Transition(string(DirectionToCapture), outcome(report))

	c.logger.Info().
		Str("resolution", res.String()).
		Str("preview_exposure", report.Preview.Exposure.String()).
		Uint8("preview_gain", report.Preview.Gain).
		Bool("flash", report.FlashFired).
		Str("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("Entered capture mode")

	return report, nil
}

func (c *Controller) enterCapture(ctx context.Context, res Resolution, report *TransitionReport) error {
	// The sensor's own AE loop must not race the manual writes below
	if err := c.setAutoExposure(ctx, false); err != nil {
		return err
	}
	if err := c.setAutoGain(ctx, false); err != nil {
		return err
	}

	syncExposure := res.Width > SVGAWidth

	var sample *previewSample
	if syncExposure {
		fire := false
		if c.flash.Enabled() {
			lum := uint8(0)
			if c.flash.NeedsLuminance() {
				var err error
				if lum, err = ReadLuminance(ctx, c.bus); err != nil {
					return err
				}
			}
			fire = c.flash.Decide(lum)
		}

		var err error
		if sample, err = c.samplePreview(ctx); err != nil {
			return err
		}
		saved := sample.state
		c.saved = &saved

		if fire {
			// Marked before Fire so any failure below still releases the torch
			c.flashFired = true
			if err := c.flash.Fire(ctx); err != nil {
				return err
			}
			report.FlashFired = true

			// Same registers under flash; AE is locked so only luminance moves
			if sample, err = c.samplePreview(ctx); err != nil {
				return err
			}
		}
	} else {
		state, err := ReadExposureGain(ctx, c.bus)
		if err != nil {
			return err
		}
		c.saved = &state
	}

	report.Preview = *c.saved

	if err := c.setAutoWB(ctx, false); err != nil {
		return err
	}

	if err := c.modes.Apply(ctx, c.bus, ModeCapture, res); err != nil {
		return err
	}

	if syncExposure {
		report.Luminance = sample.luminance
		report.PreviewTiming = sample.timing

		if err := c.applyCaptureExposure(ctx, sample, report); err != nil {
			return err
		}
	} else {
		report.Skipped = "narrow_resolution"
	}

	if c.translator.Config().LowSpeed {
		if err := c.slowSystemClock(ctx); err != nil {
			return err
		}
	}

	return nil
}

// samplePreview reads luminance, the preview exposure/gain and the preview
// timing in that order. A timing guard is kept in the sample, not returned.
func (c *Controller) samplePreview(ctx context.Context) (*previewSample, error) {
	s := &previewSample{}

	var err error
	if s.luminance, err = ReadLuminance(ctx, c.bus); err != nil {
		return nil, err
	}

	if s.state, err = ReadExposureGain(ctx, c.bus); err != nil {
		return nil, err
	}

	if s.frameLines, err = readFrameLines(ctx, c.bus); err != nil {
		return nil, err
	}

	s.timing, err = ReadTiming(ctx, c.bus, c.masterClock)
	if err != nil {
		if !IsGuard(err) {
			return nil, err
		}
		s.timingErr = err
	}

	c.logger.Debug().
		Uint8("luminance", s.luminance).
		Str("exposure", s.state.Exposure.String()).
		Uint8("gain", s.state.Gain).
		Uint32("frame_lines", s.frameLines).
		Uint32("hts", s.timing.HTS).
		Uint64("pclk", s.timing.PixelClockHz).
		Uint32("fps_x10", s.timing.FPSx10()).
		Msg("Sampled preview")

	return s, nil
}

// applyCaptureExposure translates the sample and writes the capture
// registers. Guard failures skip the writes and are not errors.
func (c *Controller) applyCaptureExposure(ctx context.Context, s *previewSample, report *TransitionReport) error {
	if s.timingErr != nil {
		c.skip(report, "timing_unavailable", s.timingErr)
		return nil
	}

	result, err := c.translator.Translate(TranslateInput{
		Preview:           s.state,
		PreviewFrameLines: s.frameLines,
		PreviewFPSx10:     s.timing.FPSx10(),
		Luminance:         s.luminance,
	})
	if err != nil {
		if IsGuard(err) {
			c.skip(report, "exposure_unavailable", err)
			return nil
		}
		return err
	}

	for _, clamp := range result.Clamps {
		c.counters.Clamp(string(clamp.Kind))
		c.logger.Warn().
			Str("kind", string(clamp.Kind)).
			Uint64("requested", clamp.Requested).
			Uint64("applied", clamp.Applied).
			Msg("Capture operating point clamped")
	}

	report.Result = &result

	if err := c.setDenoise(ctx, result.Denoise); err != nil {
		return err
	}
	if err := writePair(ctx, c.bus, regVTSHi, regVTSLo, result.EffectiveVTS); err != nil {
		return err
	}
	if err := writePair(ctx, c.bus, regVTSExtraHi, regVTSExtraLo, result.VTSExtra); err != nil {
		return err
	}
	if err := WriteExposureGain(ctx, c.bus, result.State()); err != nil {
		return err
	}

	c.logger.Debug().
		Uint32("exposure", result.Exposure).
		Uint8("gain", result.Gain).
		Uint32("vts", result.EffectiveVTS).
		Uint32("vts_extra", result.VTSExtra).
		Uint8("denoise", result.Denoise).
		Uint64("banding_steps", result.BandingSteps).
		Msg("Capture exposure written")

	return nil
}

// ReturnToPreview loads the preview mode and restores the saved preview
// exposure and gain exactly, then hands control back to the AE loop.
func (c *Controller) ReturnToPreview(ctx context.Context, res Resolution) (*TransitionReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	errFactory := errors.New()
	report := &TransitionReport{Direction: DirectionToPreview, Resolution: res, StartedAt: time.Now()}

	if c.state != StateCapture {
		return report, errFactory.WithData(ErrInvalidTransition, struct {
			From, Want string
		}{c.state.String(), StateCapture.String()})
	}

	c.state = StateTransitioningToPreview

	if err := c.returnToPreview(ctx, res, report); err != nil {
		c.state = StateCapture
		c.counters.Transition(string(DirectionToPreview), "failed")
		return report, errFactory.Wrap(errors.ErrReturnPreview, err)
	}

	c.saved = nil
	c.state = StatePreview
	report.Duration = time.Since(report.StartedAt)
	c.counters.Transition(string(DirectionToPreview), "ok")

	c.logger.Info().
		Str("resolution", res.String()).
		Dur("duration", report.Duration).
		Msg("Returned to preview mode")

	return report, nil
}

func (c *Controller) returnToPreview(ctx context.Context, res Resolution, report *TransitionReport) error {
	if err := c.flashOff(ctx); err != nil {
		return err
	}

	if err := c.modes.Apply(ctx, c.bus, ModePreview, res); err != nil {
		return err
	}

	if c.saved != nil {
		if err := WriteExposureGain(ctx, c.bus, *c.saved); err != nil {
			return err
		}
		restored := *c.saved
		report.Restored = &restored
		report.Preview = restored
	}

	if err := c.setAutoExposure(ctx, true); err != nil {
		return err
	}
	if err := c.setAutoGain(ctx, true); err != nil {
		return err
	}

	if c.autoWB {
		if err := c.setAutoWB(ctx, true); err != nil {
			return err
		}
	}

	return nil
}

// Reset loads the preview mode and hands exposure, gain and white balance back
// to the sensor regardless of the current state. It is the way back to a known
// state after a failed transition; any saved preview point is discarded.
func (c *Controller) Reset(ctx context.Context, res Resolution) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	errFactory := errors.New()

	if err := c.flashOff(ctx); err != nil {
		return errFactory.Wrap(errors.ErrRestoreAutoAEC, err)
	}

	if err := c.modes.Apply(ctx, c.bus, ModePreview, res); err != nil {
		return errFactory.Wrap(errors.ErrRestoreAutoAEC, err)
	}

	for _, set := range []func(context.Context, bool) error{c.setAutoExposure, c.setAutoGain, c.setAutoWB} {
		if err := set(ctx, true); err != nil {
			return errFactory.Wrap(errors.ErrRestoreAutoAEC, err)
		}
	}

	c.saved = nil
	c.state = StatePreview

	c.logger.Info().Str("resolution", res.String()).Msg("Sensor reset to preview")

	return nil
}

func (c *Controller) skip(report *TransitionReport, reason string, err error) {
	report.Skipped = reason
	c.counters.GuardSkip(reason)
	c.logger.Warn().Err(err).Str("reason", reason).Msg("Skipping capture exposure sync")
}

func (c *Controller) flashOff(ctx context.Context) error {
	if !c.flashFired {
		return nil
	}

	if err := c.flash.Release(ctx); err != nil {
		return err
	}
	c.flashFired = false

	return nil
}

func (c *Controller) setAutoExposure(ctx context.Context, auto bool) error {
	return updateBits(ctx, c.bus, regAECManual, aecManualBit, !auto)
}

func (c *Controller) setAutoGain(ctx context.Context, auto bool) error {
	return updateBits(ctx, c.bus, regAECManual, agcManualBit, !auto)
}

func (c *Controller) setAutoWB(ctx context.Context, auto bool) error {
	return updateBits(ctx, c.bus, regAWBManual, awbManualBit, !auto)
}

func (c *Controller) setDenoise(ctx context.Context, level uint8) error {
	if err := updateBits(ctx, c.bus, regDenoiseCtl, denoiseManualBit, true); err != nil {
		return err
	}

	return c.bus.WriteRegister(ctx, regDenoise, level)
}

// slowSystemClock doubles the system divider nibble for low speed capture.
func (c *Controller) slowSystemClock(ctx context.Context) error {
	v, err := c.bus.ReadRegister(ctx, regPLLSysDiv)
	if err != nil {
		return err
	}

	return c.bus.WriteRegister(ctx, regPLLSysDiv, (v&0x0f)|((v&0xf0)*2))
}

func outcome(report *TransitionReport) string {
	if report.Skipped != "" {
		return "skipped"
	}

	return "ok"
}
