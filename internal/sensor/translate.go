package sensor

import (
	"codeberg.org/mutker/sensorctl/internal/errors"
)

const (
	// DefaultCaptureFPSx10 is the nominal capture rate, 7.5 fps.
	DefaultCaptureFPSx10 = 75
	// DefaultCaptureFrameLines is the nominal capture VTS.
	DefaultCaptureFrameLines = 1968
	// DefaultFrameLimit is the number of frames a capture exposure may span.
	DefaultFrameLimit = 4
	// DefaultManualGain is 1x.
	DefaultManualGain = 0x10
	// DefaultMaxGain is the largest gain the capture path programs.
	DefaultMaxGain = 0xf8

	// maxExposureLines is what VTS (16 bits) can stretch to.
	maxExposureLines = 0xffff
)

// GainPolicy selects how the capture gain is derived.
type GainPolicy int

const (
	// AutoLimitFrames picks gain from the luminance table and caps the
	// exposure at FrameLimit frames, raising gain instead.
	AutoLimitFrames GainPolicy = iota
	// ManualGain uses a fixed gain and scales exposure to match.
	ManualGain
)

func (p GainPolicy) String() string {
	if p == ManualGain {
		return "manual"
	}

	return "auto_limit_frames"
}

// ClampKind names a constraint that changed the requested operating point.
type ClampKind string

const (
	ClampFrameLimit  ClampKind = "frame_limit"
	ClampMaxGain     ClampKind = "max_gain"
	ClampMaxExposure ClampKind = "max_exposure"
	ClampMinExposure ClampKind = "min_exposure"
)

// ClampEvent records an infeasible request and what was applied instead.
type ClampEvent struct {
	Kind      ClampKind
	Requested uint64
	Applied   uint64
}

// TranslatorConfig holds the per-platform capture constants.
type TranslatorConfig struct {
	CaptureFPSx10     uint32
	CaptureFrameLines uint32
	NightMode         uint32 // 0 disables, otherwise multiplies the exposure
	BandFilterHz      int    // 50 or 60
	Policy            GainPolicy
	ManualGain        uint8
	MaxGain           uint8
	FrameLimit        uint32
	LowSpeed          bool // halves the capture frame rate
}

// DefaultTranslatorConfig returns the reference board's values.
func DefaultTranslatorConfig() TranslatorConfig {
	return TranslatorConfig{
		CaptureFPSx10:     DefaultCaptureFPSx10,
		CaptureFrameLines: DefaultCaptureFrameLines,
		BandFilterHz:      50,
		Policy:            AutoLimitFrames,
		ManualGain:        DefaultManualGain,
		MaxGain:           DefaultMaxGain,
		FrameLimit:        DefaultFrameLimit,
	}
}

func (c TranslatorConfig) Validate() error {
	errFactory := errors.New()

	invalid := func(field string, value any) error {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value any
		}{field, value})
	}

	switch {
	case c.CaptureFPSx10 == 0:
		return invalid("capture_fps", c.CaptureFPSx10)
	case c.CaptureFrameLines == 0 || c.CaptureFrameLines > maxExposureLines:
		return invalid("capture_lines", c.CaptureFrameLines)
	case c.BandFilterHz != 50 && c.BandFilterHz != 60:
		return invalid("band_filter", c.BandFilterHz)
	case c.Policy == ManualGain && c.ManualGain == 0:
		return invalid("manual_gain", c.ManualGain)
	case c.MaxGain == 0:
		return invalid("max_gain", c.MaxGain)
	case c.Policy == ManualGain && c.ManualGain > c.MaxGain:
		return invalid("manual_gain", c.ManualGain)
	case c.FrameLimit == 0:
		return invalid("frame_limit", c.FrameLimit)
	}

	return nil
}

// TranslateInput is the preview operating point sampled before the switch.
type TranslateInput struct {
	Preview           ExposureGainState
	PreviewFrameLines uint32 // VTS + extra at preview
	PreviewFPSx10     uint32
	Luminance         uint8
}

// CaptureResult is the capture operating point and everything derived with it.
type CaptureResult struct {
	Exposure     uint32 // lines
	Gain         uint8
	EffectiveVTS uint32
	VTSExtra     uint32
	Denoise      uint8

	NaiveExposure       uint64
	ExposureGainProduct uint64
	LinesPer10ms        uint64
	BandingSteps        uint64
	Clamps              []ClampEvent
}

// State returns the capture exposure/gain pair in register form.
func (r CaptureResult) State() ExposureGainState {
	return ExposureGainState{Exposure: Q4FromLines(r.Exposure), Gain: r.Gain}
}

// Clamped reports whether the given constraint was hit.
func (r CaptureResult) Clamped(kind ClampKind) bool {
	for _, c := range r.Clamps {
		if c.Kind == kind {
			return true
		}
	}

	return false
}

// Translator converts a preview operating point into capture register values.
type Translator struct {
	cfg TranslatorConfig
}

func NewTranslator(cfg TranslatorConfig) (*Translator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Translator{cfg: cfg}, nil
}

func (t *Translator) Config() TranslatorConfig {
	return t.cfg
}

// CaptureFPSx10 is the effective capture rate after the low speed halving.
func (t *Translator) CaptureFPSx10() uint32 {
	if t.cfg.LowSpeed {
		return t.cfg.CaptureFPSx10 / 2
	}

	return t.cfg.CaptureFPSx10
}

// LinesPer10ms is the banding step: how many capture lines (x1000) make up
// one 10 ms flicker half-period at 50 Hz, or 8.33 ms at 60 Hz.
func (t *Translator) LinesPer10ms() uint64 {
	base := uint64(t.CaptureFPSx10()) * uint64(t.cfg.CaptureFrameLines) * 1000
	if t.cfg.BandFilterHz == 60 {
		return base / 12000
	}

	return base / 10000
}

// Translate computes the capture exposure, gain and frame length.
//
// Scene brightness is proportional to gain x exposure, so the preview product
// is carried over after scaling exposure by the frame timing ratio. The
// banding step count is computed but exposure is not snapped to it; only the
// gain is rebalanced when the exposure is off a band boundary by more than
// 1/16 of a band.
func (t *Translator) Translate(in TranslateInput) (CaptureResult, error) {
	errFactory := errors.New()
	var r CaptureResult

	previewLines := uint64(in.Preview.Exposure.Lines())
	frameLines := uint64(in.PreviewFrameLines)
	r.LinesPer10ms = t.LinesPer10ms()

	if frameLines == 0 || previewLines == 0 || r.LinesPer10ms == 0 {
		return r, errFactory.WithData(ErrExposureUnavailable, struct {
			PreviewLines, PreviewFrameLines, LinesPer10ms uint64
		}{previewLines, frameLines, r.LinesPer10ms})
	}

	if in.PreviewFPSx10 == 0 {
		return r, errFactory.WithData(ErrDivideByZero, "preview frame rate is zero")
	}

	captureLines := uint64(t.cfg.CaptureFrameLines)
	factor := uint64(1)
	if t.cfg.NightMode > 0 {
		factor = uint64(t.cfg.NightMode)
	}

	r.NaiveExposure = factor * previewLines * uint64(t.CaptureFPSx10()) * captureLines /
		(frameLines * uint64(in.PreviewFPSx10))

	previewGain := uint64(in.Preview.Gain)
	maxGain := uint64(t.cfg.MaxGain)

	var exposure, gain uint64
	switch t.cfg.Policy {
	case ManualGain:
		gain = uint64(t.cfg.ManualGain)
		exposure = r.NaiveExposure * previewGain / gain
		r.ExposureGainProduct = exposure * gain
	default:
		gain = uint64(CaptureGain(in.Preview.Gain, in.Luminance))
		exposure = r.NaiveExposure * previewGain / gain
		r.ExposureGainProduct = exposure * gain

		limit := uint64(t.cfg.FrameLimit) * captureLines
		if exposure > limit {
			r.clamp(ClampFrameLimit, exposure, limit)
			// Integer division rounds the gain down, as the sensor driver does
			gain = r.ExposureGainProduct / limit
			exposure = limit
		}

		gain = r.clampGain(gain, maxGain)
	}

	if exposure > maxExposureLines {
		r.clamp(ClampMaxExposure, exposure, maxExposureLines)
		exposure = maxExposureLines
	}

	r.BandingSteps = 1
	spansBand := exposure*1000 > r.LinesPer10ms
	if spansBand {
		r.BandingSteps = exposure * 1000 / r.LinesPer10ms
	}

	if exposure == 0 {
		r.clamp(ClampMinExposure, 0, 1)
		exposure = 1
	}

	if spansBand && (exposure*1000-r.BandingSteps*r.LinesPer10ms)*16 > r.LinesPer10ms {
		gain = r.clampGain(r.ExposureGainProduct/exposure, maxGain)
	}

	r.Exposure = uint32(exposure)
	r.Gain = uint8(gain)

	if r.Exposure > t.cfg.CaptureFrameLines {
		r.EffectiveVTS = r.Exposure
		r.VTSExtra = r.Exposure - t.cfg.CaptureFrameLines
	} else {
		r.EffectiveVTS = t.cfg.CaptureFrameLines
		r.VTSExtra = 0
	}

	r.Denoise = DenoiseLevel(r.Gain)

	return r, nil
}

func (r *CaptureResult) clamp(kind ClampKind, requested, applied uint64) {
	r.Clamps = append(r.Clamps, ClampEvent{Kind: kind, Requested: requested, Applied: applied})
}

func (r *CaptureResult) clampGain(gain, maxGain uint64) uint64 {
	if gain > maxGain {
		r.clamp(ClampMaxGain, gain, maxGain)
		return maxGain
	}

	return gain
}
