package sensor

import (
	"context"
	"time"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	host "periph.io/x/host/v3"
)

// FlashMode mirrors the V4L2 flash LED modes relevant to still capture.
type FlashMode int

const (
	FlashNone FlashMode = iota
	FlashOn
	FlashAuto
)

// DefaultFlashLevel is the luminance below which auto mode fires.
const DefaultFlashLevel = 0x1c

func ParseFlashMode(s string) (FlashMode, bool) {
	switch s {
	case "", "none":
		return FlashNone, true
	case "on":
		return FlashOn, true
	case "auto":
		return FlashAuto, true
	default:
		return FlashNone, false
	}
}

func (m FlashMode) String() string {
	switch m {
	case FlashOn:
		return "on"
	case FlashAuto:
		return "auto"
	default:
		return "none"
	}
}

// FlashPolicy decides whether a capture needs the flash and drives it.
type FlashPolicy struct {
	Mode   FlashMode
	Level  uint8
	Settle time.Duration
	Torch  Torch
}

// Enabled reports whether the policy can ever fire.
func (p *FlashPolicy) Enabled() bool {
	return p != nil && p.Mode != FlashNone && p.Torch != nil
}

// NeedsLuminance reports whether Decide depends on a luminance sample.
func (p *FlashPolicy) NeedsLuminance() bool {
	return p.Enabled() && p.Mode == FlashAuto
}

// Decide returns true when the flash should fire for this capture.
func (p *FlashPolicy) Decide(luminance uint8) bool {
	if !p.Enabled() {
		return false
	}

	switch p.Mode {
	case FlashOn:
		return true
	case FlashAuto:
		return luminance < p.Level
	default:
		return false
	}
}

// Fire turns the torch on and waits for the scene to settle. The torch is
// turned back off if ctx ends before the settle delay.
func (p *FlashPolicy) Fire(ctx context.Context) error {
	if err := p.Torch.On(ctx); err != nil {
		return errors.New().Wrap(ErrFlashFailed, err)
	}

	if p.Settle <= 0 {
		return nil
	}

	timer := time.NewTimer(p.Settle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// ctx is already done, so the torch is switched off without it
		if err := p.Torch.Off(context.Background()); err != nil {
			return errors.New().Wrap(ErrFlashFailed, err)
		}
		return errors.New().Wrap(ErrFlashFailed, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Release turns the torch off.
func (p *FlashPolicy) Release(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	if err := p.Torch.Off(ctx); err != nil {
		return errors.New().Wrap(ErrFlashFailed, err)
	}

	return nil
}

// GPIOTorch drives a flash LED from a GPIO line.
type GPIOTorch struct {
	pin gpio.PinOut
}

func NewGPIOTorch(pin gpio.PinOut) *GPIOTorch {
	return &GPIOTorch{pin: pin}
}

// OpenGPIOTorch looks the pin up by name in the periph registry.
func OpenGPIOTorch(name string) (*GPIOTorch, error) {
	errFactory := errors.New()

	if _, err := host.Init(); err != nil {
		return nil, errFactory.Wrap(ErrFlashFailed, err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errFactory.WithData(errors.ErrResourceNotFound, name)
	}

	return &GPIOTorch{pin: pin}, nil
}

func (t *GPIOTorch) On(_ context.Context) error {
	return t.pin.Out(gpio.High)
}

func (t *GPIOTorch) Off(_ context.Context) error {
	return t.pin.Out(gpio.Low)
}
