package sensor

import (
	"context"
	"fmt"
)

// RegisterBus is a byte-oriented register transport with 16-bit addresses.
type RegisterBus interface {
	ReadRegister(ctx context.Context, addr uint16) (byte, error)
	WriteRegister(ctx context.Context, addr uint16, value byte) error
}

// ModeWriter loads the register set of a sensor mode (format, window, PLL).
type ModeWriter interface {
	Apply(ctx context.Context, bus RegisterBus, mode Mode, res Resolution) error
}

// Torch drives the flash LED.
type Torch interface {
	On(ctx context.Context) error
	Off(ctx context.Context) error
}

// Counters receives countable events; telemetry.Collector implements it.
type Counters interface {
	Transition(direction, outcome string)
	Clamp(kind string)
	GuardSkip(reason string)
	BusRetry(op string)
}

type nopCounters struct{}

func (nopCounters) Transition(string, string) {}
func (nopCounters) Clamp(string)              {}
func (nopCounters) GuardSkip(string)          {}
func (nopCounters) BusRetry(string)           {}

// Domain types
type (
	Mode      int
	State     int
	Direction string

	Resolution struct {
		Width, Height uint32
	}

	RegisterValue struct {
		Addr  uint16
		Value byte
	}
)

const (
	ModePreview Mode = iota
	ModeCapture
)

const (
	StatePreview State = iota
	StateTransitioningToCapture
	StateCapture
	StateTransitioningToPreview
)

const (
	DirectionToCapture Direction = "to_capture"
	DirectionToPreview Direction = "to_preview"
)

func (m Mode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeCapture:
		return "capture"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (s State) String() string {
	switch s {
	case StatePreview:
		return "preview"
	case StateTransitioningToCapture:
		return "transitioning_to_capture"
	case StateCapture:
		return "capture"
	case StateTransitioningToPreview:
		return "transitioning_to_preview"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
