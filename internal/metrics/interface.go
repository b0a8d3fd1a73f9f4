package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder is what the CLI hands every mode transition to.
type Recorder interface {
	Record(ctx context.Context, t *Transition) error
	Recent(ctx context.Context, limit int) ([]Transition, error)
	Close() error
}

// Repository defines the interface for transition storage
type Repository interface {
	Record(t *Transition) error
	Recent(ctx context.Context, limit int) ([]Transition, error)
	Close() error
}

// Transition is one journaled preview <-> capture switch.
type Transition struct {
	ID         uuid.UUID
	Timestamp  time.Time
	Direction  string
	Outcome    string
	Width      uint32
	Height     uint32
	Duration   time.Duration
	Luminance  uint8
	FlashFired bool
	Skipped    string
	Error      string

	Preview ExposurePoint
	Capture *CapturePoint
	Clamps  []Clamp
}

// ExposurePoint is the raw preview register state.
type ExposurePoint struct {
	Exposure uint32 // Q4 register value
	Gain     uint8
	FPSx10   uint32
}

type CapturePoint struct {
	ExposureLines uint32
	Gain          uint8
	VTS           uint32
	VTSExtra      uint32
	Denoise       uint8
	NaiveExposure uint64
	BandingSteps  uint64
}

type Clamp struct {
	Kind      string
	Requested uint64
	Applied   uint64
}
