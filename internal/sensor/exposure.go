package sensor

import (
	"context"
	"fmt"
)

// Q4Exposure is the exposure register value: line periods in Q4 fixed point
// (1 unit = 1/16 line), spread over 0x3500 (high), 0x3501 (mid), 0x3502 (low).
type Q4Exposure uint32

// Q4FromLines converts whole lines into a register value.
func Q4FromLines(lines uint32) Q4Exposure {
	return Q4Exposure(lines << 4)
}

// UnpackQ4Exposure assembles the value from the three exposure registers.
func UnpackQ4Exposure(high, mid, low byte) Q4Exposure {
	return Q4Exposure(uint32(high)<<16 | uint32(mid)<<8 | uint32(low))
}

// Lines drops the fractional nibble.
func (e Q4Exposure) Lines() uint32 {
	return uint32(e) >> 4
}

// Pack splits the value into the high, mid and low register bytes.
func (e Q4Exposure) Pack() (high, mid, low byte) {
	return byte(e >> 16), byte(e >> 8), byte(e)
}

func (e Q4Exposure) String() string {
	return fmt.Sprintf("%d.%02d lines", e.Lines(), (uint32(e)&0x0f)*100/16)
}

// ExposureGainState is a coupled exposure/analog gain operating point. Values
// are never mutated in place; each transition produces a new one.
type ExposureGainState struct {
	Exposure Q4Exposure
	Gain     uint8 // 1/16 x1 steps
}

// ReadLuminance returns the average luminance measured by the AE block.
func ReadLuminance(ctx context.Context, bus RegisterBus) (uint8, error) {
	return bus.ReadRegister(ctx, regLuminance)
}

// ReadExposureGain reads gain then exposure low, mid and high.
func ReadExposureGain(ctx context.Context, bus RegisterBus) (ExposureGainState, error) {
	var s ExposureGainState

	gain, err := bus.ReadRegister(ctx, regGain)
	if err != nil {
		return s, err
	}

	low, err := bus.ReadRegister(ctx, regExposureLo)
	if err != nil {
		return s, err
	}

	mid, err := bus.ReadRegister(ctx, regExposureMd)
	if err != nil {
		return s, err
	}

	high, err := bus.ReadRegister(ctx, regExposureHi)
	if err != nil {
		return s, err
	}

	return ExposureGainState{Exposure: UnpackQ4Exposure(high, mid, low), Gain: gain}, nil
}

// WriteExposureGain writes gain then exposure low, mid and high.
func WriteExposureGain(ctx context.Context, bus RegisterBus, s ExposureGainState) error {
	high, mid, low := s.Exposure.Pack()

	for _, rv := range []RegisterValue{
		{regGain, s.Gain},
		{regExposureLo, low},
		{regExposureMd, mid},
		{regExposureHi, high},
	} {
		if err := bus.WriteRegister(ctx, rv.Addr, rv.Value); err != nil {
			return err
		}
	}

	return nil
}
