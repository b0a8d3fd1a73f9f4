package sensor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQ4Exposure(t *testing.T) {
	e := UnpackQ4Exposure(0x00, 0x3d, 0x08)

	assert.Equal(t, Q4Exposure(0x3d08), e)
	assert.Equal(t, uint32(976), e.Lines())
	assert.Equal(t, "976.50 lines", e.String())

	high, mid, low := e.Pack()
	assert.Equal(t, []byte{0x00, 0x3d, 0x08}, []byte{high, mid, low})

	assert.Equal(t, Q4Exposure(7808), Q4FromLines(488))
}

func TestQ4ExposureKeepsReservedBits(t *testing.T) {
	e := UnpackQ4Exposure(0xf1, 0x22, 0x33)

	high, mid, low := e.Pack()
	assert.Equal(t, []byte{0xf1, 0x22, 0x33}, []byte{high, mid, low})
}

func TestExposureGainRoundTrip(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	want := ExposureGainState{Exposure: UnpackQ4Exposure(0x01, 0x02, 0x03), Gain: 0x44}
	require.NoError(t, WriteExposureGain(ctx, bus, want))

	assert.Equal(t,
		[]uint16{regGain, regExposureLo, regExposureMd, regExposureHi},
		writtenAddrs(bus.Writes()),
	)

	got, err := ReadExposureGain(ctx, bus)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadExposureGainError(t *testing.T) {
	bus := NewMemoryBus()
	bus.FailNext(regExposureMd, 1)

	_, err := ReadExposureGain(context.Background(), bus)
	assert.Error(t, err)
}
