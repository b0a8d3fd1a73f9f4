package sensor

import (
	"context"
	"testing"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestRetryBusRecovers(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBus(RegisterValue{regGain, 0x20})
	counters := &recordingCounters{}
	bus := NewRetryBus(mem, DefaultRetries, counters, nil)

	mem.FailNext(regGain, 2)
	v, err := bus.ReadRegister(ctx, regGain)
	require.NoError(t, err)
	assert.Equal(t, byte(0x20), v)

	mem.FailNext(regGain, 1)
	require.NoError(t, bus.WriteRegister(ctx, regGain, 0x30))
	assert.Equal(t, byte(0x30), mem.Get(regGain))

	assert.Equal(t, []string{"read", "read", "write"}, counters.retries)
}

func TestRetryBusGivesUp(t *testing.T) {
	mem := NewMemoryBus()
	mem.FailNext(regGain, 3)

	_, err := NewRetryBus(mem, DefaultRetries, nil, nil).ReadRegister(context.Background(), regGain)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "read 0x350b after 3 attempts")
}

func TestRetryBusCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mem := NewMemoryBus()
	err := NewRetryBus(mem, DefaultRetries, nil, nil).WriteRegister(ctx, regGain, 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTransport))
	assert.Empty(t, mem.Writes())
}

func TestUpdateBits(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(RegisterValue{regAECManual, 0x04})

	require.NoError(t, updateBits(ctx, bus, regAECManual, aecManualBit|agcManualBit, true))
	assert.Equal(t, byte(0x07), bus.Get(regAECManual))

	require.NoError(t, updateBits(ctx, bus, regAECManual, aecManualBit, false))
	assert.Equal(t, byte(0x06), bus.Get(regAECManual))
}

func TestI2CBus(t *testing.T) {
	ctx := context.Background()
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x3c, W: []byte{0x35, 0x03}, R: []byte{0x07}},
			{Addr: 0x3c, W: []byte{0x35, 0x03, 0x04}},
		},
	}
	bus := NewI2CBus(playback, 0x3c)

	v, err := bus.ReadRegister(ctx, regAECManual)
	require.NoError(t, err)
	assert.Equal(t, byte(0x07), v)

	require.NoError(t, bus.WriteRegister(ctx, regAECManual, 0x04))
	require.NoError(t, bus.Close())
	require.NoError(t, playback.Close())
}
