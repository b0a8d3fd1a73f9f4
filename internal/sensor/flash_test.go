package sensor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestParseFlashMode(t *testing.T) {
	for _, name := range []string{"none", "on", "auto"} {
		mode, ok := ParseFlashMode(name)
		require.True(t, ok)
		assert.Equal(t, name, mode.String())
	}

	_, ok := ParseFlashMode("strobe")
	assert.False(t, ok)
}

func TestFlashPolicyDecide(t *testing.T) {
	torch := NewGPIOTorch(&gpiotest.Pin{N: "FLASH", Num: 1})

	var nilPolicy *FlashPolicy
	assert.False(t, nilPolicy.Enabled())
	assert.False(t, nilPolicy.Decide(0))

	on := &FlashPolicy{Mode: FlashOn, Level: DefaultFlashLevel, Torch: torch}
	assert.True(t, on.Decide(0xff))
	assert.False(t, on.NeedsLuminance())

	auto := &FlashPolicy{Mode: FlashAuto, Level: DefaultFlashLevel, Torch: torch}
	assert.True(t, auto.NeedsLuminance())
	assert.True(t, auto.Decide(0x1b))
	assert.False(t, auto.Decide(0x1c))

	noTorch := &FlashPolicy{Mode: FlashOn}
	assert.False(t, noTorch.Decide(0))
}

func TestFlashPolicyFire(t *testing.T) {
	pin := &gpiotest.Pin{N: "FLASH", Num: 1}
	policy := &FlashPolicy{Mode: FlashOn, Settle: time.Millisecond, Torch: NewGPIOTorch(pin)}

	require.NoError(t, policy.Fire(context.Background()))
	assert.Equal(t, gpio.High, pin.Read())

	require.NoError(t, policy.Release(context.Background()))
	assert.Equal(t, gpio.Low, pin.Read())
}

func TestFlashPolicyFireCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pin := &gpiotest.Pin{N: "FLASH"}
	policy := &FlashPolicy{Mode: FlashOn, Settle: time.Hour, Torch: NewGPIOTorch(pin)}

	err := policy.Fire(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(ErrFlashFailed))
	assert.Equal(t, gpio.Low, pin.Read(), "Torch must not stay lit after a canceled settle")
}
