package sensor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureGain(t *testing.T) {
	tests := []struct {
		gain, lum, want uint8
	}{
		// very bright
		{0x50, 0xb0, 0x20},
		{0x30, 0xb0, 0x18},
		{0x20, 0xb0, 0x10},
		// bright, 0xa0 itself falls through
		{0x50, 0xa0, 0x30},
		{0x30, 0x90, 0x28},
		{0x10, 0x90, 0x20},
		// mid
		{0x90, 0x50, 0x30},
		{0x50, 0x50, 0x28},
		{0x30, 0x50, 0x30},
		{0x08, 0x50, 0x10},
		// dim
		{0x90, 0x30, 0x18},
		{0x61, 0x30, 0x10},
		{0x40, 0x30, 0x20},
		{0x18, 0x30, 0x18},
		// dark
		{0xf8, 0x10, 0x10},
		{0xe8, 0x10, 0x14},
		{0x20, 0x10, 0x18},
		{0x20, 0x00, 0x18},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("gain=%#x/lum=%#x", tt.gain, tt.lum), func(t *testing.T) {
			assert.Equal(t, tt.want, CaptureGain(tt.gain, tt.lum))
		})
	}
}

func TestCaptureGainNeverBelowUnity(t *testing.T) {
	for lum := 0; lum <= 0xff; lum++ {
		for g := 0; g <= 0xff; g++ {
			if got := CaptureGain(uint8(g), uint8(lum)); got < 0x10 {
				t.Fatalf("CaptureGain(%#x, %#x) = %#x", g, lum, got)
			}
		}
	}
}

func TestDenoiseLevel(t *testing.T) {
	assert.Equal(t, uint8(1), DenoiseLevel(0))
	assert.Equal(t, uint8(2), DenoiseLevel(0x10))
	assert.Equal(t, uint8(5), DenoiseLevel(0x20))
	assert.Equal(t, uint8(7), DenoiseLevel(40))
	assert.Equal(t, uint8(241), DenoiseLevel(0xf8))
}
