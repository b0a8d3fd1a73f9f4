package sensor

import (
	"context"
	"testing"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelClock(t *testing.T) {
	tests := []struct {
		name     string
		dividers PLLDividers
		want     uint64
	}{
		{
			name:     "preview mode",
			dividers: PLLDividers{PreDiv: 3, Multiplier: 0x38, SysDiv: 1, PLLRDiv: 2, BitDiv: 8, SCLKRDiv: 1},
			want:     56000000,
		},
		{
			name:     "capture mode",
			dividers: PLLDividers{PreDiv: 3, Multiplier: 0x54, SysDiv: 2, PLLRDiv: 2, BitDiv: 8, SCLKRDiv: 1},
			want:     42000000,
		},
		{
			name:     "10 bit mode",
			dividers: PLLDividers{PreDiv: 3, Multiplier: 0x54, SysDiv: 2, PLLRDiv: 2, BitDiv: 10, SCLKRDiv: 1},
			want:     33600000,
		},
		{
			name:     "other bit mode divides by sclk only",
			dividers: PLLDividers{PreDiv: 3, Multiplier: 0x54, SysDiv: 2, PLLRDiv: 2, BitDiv: 0, SCLKRDiv: 1},
			want:     84000000,
		},
		{
			name:     "pre divider zero reads as one",
			dividers: PLLDividers{PreDiv: 0, Multiplier: 10, SysDiv: 1, PLLRDiv: 1, BitDiv: 0, SCLKRDiv: 1},
			want:     120000000,
		},
		{
			name:     "large multiplier is forced even",
			dividers: PLLDividers{PreDiv: 1, Multiplier: 201, SysDiv: 10, PLLRDiv: 1, BitDiv: 0, SCLKRDiv: 2},
			want:     60000000,
		},
		{
			name:     "sclk raw three divides by 24",
			dividers: PLLDividers{PreDiv: 1, Multiplier: 10, SysDiv: 1, PLLRDiv: 1, BitDiv: 0, SCLKRDiv: 3},
			want:     10000000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PixelClock(DefaultMasterClock, tt.dividers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPixelClockZeroDivider(t *testing.T) {
	tests := []struct {
		name     string
		dividers PLLDividers
	}{
		{"system divider", PLLDividers{PreDiv: 3, Multiplier: 0x38, SysDiv: 0, PLLRDiv: 2, BitDiv: 8, SCLKRDiv: 1}},
		{"sclk root divider", PLLDividers{PreDiv: 3, Multiplier: 0x38, SysDiv: 1, PLLRDiv: 2, BitDiv: 8, SCLKRDiv: 0}},
		{"pll root divider", PLLDividers{PreDiv: 3, Multiplier: 0x38, SysDiv: 1, PLLRDiv: 0, BitDiv: 8, SCLKRDiv: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PixelClock(DefaultMasterClock, tt.dividers)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, ErrDivideByZero))
			assert.True(t, IsGuard(err))
		})
	}
}

func TestReadPLLDividers(t *testing.T) {
	bus := NewMemoryBus(registers(DefaultModeTables(), ModePreview)...)

	d, err := ReadPLLDividers(context.Background(), bus)
	require.NoError(t, err)

	assert.Equal(t, PLLDividers{PreDiv: 3, Multiplier: 0x38, SysDiv: 1, PLLRDiv: 2, BitDiv: 8, SCLKRDiv: 1}, d)
}

func TestReadPLLDividersMasksFields(t *testing.T) {
	bus := NewMemoryBus(
		RegisterValue{regPLLPreDiv, 0xe5},
		RegisterValue{regPLLMult, 0x69},
		RegisterValue{regPLLSysDiv, 0x3f},
		RegisterValue{regPLLBitDiv, 0xfa},
		RegisterValue{regSCLKRDiv, 0xfe},
	)

	d, err := ReadPLLDividers(context.Background(), bus)
	require.NoError(t, err)

	assert.Equal(t, uint8(5), d.PreDiv)
	assert.Equal(t, uint8(0x69), d.Multiplier)
	assert.Equal(t, uint8(3), d.SysDiv)
	assert.Equal(t, uint8(1), d.PLLRDiv)
	assert.Equal(t, uint8(10), d.BitDiv)
	assert.Equal(t, uint8(2), d.SCLKRDiv)
}
