package sensor

import (
	"context"

	"codeberg.org/mutker/sensorctl/internal/errors"
)

// SVGAWidth is the widest preview that skips exposure synchronization.
const SVGAWidth = 800

var (
	PreviewResolution = Resolution{Width: 800, Height: 600}
	CaptureResolution = Resolution{Width: 2592, Height: 1936}
)

// ModeTable is the register set loaded for one mode.
type ModeTable struct {
	Resolution Resolution
	Registers  []RegisterValue
}

// TableModeWriter loads fixed register tables per mode.
type TableModeWriter struct {
	tables map[Mode]ModeTable
}

func NewTableModeWriter(tables map[Mode]ModeTable) *TableModeWriter {
	return &TableModeWriter{tables: tables}
}

func (w *TableModeWriter) Apply(ctx context.Context, bus RegisterBus, mode Mode, res Resolution) error {
	errFactory := errors.New()

	table, ok := w.tables[mode]
	if !ok || table.Resolution != res {
		return errFactory.WithData(ErrUnsupportedMode, struct {
			Mode       string
			Resolution string
		}{mode.String(), res.String()})
	}

	for _, rv := range table.Registers {
		if err := bus.WriteRegister(ctx, rv.Addr, rv.Value); err != nil {
			return err
		}
	}

	return nil
}

// DefaultModeTables holds the clock and timing part of the SVGA preview
// (56 MHz pclk, 1896x984, 30 fps) and QSXGA capture (42 MHz pclk, 2844x1968,
// 7.5 fps) modes. Window and ISP settings are left to the platform layer.
func DefaultModeTables() map[Mode]ModeTable {
	return map[Mode]ModeTable{
		ModePreview: {
			Resolution: PreviewResolution,
			Registers: []RegisterValue{
				{regPLLBitDiv, 0x18},
				{regPLLSysDiv, 0x14},
				{regPLLMult, 0x38},
				{regPLLPreDiv, 0x13},
				{regSCLKRDiv, 0x01},
				{regHTSHi, 0x07},
				{regHTSLo, 0x68},
				{regVTSHi, 0x03},
				{regVTSLo, 0xd8},
				{regVTSExtraHi, 0x00},
				{regVTSExtraLo, 0x00},
			},
		},
		ModeCapture: {
			Resolution: CaptureResolution,
			Registers: []RegisterValue{
				{regPLLBitDiv, 0x18},
				{regPLLSysDiv, 0x21},
				{regPLLMult, 0x54},
				{regPLLPreDiv, 0x13},
				{regSCLKRDiv, 0x01},
				{regHTSHi, 0x0b},
				{regHTSLo, 0x1c},
				{regVTSHi, 0x07},
				{regVTSLo, 0xb0},
				{regVTSExtraHi, 0x00},
				{regVTSExtraLo, 0x00},
			},
		},
	}
}

// SimulatedPreviewRegisters is a sensor sitting in SVGA preview with AE
// settled at 976 lines, gain 2x and a mid-bright scene.
func SimulatedPreviewRegisters() []RegisterValue {
	regs := append([]RegisterValue(nil), DefaultModeTables()[ModePreview].Registers...)

	return append(regs,
		RegisterValue{regExposureHi, 0x00},
		RegisterValue{regExposureMd, 0x3d},
		RegisterValue{regExposureLo, 0x00},
		RegisterValue{regGain, 0x20},
		RegisterValue{regAECManual, 0x00},
		RegisterValue{regAWBManual, 0x00},
		RegisterValue{regDenoiseCtl, 0x00},
		RegisterValue{regLuminance, 0x90},
	)
}
