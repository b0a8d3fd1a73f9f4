package sensor

// OV5640 register map, limited to what exposure synchronization touches.
const (
	regPLLBitDiv  uint16 = 0x3034 // [3:0] MIPI bit mode
	regPLLSysDiv  uint16 = 0x3035 // [7:4] system clock divider
	regPLLMult    uint16 = 0x3036 // PLL multiplier
	regPLLPreDiv  uint16 = 0x3037 // [3:0] pre-divider, [4] root divider
	regSCLKRDiv   uint16 = 0x3108 // [1:0] SCLK root divider
	regExposureHi uint16 = 0x3500 // exposure[19:16]
	regExposureMd uint16 = 0x3501 // exposure[15:8]
	regExposureLo uint16 = 0x3502 // exposure[7:0], low nibble is fractional
	regAECManual  uint16 = 0x3503 // [0] AEC manual, [1] AGC manual
	regGain       uint16 = 0x350b
	regVTSExtraHi uint16 = 0x350c
	regVTSExtraLo uint16 = 0x350d
	regAWBManual  uint16 = 0x3406 // [0] AWB manual
	regHTSHi      uint16 = 0x380c
	regHTSLo      uint16 = 0x380d
	regVTSHi      uint16 = 0x380e
	regVTSLo      uint16 = 0x380f
	regDenoise    uint16 = 0x5306
	regDenoiseCtl uint16 = 0x5308 // [4] manual denoise enable
	regLuminance  uint16 = 0x56a1 // average luminance
)

const (
	aecManualBit     byte = 0x01
	agcManualBit     byte = 0x02
	awbManualBit     byte = 0x01
	denoiseManualBit byte = 0x10
)
