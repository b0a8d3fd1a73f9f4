package sensor

// minCaptureGain is 1x in 1/16 steps.
const minCaptureGain = 0x10

// CaptureGain picks the capture gain for the auto-limit-frames policy from the
// preview gain and the measured average luminance. Brighter scenes trade gain
// for exposure time more aggressively; very dark scenes keep a moderate gain
// and let the exposure span several frames.
func CaptureGain(previewGain, luminance uint8) uint8 {
	g := previewGain

	var gain uint8
	switch {
	case luminance > 0xa0:
		switch {
		case g > 0x40:
			gain = 0x20
		case g > 0x20:
			gain = 0x18
		default:
			gain = 0x10
		}
	case luminance > 0x80:
		switch {
		case g > 0x40:
			gain = 0x30
		case g > 0x20:
			gain = 0x28
		default:
			gain = 0x20
		}
	case luminance > 0x40:
		switch {
		case g > 0x60:
			gain = g / 3
		case g > 0x40:
			gain = g / 2
		default:
			gain = g
		}
	case luminance > 0x20:
		switch {
		case g > 0x60:
			gain = g / 6
		case g > 0x20:
			gain = g / 2
		default:
			gain = g
		}
	default:
		switch {
		case g > 0xf0:
			gain = 0x10
		case g > 0xe0:
			gain = 0x14
		default:
			gain = 0x18
		}
	}

	if gain < minCaptureGain {
		gain = minCaptureGain
	}

	return gain
}

// DenoiseLevel is the manual denoise strength matching a capture gain.
func DenoiseLevel(gain uint8) uint8 {
	g := uint32(gain)
	return uint8(1 + g*g/256)
}
