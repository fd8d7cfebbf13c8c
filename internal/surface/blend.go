package surface

import "math"

// BlendMode selects how source pixels combine with the surface.
type BlendMode int

const (
	// BlendNormal is source-over.
	BlendNormal BlendMode = iota
	// BlendScreen lightens: 1-(1-d)(1-s).
	BlendScreen
	// BlendDifference is |d-s|.
	BlendDifference
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "source-over"
	case BlendScreen:
		return "screen"
	case BlendDifference:
		return "difference"
	default:
		return "unknown"
	}
}

// Blend combines one channel of destination d and source s, both in [0,1].
func Blend(mode BlendMode, d, s float64) float64 {
	switch mode {
	case BlendScreen:
		return 1 - (1-d)*(1-s)
	case BlendDifference:
		return math.Abs(d - s)
	default:
		return s
	}
}

// composite mixes the blended value back over d with source alpha a.
func composite(mode BlendMode, d, s, a float64) float64 {
	return d + (Blend(mode, d, s)-d)*a
}

func toByte(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
