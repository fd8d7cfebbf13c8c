package effect

import "math"

// Fit maps frame coordinates onto the surface.
type Fit struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Cover computes the "cover" fit of a fw×fh frame on a sw×sh surface,
// multiplied by the user scale and centered on both axes.
func Cover(fw, fh, sw, sh int, scale float64) Fit {
	if fw <= 0 || fh <= 0 {
		return Fit{Scale: scale}
	}
	s := math.Max(float64(sw)/float64(fw), float64(sh)/float64(fh)) * scale
	return Fit{
		Scale:   s,
		OffsetX: (float64(sw) - float64(fw)*s) / 2,
		OffsetY: (float64(sh) - float64(fh)*s) / 2,
	}
}

// Map transforms a frame point into surface coordinates.
func (f Fit) Map(x, y float64) (float64, float64) {
	return x*f.Scale + f.OffsetX, y*f.Scale + f.OffsetY
}
