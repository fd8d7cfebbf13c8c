package effect

import (
	"image"

	"github.com/guidoenr/glitcher/internal/params"
	"github.com/guidoenr/glitcher/internal/surface"
)

// ColorMode selects how a slice is drawn.
type ColorMode int

const (
	ColorNormal ColorMode = iota
	ColorInverted
)

func (m ColorMode) String() string {
	if m == ColorInverted {
		return "inverted"
	}
	return "normal"
}

// scanlineChance is the fixed probability of a tear highlight per slice.
const scanlineChance = 0.3

// Slice describes one glitch draw. It lives for a single attempt.
type Slice struct {
	Src      image.Rectangle
	Dst      surface.Rect
	Zoom     float64
	Mode     ColorMode
	Scanline bool
}

// DrawOptions returns the filter and blend used for the slice.
func (s Slice) DrawOptions(p params.Parameters) surface.DrawOptions {
	if s.Mode == ColorInverted {
		return surface.DrawOptions{Filter: InvertFilter(p), Blend: surface.BlendDifference}
	}
	return surface.DrawOptions{Filter: BaseFilter(p), Blend: surface.BlendNormal}
}

// BaseFilter is the chain used by the base layer and normal slices.
func BaseFilter(p params.Parameters) surface.Filter {
	return surface.Chain(
		surface.Contrast(p.Threshold/100),
		surface.Brightness(p.Brightness/100),
		surface.Grayscale(1),
	)
}

// InvertFilter is the chain used by inverted slices.
func InvertFilter(p params.Parameters) surface.Filter {
	return surface.Chain(
		surface.Invert(1),
		surface.Contrast(p.Threshold/100),
		surface.Grayscale(1),
	)
}

// planSlice draws every random number of one successful attempt, in a fixed
// order: source origin, source size, displacement, zoom, invert, scanline.
func planSlice(rng Rand, fw, fh int, fit Fit, p params.Parameters) Slice {
	sx := rng.Float64() * float64(fw)
	sy := rng.Float64() * float64(fh)
	sw := rng.Float64() * float64(fw) / 2
	sh := rng.Float64() * float64(fh) / 2

	dx := (rng.Float64()*2 - 1) * p.Displacement
	dy := (rng.Float64()*2 - 1) * p.Displacement
	zoom := 1 + rng.Float64()*p.ZoomGlitch

	mode := ColorNormal
	if rng.Float64() < p.InvertChance {
		mode = ColorInverted
	}
	scanline := rng.Float64() < scanlineChance

	x, y := fit.Map(sx, sy)
	return Slice{
		Src: image.Rect(int(sx), int(sy), int(sx+sw), int(sy+sh)),
		Dst: surface.Rect{
			X: x + dx,
			Y: y + dy,
			W: sw * fit.Scale * zoom,
			H: sh * fit.Scale * zoom,
		},
		Zoom:     zoom,
		Mode:     mode,
		Scanline: scanline,
	}
}
