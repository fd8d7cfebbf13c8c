package surface

import (
	"fmt"
	"strings"
)

// FilterKind identifies one stage of a filter chain.
type FilterKind int

const (
	FilterContrast FilterKind = iota
	FilterBrightness
	FilterGrayscale
	FilterInvert
)

func (k FilterKind) String() string {
	switch k {
	case FilterContrast:
		return "contrast"
	case FilterBrightness:
		return "brightness"
	case FilterGrayscale:
		return "grayscale"
	case FilterInvert:
		return "invert"
	default:
		return "unknown"
	}
}

// FilterOp is a single filter stage. Amount is a fraction: 1 means 100%.
type FilterOp struct {
	Kind   FilterKind
	Amount float64
}

// Filter is an ordered chain of stages applied to source pixels before
// compositing. A nil Filter is the identity.
type Filter []FilterOp

func Contrast(amount float64) FilterOp   { return FilterOp{Kind: FilterContrast, Amount: amount} }
func Brightness(amount float64) FilterOp { return FilterOp{Kind: FilterBrightness, Amount: amount} }
func Grayscale(amount float64) FilterOp  { return FilterOp{Kind: FilterGrayscale, Amount: amount} }
func Invert(amount float64) FilterOp     { return FilterOp{Kind: FilterInvert, Amount: amount} }

// Chain builds a Filter from ops.
func Chain(ops ...FilterOp) Filter {
	return Filter(ops)
}

// Has reports whether the chain contains a stage of kind k.
func (f Filter) Has(k FilterKind) bool {
	for _, op := range f {
		if op.Kind == k {
			return true
		}
	}
	return false
}

// String renders the chain in CSS filter syntax, e.g.
// "contrast(200%) brightness(100%) grayscale(100%)".
func (f Filter) String() string {
	if len(f) == 0 {
		return "none"
	}
	parts := make([]string, len(f))
	for i, op := range f {
		parts[i] = fmt.Sprintf("%s(%g%%)", op.Kind, op.Amount*100)
	}
	return strings.Join(parts, " ")
}

// Rec. 709 luma weights used by the grayscale stage.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// Apply runs the chain on one pixel. Channels are in [0,1] and each stage
// clamps its output.
func (f Filter) Apply(r, g, b float64) (float64, float64, float64) {
	for _, op := range f {
		a := op.Amount
		switch op.Kind {
		case FilterContrast:
			r = clamp01((r-0.5)*a + 0.5)
			g = clamp01((g-0.5)*a + 0.5)
			b = clamp01((b-0.5)*a + 0.5)
		case FilterBrightness:
			r = clamp01(r * a)
			g = clamp01(g * a)
			b = clamp01(b * a)
		case FilterGrayscale:
			a = clamp01(a)
			y := lumaR*r + lumaG*g + lumaB*b
			r = clamp01(r + (y-r)*a)
			g = clamp01(g + (y-g)*a)
			b = clamp01(b + (y-b)*a)
		case FilterInvert:
			a = clamp01(a)
			r = r + (1-2*r)*a
			g = g + (1-2*g)*a
			b = b + (1-2*b)*a
		}
	}
	return r, g, b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
