package params

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownField is returned when an edit names a field that does not exist.
var ErrUnknownField = errors.New("params: unknown field")

// Parameters is an immutable snapshot of the glitch controls.
// The pipeline only ever reads a copy; edits replace the whole value.
type Parameters struct {
	Threshold    float64 `json:"threshold"`
	Brightness   float64 `json:"brightness"`
	Chaos        float64 `json:"chaos"`
	Slices       int     `json:"slices"`
	Displacement float64 `json:"displacement"`
	Feedback     float64 `json:"feedback"`
	InvertChance float64 `json:"invertChance"`
	Scale        float64 `json:"scale"`
	ZoomGlitch   float64 `json:"zoomGlitch"`
}

// Defaults returns the reset values of the control surface.
func Defaults() Parameters {
	return Parameters{
		Threshold:    200,
		Brightness:   100,
		Chaos:        0.5,
		Slices:       5,
		Displacement: 50,
		Feedback:     0.1,
		InvertChance: 0.1,
		Scale:        1.0,
		ZoomGlitch:   0.1,
	}
}

// Field describes one editable parameter and its allowed range.
type Field struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Integer bool    `json:"integer,omitempty"`

	get func(Parameters) float64
	set func(*Parameters, float64)
}

// feedback must stay strictly inside (0,1)
const (
	feedbackMin = 0.01
	feedbackMax = 0.99
)

var fields = []Field{
	{Name: "threshold", Min: 0, Max: 500, Step: 1,
		get: func(p Parameters) float64 { return p.Threshold },
		set: func(p *Parameters, v float64) { p.Threshold = v }},
	{Name: "brightness", Min: 0, Max: 300, Step: 1,
		get: func(p Parameters) float64 { return p.Brightness },
		set: func(p *Parameters, v float64) { p.Brightness = v }},
	{Name: "chaos", Min: 0, Max: 1, Step: 0.01,
		get: func(p Parameters) float64 { return p.Chaos },
		set: func(p *Parameters, v float64) { p.Chaos = v }},
	{Name: "slices", Min: 0, Max: 50, Step: 1, Integer: true,
		get: func(p Parameters) float64 { return float64(p.Slices) },
		set: func(p *Parameters, v float64) { p.Slices = int(math.Round(v)) }},
	{Name: "displacement", Min: 0, Max: 300, Step: 1,
		get: func(p Parameters) float64 { return p.Displacement },
		set: func(p *Parameters, v float64) { p.Displacement = v }},
	{Name: "feedback", Min: feedbackMin, Max: feedbackMax, Step: 0.01,
		get: func(p Parameters) float64 { return p.Feedback },
		set: func(p *Parameters, v float64) { p.Feedback = v }},
	{Name: "invertChance", Min: 0, Max: 1, Step: 0.01,
		get: func(p Parameters) float64 { return p.InvertChance },
		set: func(p *Parameters, v float64) { p.InvertChance = v }},
	{Name: "scale", Min: 0.5, Max: 3, Step: 0.1,
		get: func(p Parameters) float64 { return p.Scale },
		set: func(p *Parameters, v float64) { p.Scale = v }},
	{Name: "zoomGlitch", Min: 0, Max: 2, Step: 0.1,
		get: func(p Parameters) float64 { return p.ZoomGlitch },
		set: func(p *Parameters, v float64) { p.ZoomGlitch = v }},
}

// Fields returns the editable fields in display order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Lookup finds a field by name, case-insensitively.
func Lookup(name string) (Field, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// Clamp limits v to the field's range, rounding integer fields.
func (f Field) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		v = f.Min
	}
	v = clamp(v, f.Min, f.Max)
	if f.Integer {
		v = math.Round(v)
	}
	return v
}

// Value reads the field from p.
func (f Field) Value(p Parameters) float64 {
	return f.get(p)
}

// With returns a copy of p with the field set to the clamped value.
func (f Field) With(p Parameters, v float64) Parameters {
	f.set(&p, f.Clamp(v))
	return p
}

// Values flattens p into a name → value map for the control surface.
func (p Parameters) Values() map[string]float64 {
	out := make(map[string]float64, len(fields))
	for _, f := range fields {
		out[f.Name] = f.get(p)
	}
	return out
}

// Clamped returns p with every field forced into its range.
func (p Parameters) Clamped() Parameters {
	for _, f := range fields {
		p = f.With(p, f.get(p))
	}
	return p
}

// Edit applies a single named change to p.
func (p Parameters) Edit(name string, value float64) (Parameters, error) {
	f, ok := Lookup(name)
	if !ok {
		return p, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f.With(p, value), nil
}

// Float64Source is the random source used by Randomize.
type Float64Source interface {
	Float64() float64
}

// Randomize returns parameters drawn uniformly from each field's range.
func Randomize(rng Float64Source) Parameters {
	p := Defaults()
	for _, f := range fields {
		p = f.With(p, lerp(f.Min, f.Max, rng.Float64()))
	}
	return p
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
