package source

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strings"
	"sync"
)

// PatternPrefix selects a procedural source, e.g. "pattern:plasma".
const PatternPrefix = "pattern:"

type patternFunc func(x, y, t float64) float64

var patternRegistry = map[string]patternFunc{
	"plasma":  patternPlasma,
	"waves":   patternWaves,
	"ripples": patternRipples,
	"nebula":  patternNebula,
	"noise":   patternNoise,
}

// PatternNames returns the available pattern identifiers.
func PatternNames() []string {
	names := make([]string, 0, len(patternRegistry))
	for name := range patternRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pattern renders an animated procedural field as video.
type Pattern struct {
	mu      sync.Mutex
	name    string
	fn      patternFunc
	frame   Frame
	playing bool
	t       float64
	step    float64
}

// NewPattern returns the named pattern source.
func NewPattern(name string, width, height int) (*Pattern, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	fn, ok := patternRegistry[key]
	if !ok {
		return nil, fmt.Errorf("%w: pattern %q (have %s)", ErrUnsupported, name, strings.Join(PatternNames(), ", "))
	}
	if width <= 0 {
		width = 320
	}
	if height <= 0 {
		height = 180
	}
	p := &Pattern{
		name: key,
		fn:   fn,
		step: 1.0 / 60.0,
		frame: Frame{
			Image:  image.NewRGBA(image.Rect(0, 0, width, height)),
			Width:  width,
			Height: height,
			Ready:  true,
		},
	}
	p.paint()
	return p, nil
}

func (p *Pattern) Name() string { return p.name }

// CurrentFrame advances the pattern by one step while playing.
func (p *Pattern) CurrentFrame() *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.t += p.step
		p.paint()
	}
	return &p.frame
}

func (p *Pattern) Ready() bool { return true }

func (p *Pattern) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Pattern) Play() error {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	return nil
}

func (p *Pattern) Pause() error {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	return nil
}

func (p *Pattern) Close() error { return nil }

func (p *Pattern) paint() {
	img := p.frame.Image
	w, h := p.frame.Width, p.frame.Height
	for y := 0; y < h; y++ {
		vy := float64(y)/float64(h) - 0.5
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			vx := float64(x)/float64(w) - 0.5
			v := clampUnit(p.fn(vx*4, vy*4, p.t))
			n := (v + 1) * 0.5
			r, g, b := hsvToRGB(math.Mod(n*0.6+p.t*0.05, 1), 0.65, 0.25+n*0.75)
			o := x * 4
			row[o+0] = uint8(r*255 + 0.5)
			row[o+1] = uint8(g*255 + 0.5)
			row[o+2] = uint8(b*255 + 0.5)
			row[o+3] = 255
		}
	}
	p.frame.Seq++
}

func patternPlasma(x, y, t float64) float64 {
	v1 := math.Sin((x*3.4 + t*1.2) * 0.9)
	v2 := math.Sin((y*4.1 - t*0.7) * 1.1)
	v3 := math.Sin((x+y)*2.3 + t*1.7)
	return (v1 + v2 + v3) / 3.0
}

func patternWaves(x, y, t float64) float64 {
	const freq = 2.4
	return math.Sin((x+t*0.8)*freq) * math.Cos((y-t*0.5)*freq*1.1)
}

func patternRipples(x, y, t float64) float64 {
	r := math.Hypot(x, y)
	theta := math.Atan2(y, x)
	return math.Sin(r*6.4 - t*2.2 + math.Sin(theta*3+t)*0.5)
}

func patternNebula(x, y, t float64) float64 {
	base := patternPlasma(x*0.8, y*0.8, t)
	swirl := math.Sin((x-y)*1.5 + t*0.9)
	noise := fractalNoise(x*1.2+t*0.1, y*1.2-t*0.15)
	return base*0.6 + swirl*0.2 + noise*0.6
}

func patternNoise(x, y, t float64) float64 {
	return fractalNoise(x*3+t*0.2, y*3-t*0.18)
}

func fractalNoise(x, y float64) float64 {
	amp := 0.5
	freq := 1.0
	total := 0.0
	sumAmp := 0.0

	for i := 0; i < 4; i++ {
		total += valueNoise2(x*freq, y*freq) * amp
		sumAmp += amp
		amp *= 0.5
		freq *= 2.0
	}
	return (total/sumAmp)*2.0 - 1.0
}

func valueNoise2(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	x1 := x0 + 1.0
	y1 := y0 + 1.0

	sx := smoothstep(x - x0)
	sy := smoothstep(y - y0)

	n00 := hash2(x0, y0)
	n10 := hash2(x1, y0)
	n01 := hash2(x0, y1)
	n11 := hash2(x1, y1)

	ix0 := lerpFloat(n00, n10, sx)
	ix1 := lerpFloat(n01, n11, sx)

	return lerpFloat(ix0, ix1, sy)
}

func hash2(x, y float64) float64 {
	return frac(math.Sin(x*127.1+y*311.7) * 43758.5453123)
}

func smoothstep(v float64) float64 {
	return v * v * (3 - 2*v)
}

func lerpFloat(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func frac(v float64) float64 {
	return v - math.Floor(v)
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	if s == 0 {
		return v, v, v
	}
	hv := h * 6.0
	i := math.Floor(hv)
	f := hv - i
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))

	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
