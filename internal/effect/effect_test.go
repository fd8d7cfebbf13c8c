package effect

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/guidoenr/glitcher/internal/params"
	"github.com/guidoenr/glitcher/internal/source"
	"github.com/guidoenr/glitcher/internal/surface"
)

type op struct {
	kind  string
	src   image.Rectangle
	dst   surface.Rect
	opts  surface.DrawOptions
	color color.RGBA
	alpha float64
	width float64
}

// recorder is a Canvas that keeps every call as data.
type recorder struct {
	w, h   int
	ops    []op
	pixels int
}

func (r *recorder) Size() (int, int) { return r.w, r.h }

func (r *recorder) FillRect(c color.RGBA, alpha float64, mode surface.BlendMode) {
	r.ops = append(r.ops, op{kind: "fill", color: c, alpha: alpha, opts: surface.DrawOptions{Blend: mode}})
}

func (r *recorder) DrawImage(_ *image.RGBA, src image.Rectangle, dst surface.Rect, opts surface.DrawOptions) {
	r.ops = append(r.ops, op{kind: "draw", src: src, dst: dst, opts: opts})
}

func (r *recorder) StrokeRect(rect surface.Rect, c color.RGBA, lineWidth float64) error {
	r.ops = append(r.ops, op{kind: "stroke", dst: rect, color: c, width: lineWidth})
	return nil
}

func (r *recorder) SetPixel(int, int, color.RGBA) { r.pixels++ }

func (r *recorder) count(kind string) int {
	n := 0
	for _, o := range r.ops {
		if o.kind == kind {
			n++
		}
	}
	return n
}

// scripted returns the given values in order, then 0.
type scripted struct {
	vals []float64
}

func (s *scripted) Float64() float64 {
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	return v
}

func testFrame(w, h int) *source.Frame {
	return source.NewSolid(w, h, color.RGBA{R: 120, G: 80, B: 40, A: 255}).CurrentFrame()
}

func TestChaosZeroDrawsNoSlices(t *testing.T) {
	prm := params.Defaults()
	prm.Chaos = 0
	prm.Slices = 50
	for seed := int64(1); seed <= 20; seed++ {
		c := &recorder{w: 64, h: 48}
		p := New(rand.New(rand.NewSource(seed)), nil)
		p.Step(testFrame(32, 24), prm, c)
		if c.count("fill") != 1 || c.count("draw") != 1 || c.count("stroke") != 0 {
			t.Fatalf("seed %d: ops=%+v", seed, c.ops)
		}
		if p.Stats().SlicesDrawn != 0 {
			t.Fatalf("seed %d: slices drawn with chaos=0", seed)
		}
	}
}

func TestChaosOneDrawsEveryAttempt(t *testing.T) {
	prm := params.Defaults()
	prm.Chaos = 1
	prm.Slices = 17
	c := &recorder{w: 64, h: 48}
	p := New(rand.New(rand.NewSource(3)), nil)
	p.Step(testFrame(32, 24), prm, c)
	if got := p.Stats().SlicesDrawn; got != 17 {
		t.Fatalf("slices drawn=%d want=17", got)
	}
	if got := c.count("draw"); got != 18 {
		t.Fatalf("draw calls=%d want base+17", got)
	}
	if got := c.count("stroke"); got != p.Stats().Scanlines {
		t.Fatalf("strokes=%d scanlines=%d", got, p.Stats().Scanlines)
	}
}

func TestZeroSlicesNeverEntersSliceBranch(t *testing.T) {
	prm := params.Defaults()
	prm.Slices = 0
	for _, chaos := range []float64{0, 0.5, 1} {
		prm.Chaos = chaos
		c := &recorder{w: 10, h: 10}
		rng := &scripted{vals: []float64{0.99, 0.99, 0.99}}
		p := New(rng, nil)
		p.Step(testFrame(10, 10), prm, c)
		if p.Stats().Attempts != 0 || c.count("draw") != 1 {
			t.Fatalf("chaos=%f: stats=%+v ops=%d", chaos, p.Stats(), len(c.ops))
		}
		if len(rng.vals) != 3 {
			t.Fatalf("chaos=%f: rng consumed without slices", chaos)
		}
	}
}

func TestBaseLayerUsesCoverFitAndScreen(t *testing.T) {
	prm := params.Defaults()
	prm.Slices = 0
	prm.Scale = 1.5
	c := &recorder{w: 200, h: 100}
	New(rand.New(rand.NewSource(1)), nil).Step(testFrame(100, 100), prm, c)

	fill := c.ops[0]
	if fill.kind != "fill" || fill.color != black || math.Abs(fill.alpha-0.9) > 1e-12 || fill.opts.Blend != surface.BlendNormal {
		t.Fatalf("unexpected decay op %+v", fill)
	}
	base := c.ops[1]
	fit := Cover(100, 100, 200, 100, 1.5)
	want := surface.Rect{X: fit.OffsetX, Y: fit.OffsetY, W: 100 * fit.Scale, H: 100 * fit.Scale}
	if base.dst != want {
		t.Fatalf("base dst=%+v want=%+v", base.dst, want)
	}
	if base.src != image.Rect(0, 0, 100, 100) {
		t.Fatalf("base src=%v", base.src)
	}
	if base.opts.Blend != surface.BlendScreen || !reflect.DeepEqual(base.opts.Filter, BaseFilter(prm)) {
		t.Fatalf("base opts=%+v", base.opts)
	}
}

func TestCoverGeometry(t *testing.T) {
	sizes := [][4]int{
		{1920, 1080, 640, 360},
		{640, 480, 800, 600},
		{100, 300, 400, 200},
		{300, 100, 200, 400},
		{7, 5, 3, 11},
	}
	for _, sz := range sizes {
		vw, vh, w, h := sz[0], sz[1], sz[2], sz[3]
		for _, scale := range []float64{0.5, 1, 1.7, 3} {
			fit := Cover(vw, vh, w, h, scale)
			if math.Abs(fit.OffsetX-(float64(w)-float64(vw)*fit.Scale)/2) > 1e-9 ||
				math.Abs(fit.OffsetY-(float64(h)-float64(vh)*fit.Scale)/2) > 1e-9 {
				t.Fatalf("%v scale %f: offsets not centered: %+v", sz, scale, fit)
			}
			dw := float64(vw) * fit.Scale / scale
			dh := float64(vh) * fit.Scale / scale
			exactX := math.Abs(dw-float64(w)) < 1e-9
			exactY := math.Abs(dh-float64(h)) < 1e-9
			if !exactX && !exactY {
				t.Fatalf("%v: unscaled cover matches neither axis (%f x %f)", sz, dw, dh)
			}
			if dw < float64(w)-1e-9 || dh < float64(h)-1e-9 {
				t.Fatalf("%v: cover leaves a gap (%f x %f)", sz, dw, dh)
			}
		}
	}
}

func TestSliceRandomDrawOrder(t *testing.T) {
	prm := params.Defaults()
	prm.Slices = 1
	prm.Chaos = 0.5
	prm.Displacement = 50
	prm.ZoomGlitch = 1
	prm.InvertChance = 0.1
	rng := &scripted{vals: []float64{
		0.9,        // chaos: 0.9 > 0.5, draw
		0.5, 0.5,   // source origin
		0.5, 0.4,   // source size
		0.75, 0.25, // displacement
		0.5,        // zoom
		0.05,       // invert
		0.2,        // scanline
	}}
	c := &recorder{w: 200, h: 100}
	New(rng, nil).Step(testFrame(100, 50), prm, c)

	if len(c.ops) != 4 {
		t.Fatalf("ops=%+v", c.ops)
	}
	slice := c.ops[2]
	if slice.src != image.Rect(50, 25, 75, 35) {
		t.Fatalf("src=%v", slice.src)
	}
	want := surface.Rect{X: 125, Y: 25, W: 75, H: 30}
	if slice.dst != want {
		t.Fatalf("dst=%+v want=%+v", slice.dst, want)
	}
	if slice.opts.Blend != surface.BlendDifference || !reflect.DeepEqual(slice.opts.Filter, InvertFilter(prm)) {
		t.Fatalf("inverted slice opts=%+v", slice.opts)
	}
	stroke := c.ops[3]
	if stroke.kind != "stroke" || stroke.dst != want || stroke.color != white || stroke.width != 2 {
		t.Fatalf("stroke=%+v", stroke)
	}
}

func TestNormalSliceComposite(t *testing.T) {
	prm := params.Defaults()
	prm.Slices = 1
	prm.Chaos = 1
	prm.InvertChance = 0
	c := &recorder{w: 20, h: 20}
	rng := &scripted{vals: []float64{0.5, 0.1, 0.1, 0.5, 0.5, 0.5, 0.5, 0, 0.5, 0.9}}
	New(rng, nil).Step(testFrame(20, 20), prm, c)
	slice := c.ops[2]
	if slice.opts.Blend != surface.BlendNormal || !reflect.DeepEqual(slice.opts.Filter, BaseFilter(prm)) {
		t.Fatalf("normal slice opts=%+v", slice.opts)
	}
	if c.count("stroke") != 0 {
		t.Fatalf("scanline drawn at 0.9")
	}
}

func TestSameSeedSameOps(t *testing.T) {
	prm := params.Defaults()
	prm.Chaos = 0.7
	prm.Slices = 20
	run := func() []op {
		c := &recorder{w: 64, h: 64}
		p := New(rand.New(rand.NewSource(42)), nil)
		for i := 0; i < 5; i++ {
			p.Step(testFrame(40, 30), prm, c)
		}
		return c.ops
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Fatalf("seeded runs diverged")
	}
}

func TestNoSignalNoise(t *testing.T) {
	s, err := surface.New(200, 100)
	if err != nil {
		t.Fatal(err)
	}
	p := New(rand.New(rand.NewSource(11)), nil)
	p.Step(nil, params.Defaults(), s)

	count := 0
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := s.RGBAAt(x, y)
			switch c {
			case noiseGray:
				count++
			case color.RGBA{A: 255}:
			default:
				t.Fatalf("unexpected pixel %v at %d,%d", c, x, y)
			}
		}
	}
	expected := 0.1 * 200 * 100
	if math.Abs(float64(count)-expected) > 0.1*expected {
		t.Fatalf("noise pixels=%d want≈%.0f", count, expected)
	}
	if p.Stats().NoiseHits != count || !p.Stats().NoSignal {
		t.Fatalf("stats=%+v count=%d", p.Stats(), count)
	}
}

func TestNotReadyFrameOnlyDecays(t *testing.T) {
	c := &recorder{w: 8, h: 8}
	p := New(rand.New(rand.NewSource(1)), nil)
	p.Step(&source.Frame{}, params.Defaults(), c)
	if len(c.ops) != 1 || c.ops[0].kind != "fill" || c.pixels != 0 {
		t.Fatalf("ops=%+v pixels=%d", c.ops, c.pixels)
	}
}

func TestNilOrEmptyCanvasIsNoop(t *testing.T) {
	p := New(rand.New(rand.NewSource(1)), nil)
	p.Step(nil, params.Defaults(), nil)
	c := &recorder{}
	p.Step(testFrame(4, 4), params.Defaults(), c)
	if len(c.ops) != 0 {
		t.Fatalf("drew on empty canvas: %+v", c.ops)
	}
}

func TestFeedbackTrailDecaysGeometrically(t *testing.T) {
	s, err := surface.New(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	s.Clear(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	prm := params.Defaults()
	prm.Feedback = 0.7
	p := New(rand.New(rand.NewSource(5)), nil)
	for n := 1; n <= 8; n++ {
		p.Step(&source.Frame{}, prm, s)
		want := 255 * math.Pow(prm.Feedback, float64(n))
		got := float64(s.RGBAAt(2, 2).R)
		if math.Abs(got-want) > float64(n) {
			t.Fatalf("tick %d: residual=%f want≈%f", n, got, want)
		}
	}
}

func TestHighFeedbackConvergesMonotonically(t *testing.T) {
	s, err := surface.New(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	s.Clear(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	frame := source.NewSolid(8, 8, color.RGBA{A: 255}).CurrentFrame()

	prm := params.Defaults()
	prm.Feedback = 0.99
	prm.Slices = 0
	p := New(rand.New(rand.NewSource(9)), nil)

	residual := func() float64 {
		sum := 0.0
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				sum += float64(s.RGBAAt(x, y).R)
			}
		}
		return sum / 256
	}
	prev := residual()
	for i := 0; i < 100; i++ {
		p.Step(frame, prm, s)
		cur := residual()
		if cur >= prev {
			t.Fatalf("tick %d: residual %f did not decrease from %f", i, cur, prev)
		}
		prev = cur
	}
	if prev <= 0 {
		t.Fatalf("trail fully erased after 100 ticks")
	}
}
