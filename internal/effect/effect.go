// Package effect implements the per-tick glitch transform: feedback decay,
// the no-signal fallback, the cover-fit base layer and the stochastic
// slices drawn on top of it.
package effect

import (
	"image"
	"image/color"
	"log/slog"
	"math/rand"
	"time"

	"github.com/guidoenr/glitcher/internal/params"
	"github.com/guidoenr/glitcher/internal/source"
	"github.com/guidoenr/glitcher/internal/surface"
)

// Rand is the random source driving every stochastic decision.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Canvas is the set of drawing operations the pipeline needs.
// *surface.Surface implements it.
type Canvas interface {
	Size() (int, int)
	FillRect(c color.RGBA, alpha float64, mode surface.BlendMode)
	DrawImage(img *image.RGBA, src image.Rectangle, dst surface.Rect, opts surface.DrawOptions)
	StrokeRect(r surface.Rect, c color.RGBA, lineWidth float64) error
	SetPixel(x, y int, c color.RGBA)
}

const noiseChance = 0.1

var (
	black     = color.RGBA{A: 255}
	white     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	noiseGray = color.RGBA{R: 26, G: 26, B: 26, A: 255}
)

// Stats counts what the last Step did.
type Stats struct {
	Attempts    int  `json:"attempts"`
	SlicesDrawn int  `json:"slicesDrawn"`
	Inverted    int  `json:"inverted"`
	Scanlines   int  `json:"scanlines"`
	NoiseHits   int  `json:"noiseHits"`
	NoSignal    bool `json:"noSignal"`
}

// Pipeline applies one glitch tick to a canvas.
type Pipeline struct {
	rng   Rand
	log   *slog.Logger
	stats Stats
}

// New creates a pipeline. A nil rng falls back to a time-seeded source.
func New(rng Rand, logger *slog.Logger) *Pipeline {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{rng: rng, log: logger.With("component", "effect")}
}

// Stats returns the counters of the most recent Step.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Step runs one tick. frame == nil means no source is configured and
// produces sparse noise; a frame that is not Ready only decays the trail.
// A nil or empty canvas makes Step a no-op.
func (p *Pipeline) Step(frame *source.Frame, prm params.Parameters, c Canvas) {
	p.stats = Stats{}
	if c == nil {
		return
	}
	sw, sh := c.Size()
	if sw <= 0 || sh <= 0 {
		return
	}

	c.FillRect(black, 1-prm.Feedback, surface.BlendNormal)

	if frame == nil {
		p.stats.NoSignal = true
		p.noise(c, sw, sh)
		return
	}
	if !frame.Ready || frame.Image == nil || frame.Width <= 0 || frame.Height <= 0 {
		p.stats.NoSignal = true
		return
	}

	fw, fh := frame.Width, frame.Height
	fit := Cover(fw, fh, sw, sh, prm.Scale)
	c.DrawImage(frame.Image, frame.Bounds(), surface.Rect{
		X: fit.OffsetX,
		Y: fit.OffsetY,
		W: float64(fw) * fit.Scale,
		H: float64(fh) * fit.Scale,
	}, surface.DrawOptions{Filter: BaseFilter(prm), Blend: surface.BlendScreen})

	for i := 0; i < prm.Slices; i++ {
		p.stats.Attempts++
		if p.rng.Float64() <= 1-prm.Chaos {
			continue
		}
		s := planSlice(p.rng, fw, fh, fit, prm)
		p.drawSlice(c, frame.Image, s, prm)
	}
}

func (p *Pipeline) drawSlice(c Canvas, img *image.RGBA, s Slice, prm params.Parameters) {
	c.DrawImage(img, s.Src, s.Dst, s.DrawOptions(prm))
	p.stats.SlicesDrawn++
	if s.Mode == ColorInverted {
		p.stats.Inverted++
	}
	if s.Scanline {
		p.stats.Scanlines++
		if err := c.StrokeRect(s.Dst, white, 2); err != nil {
			p.log.Debug("effect: scanline stroke failed", "error", err)
		}
	}
}

func (p *Pipeline) noise(c Canvas, sw, sh int) {
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			if p.rng.Float64() < noiseChance {
				c.SetPixel(x, y, noiseGray)
				p.stats.NoiseHits++
			}
		}
	}
}
