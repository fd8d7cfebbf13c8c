package source

import (
	"image"
	"math"
	"math/rand"
	"sync"
)

var barColors = [][3]uint8{
	{235, 235, 235},
	{235, 235, 16},
	{16, 235, 235},
	{16, 235, 16},
	{235, 16, 235},
	{235, 16, 16},
	{16, 16, 235},
}

// Synthetic is a moving color-bar test card. It needs no decoder and is
// used when no real video is available.
type Synthetic struct {
	mu      sync.Mutex
	rng     *rand.Rand
	frame   Frame
	playing bool

	phaseBars  float64
	phaseSweep float64
	step       float64
}

// NewSynthetic creates a test card of the given size. A zero seed keeps the
// rng deterministic as well; callers pass time-based seeds if they want
// variation.
func NewSynthetic(width, height int, seed int64) *Synthetic {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 360
	}
	s := &Synthetic{
		rng:  rand.New(rand.NewSource(seed)),
		step: 1.0 / 60.0,
		frame: Frame{
			Image:  image.NewRGBA(image.Rect(0, 0, width, height)),
			Width:  width,
			Height: height,
			Ready:  true,
		},
	}
	s.paint()
	return s
}

// CurrentFrame advances the card by one step while playing.
func (s *Synthetic) CurrentFrame() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		s.phaseBars += s.step * 0.7
		s.phaseSweep += s.step * 2.1
		s.paint()
	}
	return &s.frame
}

func (s *Synthetic) Ready() bool { return true }

func (s *Synthetic) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Synthetic) Play() error {
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
	return nil
}

func (s *Synthetic) Pause() error {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	return nil
}

func (s *Synthetic) Close() error { return nil }

func (s *Synthetic) paint() {
	img := s.frame.Image
	w, h := s.frame.Width, s.frame.Height
	shift := int(float64(w) * 0.5 * (1 + math.Sin(s.phaseBars)))
	sweep := int(float64(h) * 0.5 * (1 + math.Sin(s.phaseSweep)))
	flicker := s.rng.Float64() < 0.02

	barWidth := w / len(barColors)
	if barWidth < 1 {
		barWidth = 1
	}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		hot := y == sweep || (flicker && y%7 == 0)
		for x := 0; x < w; x++ {
			c := barColors[((x+shift)/barWidth)%len(barColors)]
			if hot {
				c = [3]uint8{255, 255, 255}
			}
			o := x * 4
			row[o+0] = c[0]
			row[o+1] = c[1]
			row[o+2] = c[2]
			row[o+3] = 255
		}
	}
	s.frame.Seq++
}
