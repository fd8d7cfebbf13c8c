package surface

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rect is a destination rectangle in surface coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Empty reports whether r covers no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// DrawOptions carries the per-draw effect descriptors.
type DrawOptions struct {
	Filter Filter
	Blend  BlendMode
}

// Surface is the persistent render target. Its pixels survive across ticks
// and carry the feedback trail. All drawing must happen on one goroutine;
// other goroutines read published snapshots through Stream.
type Surface struct {
	pm     *gg.Pixmap
	dc     *gg.Context
	width  int
	height int

	stream  Stream
	scratch []uint8
}

// New creates an opaque black surface.
func New(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid surface dimensions: width=%d height=%d", width, height)
	}
	pm := gg.NewPixmap(width, height)
	s := &Surface{
		pm:     pm,
		dc:     gg.NewContext(width, height, gg.WithPixmap(pm)),
		width:  width,
		height: height,
	}
	s.Clear(color.RGBA{A: 255})
	return s, nil
}

// Size returns the current dimensions.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Bounds returns the surface rectangle.
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// Resize reallocates the buffer when the dimensions change. Like a canvas,
// resizing discards the previous contents. It reports whether anything
// changed; non-positive sizes are ignored.
func (s *Surface) Resize(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	if width == s.width && height == s.height {
		return false
	}
	if err := s.dc.Resize(width, height); err != nil {
		return false
	}
	s.pm = s.dc.ResizeTarget()
	s.width = width
	s.height = height
	s.Clear(color.RGBA{A: 255})
	return true
}

// Clear replaces every pixel with c.
func (s *Surface) Clear(c color.RGBA) {
	s.pm.Clear(gg.RGBA2(
		float64(c.R)/255,
		float64(c.G)/255,
		float64(c.B)/255,
		float64(c.A)/255,
	))
}

// Image returns a view of the live pixels. Only the drawing goroutine may
// use it, and only until the next Resize.
func (s *Surface) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    s.pm.Data(),
		Stride: s.width * 4,
		Rect:   s.Bounds(),
	}
}

// RGBAAt returns the pixel at (x, y).
func (s *Surface) RGBAAt(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return color.RGBA{}
	}
	i := (y*s.width + x) * 4
	p := s.pm.Data()
	return color.RGBA{R: p[i], G: p[i+1], B: p[i+2], A: p[i+3]}
}

// SetPixel overwrites one pixel.
func (s *Surface) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return
	}
	i := (y*s.width + x) * 4
	p := s.pm.Data()
	p[i], p[i+1], p[i+2], p[i+3] = c.R, c.G, c.B, c.A
}

// FillRect covers the whole surface with c at the given opacity.
func (s *Surface) FillRect(c color.RGBA, alpha float64, mode BlendMode) {
	a := clamp01(alpha)
	if a == 0 && mode == BlendNormal {
		return
	}
	sr := float64(c.R) / 255
	sg := float64(c.G) / 255
	sb := float64(c.B) / 255
	p := s.pm.Data()
	for i := 0; i+3 < len(p); i += 4 {
		p[i+0] = toByte(composite(mode, float64(p[i+0])/255, sr, a))
		p[i+1] = toByte(composite(mode, float64(p[i+1])/255, sg, a))
		p[i+2] = toByte(composite(mode, float64(p[i+2])/255, sb, a))
		p[i+3] = 255
	}
}

// DrawImage scales the src region of img into dst, runs the filter chain
// on the sampled pixels and composites them with the blend mode. Source
// regions outside img are clipped and dst shrinks proportionally, matching
// canvas drawImage. Only the visible part of dst is sampled.
func (s *Surface) DrawImage(img *image.RGBA, src image.Rectangle, dst Rect, opts DrawOptions) {
	if img == nil || src.Empty() || dst.Empty() {
		return
	}
	kx := dst.W / float64(src.Dx())
	ky := dst.H / float64(src.Dy())

	clipped := src.Intersect(img.Bounds())
	if clipped.Empty() {
		return
	}
	dst = Rect{
		X: dst.X + float64(clipped.Min.X-src.Min.X)*kx,
		Y: dst.Y + float64(clipped.Min.Y-src.Min.Y)*ky,
		W: float64(clipped.Dx()) * kx,
		H: float64(clipped.Dy()) * ky,
	}

	dr := image.Rect(
		int(math.Floor(dst.X)), int(math.Floor(dst.Y)),
		int(math.Ceil(dst.X+dst.W)), int(math.Ceil(dst.Y+dst.H)),
	).Intersect(s.Bounds())
	if dr.Empty() {
		return
	}

	tmp := s.scratchImage(dr)
	aff := f64.Aff3{
		kx, 0, dst.X - float64(clipped.Min.X)*kx,
		0, ky, dst.Y - float64(clipped.Min.Y)*ky,
	}
	xdraw.ApproxBiLinear.Transform(tmp, aff, img, clipped, xdraw.Src, nil)

	p := s.pm.Data()
	filter := opts.Filter
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		row := tmp.Pix[(y-dr.Min.Y)*tmp.Stride:]
		base := (y*s.width + dr.Min.X) * 4
		for x := 0; x < dr.Dx(); x++ {
			o := x * 4
			sa := row[o+3]
			if sa == 0 {
				continue
			}
			a := float64(sa) / 255
			// un-premultiply the sampled color
			sr := float64(row[o+0]) / 255 / a
			sg := float64(row[o+1]) / 255 / a
			sb := float64(row[o+2]) / 255 / a
			sr, sg, sb = filter.Apply(clamp01(sr), clamp01(sg), clamp01(sb))

			i := base + o
			p[i+0] = toByte(composite(opts.Blend, float64(p[i+0])/255, sr, a))
			p[i+1] = toByte(composite(opts.Blend, float64(p[i+1])/255, sg, a))
			p[i+2] = toByte(composite(opts.Blend, float64(p[i+2])/255, sb, a))
			p[i+3] = 255
		}
	}
}

// StrokeRect outlines r with a solid line.
func (s *Surface) StrokeRect(r Rect, c color.RGBA, lineWidth float64) error {
	if r.Empty() || lineWidth <= 0 {
		return nil
	}
	s.dc.SetRGBA(
		float64(c.R)/255,
		float64(c.G)/255,
		float64(c.B)/255,
		float64(c.A)/255,
	)
	s.dc.SetLineWidth(lineWidth)
	s.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	if err := s.dc.Stroke(); err != nil {
		return fmt.Errorf("stroke rect: %w", err)
	}
	return nil
}

// Stream returns the capture stream fed by Publish.
func (s *Surface) Stream() *Stream {
	return &s.stream
}

// Publish copies the current pixels into the capture stream when someone
// is observing it. Call it once per tick, after drawing.
func (s *Surface) Publish() {
	if !s.stream.Observed() {
		return
	}
	img := image.NewRGBA(s.Bounds())
	copy(img.Pix, s.pm.Data())
	s.stream.publish(img)
}

// scratchImage returns a zeroed RGBA positioned at r, reusing storage.
func (s *Surface) scratchImage(r image.Rectangle) *image.RGBA {
	n := r.Dx() * r.Dy() * 4
	if cap(s.scratch) < n {
		s.scratch = make([]uint8, n)
	}
	buf := s.scratch[:n]
	clear(buf)
	return &image.RGBA{Pix: buf, Stride: r.Dx() * 4, Rect: r}
}
