package source

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Static serves a single still image as an endless video.
type Static struct {
	frame   Frame
	playing atomic.Bool
}

// NewStatic wraps img as a ready source.
func NewStatic(img image.Image) *Static {
	rgba := toRGBA(img)
	b := rgba.Bounds()
	return &Static{
		frame: Frame{
			Image:  rgba,
			Width:  b.Dx(),
			Height: b.Dy(),
			Ready:  b.Dx() > 0 && b.Dy() > 0,
			Seq:    1,
		},
	}
}

// NewSolid returns a static source filled with a single color.
func NewSolid(width, height int, c color.RGBA) *Static {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return NewStatic(img)
}

// LoadStatic decodes an image file (png, jpeg, gif, bmp, webp).
func LoadStatic(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode image: empty %s", format)
	}
	return NewStatic(img), nil
}

func (s *Static) CurrentFrame() *Frame { return &s.frame }
func (s *Static) Ready() bool          { return s.frame.Ready }
func (s *Static) Playing() bool        { return s.playing.Load() }
func (s *Static) Close() error         { return nil }

func (s *Static) Play() error {
	s.playing.Store(true)
	return nil
}

func (s *Static) Pause() error {
	s.playing.Store(false)
	return nil
}
