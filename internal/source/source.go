package source

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when no backend can open a source.
var ErrUnsupported = errors.New("source: unsupported")

// Frame is a decoded video frame.
//
// Frames are owned by their Source. Consumers read Image during the current
// tick only and must not modify it or keep it afterwards.
type Frame struct {
	Image  *image.RGBA
	Width  int
	Height int
	// Ready reports whether the decoder has a full frame available.
	Ready bool
	Seq   uint64
}

// Bounds returns the frame extent in pixels.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Source abstracts a decodable video stream.
type Source interface {
	// CurrentFrame returns the latest frame, possibly not yet Ready.
	CurrentFrame() *Frame
	Ready() bool
	// Play and Pause only affect whether the source advances.
	Play() error
	Pause() error
	Playing() bool
	Close() error
}

// Config selects and configures a source backend.
type Config struct {
	// Path is a video file, a still image, "testcard" or "pattern:<name>".
	Path   string
	Width  int
	Height int
	Seed   int64
	Logger *slog.Logger
}

// TestCard is the Path that selects the synthetic source.
const TestCard = "testcard"

// Open picks a backend for cfg.Path. An empty path yields (nil, nil):
// no source is configured.
func Open(cfg Config) (Source, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return nil, nil
	case strings.EqualFold(path, TestCard):
		return NewSynthetic(cfg.Width, cfg.Height, cfg.Seed), nil
	case len(path) > len(PatternPrefix) && strings.EqualFold(path[:len(PatternPrefix)], PatternPrefix):
		return NewPattern(path[len(PatternPrefix):], cfg.Width, cfg.Height)
	case isStillImage(path):
		return LoadStatic(path)
	default:
		src, err := NewDecoder(path, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return src, nil
	}
}

func isStillImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return true
	default:
		return false
	}
}

// toRGBA converts img into a zero-origin RGBA copy.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
