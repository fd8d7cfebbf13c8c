// Package display presents the render surface and reports the size of the
// container it is shown in.
package display

import (
	"errors"
	"image"
	"strings"
)

// ErrQuit is returned by Present when the user closed the preview.
var ErrQuit = errors.New("display: quit requested")

// Display is a preview target for the render surface.
type Display interface {
	// Size returns the container size in surface pixels.
	Size() (int, int)
	// Present shows img together with a one-line status.
	Present(img *image.RGBA, status string) error
	Close() error
}

// Headless is a Display that shows nothing and has a fixed size.
type Headless struct {
	Width  int
	Height int
}

func (h Headless) Size() (int, int)                   { return h.Width, h.Height }
func (h Headless) Present(*image.RGBA, string) error { return nil }
func (h Headless) Close() error                       { return nil }

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}
