//go:build sdl

package display

import (
	"fmt"
	"image"

	"github.com/veandco/go-sdl2/sdl"
)

// Window is a resizable SDL preview. Its client area is the container the
// surface is fitted to.
type Window struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	texW     int
	texH     int
	title    string
}

// NewWindow opens an SDL window of the given size.
func NewWindow(title string, width, height int) (*Window, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("init SDL video: %w", err)
	}
	window, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, fmt.Errorf("create window: %w", err)
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return &Window{window: window, renderer: renderer, title: title}, nil
}

// Size returns the drawable client area.
func (w *Window) Size() (int, int) {
	width, height := w.window.GetSize()
	return int(width), int(height)
}

func (w *Window) ensureTexture(width, height int) error {
	if w.texture != nil && w.texW == width && w.texH == height {
		return nil
	}
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	tex, err := w.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(width), int32(height),
	)
	if err != nil {
		return err
	}
	w.texture = tex
	w.texW, w.texH = width, height
	return nil
}

// Present uploads img and drains pending window events. Closing the window
// yields ErrQuit.
func (w *Window) Present(img *image.RGBA, status string) error {
	if status != "" && status != w.title {
		w.window.SetTitle(status)
		w.title = status
	}
	if img != nil {
		b := img.Bounds()
		if err := w.ensureTexture(b.Dx(), b.Dy()); err != nil {
			return err
		}
		if err := w.texture.Update(nil, img.Pix, img.Stride); err != nil {
			return err
		}
	}
	if err := w.renderer.Clear(); err != nil {
		return err
	}
	if w.texture != nil {
		if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
			return err
		}
	}
	w.renderer.Present()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch event.(type) {
		case *sdl.QuitEvent:
			return ErrQuit
		}
	}
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	if w.renderer != nil {
		w.renderer.Destroy()
		w.renderer = nil
	}
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

func SupportsSDL() bool { return true }
