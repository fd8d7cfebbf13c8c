package display

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"

	"golang.org/x/term"
)

const halfBlock = '▀'

var (
	resetANSI  = "\x1b[0m"
	precompFG  [256]string
	precompBG  [256]string
	cursorHome = "\x1b[H"
)

func init() {
	for i := range precompFG {
		precompFG[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
		precompBG[i] = "\x1b[48;5;" + strconv.Itoa(i) + "m"
	}
}

// TerminalConfig configures the terminal preview.
type TerminalConfig struct {
	// Width and Height are the fallback size in cells when the output is not
	// a terminal.
	Width  int
	Height int
	// Scale multiplies the surface resolution of each cell.
	Scale      int
	ShowStatus bool
	UseANSI    bool
	// Palette names the glyph ramp used without ANSI colors.
	Palette string
}

// Terminal renders the surface as 256-color half blocks: every cell shows
// two vertically stacked pixels.
type Terminal struct {
	cfg     TerminalConfig
	ramp    []rune
	out     *bufio.Writer
	fd      int
	started bool
	cols    int
	rows    int
}

// NewTerminal writes the preview to out.
func NewTerminal(out io.Writer, cfg TerminalConfig) *Terminal {
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 24
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	fd := -1
	if f, ok := out.(*os.File); ok {
		fd = int(f.Fd())
	}
	return &Terminal{
		cfg:  cfg,
		ramp: Palette(cfg.Palette),
		out:  bufio.NewWriterSize(out, 1<<16),
		fd:  fd,
	}
}

// cells returns the drawable cell grid.
func (t *Terminal) cells() (int, int) {
	cols, rows := t.cfg.Width, t.cfg.Height
	if t.fd >= 0 && term.IsTerminal(t.fd) {
		if w, h, err := term.GetSize(t.fd); err == nil && w > 0 && h > 0 {
			cols, rows = w, h
		}
	}
	if t.cfg.ShowStatus && rows > 1 {
		rows--
	}
	return cols, rows
}

// Size returns the surface size that fills the terminal.
func (t *Terminal) Size() (int, int) {
	cols, rows := t.cells()
	return cols * t.cfg.Scale, rows * 2 * t.cfg.Scale
}

// Present redraws the whole screen from img.
func (t *Terminal) Present(img *image.RGBA, status string) error {
	if !t.started {
		t.out.WriteString("\x1b[?1049h\x1b[2J\x1b[?25l")
		t.started = true
	}
	cols, rows := t.cells()
	if cols != t.cols || rows != t.rows {
		t.out.WriteString("\x1b[2J")
		t.cols, t.rows = cols, rows
	}
	t.out.WriteString(cursorHome)
	if img != nil {
		t.writeCells(img, cols, rows)
	}
	if t.cfg.ShowStatus {
		t.out.WriteString(resetANSI)
		t.out.WriteString(statusBar(status, cols))
	}
	return t.out.Flush()
}

func (t *Terminal) writeCells(img *image.RGBA, cols, rows int) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return
	}
	sx := float64(b.Dx()) / float64(cols)
	sy := float64(b.Dy()) / float64(rows*2)

	for row := 0; row < rows; row++ {
		lastFG, lastBG := -1, -1
		for col := 0; col < cols; col++ {
			x := b.Min.X + int(float64(col)*sx)
			top := img.RGBAAt(x, b.Min.Y+int(float64(row*2)*sy))
			bottom := img.RGBAAt(x, b.Min.Y+int(float64(row*2+1)*sy))
			if t.cfg.UseANSI {
				fg := rgbToANSI(float64(top.R)/255, float64(top.G)/255, float64(top.B)/255)
				bg := rgbToANSI(float64(bottom.R)/255, float64(bottom.G)/255, float64(bottom.B)/255)
				if fg != lastFG {
					t.out.WriteString(colorCode(fg))
					lastFG = fg
				}
				if bg != lastBG {
					t.out.WriteString(precompBG[clampIndex(bg)])
					lastBG = bg
				}
				t.out.WriteRune(halfBlock)
			} else {
				t.out.WriteRune(shade(t.ramp, top, bottom))
			}
		}
		if t.cfg.UseANSI {
			t.out.WriteString(resetANSI)
		}
		t.out.WriteString("\r\n")
	}
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	if !t.started {
		return nil
	}
	t.started = false
	fmt.Fprint(t.out, "\x1b[?25h\x1b[?1049l\x1b[0m")
	return t.out.Flush()
}

func shade(ramp []rune, top, bottom color.RGBA) rune {
	l := clamp01((luma(top) + luma(bottom)) / 2)
	return ramp[int(l*float64(len(ramp)-1)+0.5)]
}

func luma(c color.RGBA) float64 {
	return (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
}

func colorCode(index int) string {
	return precompFG[clampIndex(index)]
}

func clampIndex(index int) int {
	if index < 0 {
		return 0
	}
	if index >= len(precompFG) {
		return len(precompFG) - 1
	}
	return index
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale ramp for near-neutral colors
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
