package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gogpu/gg"

	"github.com/guidoenr/glitcher/internal/app"
	"github.com/guidoenr/glitcher/internal/display"
	"github.com/guidoenr/glitcher/internal/web"
)

func main() {
	var (
		sourcePath = flag.String("source", "", "Video file, still image, \"testcard\" or \"pattern:plasma|waves|ripples|nebula|noise\" (empty shows no-signal noise)")
		width      = flag.Int("width", 640, "Window width / fallback surface width")
		height     = flag.Int("height", 360, "Window height / fallback surface height")
		targetFPS  = flag.Float64("fps", 60, "Display refresh rate")
		recordFPS  = flag.Int("record-fps", 30, "Recording capture rate")
		seed       = flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
		paused     = flag.Bool("paused", false, "Start paused")
		useSDL     = flag.Bool("sdl", false, "Preview in an SDL window (requires -tags sdl)")
		cellScale  = flag.Int("cell-scale", 2, "Surface pixels per terminal cell")
		showStatus = flag.Bool("status", true, "Display status bar")
		noColor    = flag.Bool("no-color", false, "Disable ANSI color output")
		paletteKey = flag.String("palette", "default", "Glyph palette without color: "+strings.Join(display.PaletteNames(), ", "))
		port       = flag.Int("port", 0, "Serve the HTTP control surface on this port (0 disables)")
		outDir     = flag.String("out", ".", "Directory for saved recordings")
		profile    = flag.String("profile", "", "Append per-tick timings to this CSV file")
		debug      = flag.Bool("debug", false, "Enable verbose logging")
	)

	flag.Parse()

	if *width <= 0 || *height <= 0 {
		fmt.Fprintf(os.Stderr, "invalid dimensions: width=%d height=%d\n", *width, *height)
		os.Exit(2)
	}
	if *targetFPS <= 0 {
		fmt.Fprintf(os.Stderr, "fps must be positive (got %.2f)\n", *targetFPS)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	gg.SetLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var disp display.Display
	if *useSDL {
		win, err := display.NewWindow("glitcher", *width, *height)
		if err != nil {
			logger.Error("failed to open window", "error", err)
			os.Exit(1)
		}
		disp = win
	} else {
		disp = display.NewTerminal(os.Stdout, display.TerminalConfig{
			Width:      *width / 8,
			Height:     *height / 16,
			Scale:      *cellScale,
			ShowStatus: *showStatus,
			UseANSI:    !*noColor,
			Palette:    *paletteKey,
		})
	}

	a, err := app.New(app.Config{
		Source:    *sourcePath,
		Width:     *width,
		Height:    *height,
		TargetFPS: *targetFPS,
		RecordFPS: *recordFPS,
		Seed:      *seed,
		Autoplay:  !*paused,
		Keyboard:  true,
		OutputDir: *outDir,
		Profile:   *profile,
		Display:   disp,
		Log:       logger,
	})
	if err != nil {
		disp.Close()
		logger.Error("failed to create app", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if *port > 0 {
		srv := web.NewServer(a, logger)
		go func() {
			if err := srv.Serve(ctx, fmt.Sprintf(":%d", *port)); err != nil {
				logger.Error("web server stopped", "error", err)
			}
		}()
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runtime error", "error", err)
		return
	}
}
