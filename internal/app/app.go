package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eiannone/keyboard"

	"github.com/guidoenr/glitcher/internal/display"
	"github.com/guidoenr/glitcher/internal/effect"
	"github.com/guidoenr/glitcher/internal/params"
	"github.com/guidoenr/glitcher/internal/recorder"
	"github.com/guidoenr/glitcher/internal/scheduler"
	"github.com/guidoenr/glitcher/internal/source"
	"github.com/guidoenr/glitcher/internal/surface"
)

// Config configures the application runtime.
type Config struct {
	// Source is a video file, a still image, "testcard", "pattern:<name>", or empty for no
	// source (no-signal noise).
	Source string
	// Width and Height are the surface size used when the display does not
	// report one.
	Width     int
	Height    int
	TargetFPS float64
	RecordFPS int
	Seed      int64
	Autoplay  bool
	Keyboard  bool
	OutputDir string
	Profile   string
	Display   display.Display
	Encoder   recorder.EncoderFactory
	Log       *slog.Logger
}

type inputEvent int

const (
	inputEventTogglePlay inputEvent = iota
	inputEventToggleRecord
	inputEventReset
	inputEventRandomize
	inputEventQuit
)

type commandKind int

const (
	commandPlay commandKind = iota
	commandRecord
)

type command struct {
	kind  commandKind
	on    bool
	reply chan error
}

// App wires the source, effect pipeline, surface, scheduler and recorder
// into one render loop.
type App struct {
	cfg      Config
	log      *slog.Logger
	store    *params.Store
	src      source.Source
	surf     *surface.Surface
	pipeline *effect.Pipeline
	clock    *scheduler.FrameClock
	sched    *scheduler.Scheduler
	sink     *recorder.Sink
	disp     display.Display
	prof     *profiler
	rng      *rand.Rand

	inputEvents chan inputEvent
	commands    chan command
	last        time.Time
	fps         float64
	status      atomic.Pointer[Status]
	closeOnce   sync.Once
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.RecordFPS <= 0 {
		cfg.RecordFPS = recorder.DefaultFrameRate
	}
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 360
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if cfg.Display == nil {
		cfg.Display = display.Headless{Width: cfg.Width, Height: cfg.Height}
	}

	width, height := containerSize(cfg)
	surf, err := surface.New(width, height)
	if err != nil {
		return nil, fmt.Errorf("render surface: %w", err)
	}

	src, err := source.Open(source.Config{
		Path:   cfg.Source,
		Width:  width,
		Height: height,
		Seed:   cfg.Seed,
		Logger: cfg.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("frame source: %w", err)
	}
	if src == nil {
		cfg.Log.Info("app: no source configured, showing no-signal noise")
	}

	a := &App{
		cfg:      cfg,
		log:      cfg.Log.With("component", "app"),
		store:    params.NewStore(params.Defaults()),
		src:      src,
		surf:     surf,
		pipeline: effect.New(rand.New(rand.NewSource(cfg.Seed)), cfg.Log),
		clock:    scheduler.NewFrameClock(),
		sink:     recorder.New(cfg.Encoder, cfg.Log),
		disp:     cfg.Display,
		prof:     newProfiler(cfg.Profile, cfg.Log),
		rng:      rand.New(rand.NewSource(cfg.Seed + 1)),
		commands: make(chan command),
	}
	a.sched = scheduler.New(a.clock, a.tick)
	a.sink.OnComplete = a.saveRecording
	a.publishStatus()
	return a, nil
}

// Run starts the render loop until context cancellation, a quit key or the
// preview being closed.
func (a *App) Run(ctx context.Context) error {
	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	if a.cfg.Keyboard {
		a.startInputListener(inputCtx)
	}
	if a.cfg.Autoplay {
		if err := a.setPlaying(true); err != nil {
			a.log.Warn("app: autoplay rejected", "error", err)
		}
	}
	a.last = time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if evt == inputEventQuit {
				return nil
			}
			a.handleInput(evt)
		case cmd := <-a.commands:
			cmd.reply <- a.apply(cmd)
		case <-ticker.C:
			a.clock.Fire()
			a.measure()
			err := a.disp.Present(a.surf.Image(), a.statusLine())
			if errors.Is(err, display.ErrQuit) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("present: %w", err)
			}
		}
	}
}

// Close stops the loop machinery, finishes a running recording and
// releases held resources.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		a.sched.Close()
		a.sink.Stop()
		<-a.sink.Done()
		if a.src != nil {
			errs = append(errs, a.src.Close())
		}
		errs = append(errs, a.disp.Close(), a.prof.Close())
	})
	return errors.Join(errs...)
}

// tick is the scheduler callback: one effect step per display refresh.
func (a *App) tick() {
	a.prof.beginFrame()
	a.ensureDimensions()
	a.prof.markSection("resize")

	var frame *source.Frame
	if a.src != nil {
		frame = a.src.CurrentFrame()
	}
	a.pipeline.Step(frame, a.store.Current(), a.surf)
	a.prof.markSection("effect")

	a.surf.Publish()
	a.prof.markSection("publish")
	a.prof.endFrame()
}

// ensureDimensions resizes the surface to the container before each step.
func (a *App) ensureDimensions() {
	w, h := containerSize(a.cfg)
	if a.surf.Resize(w, h) {
		a.log.Debug("app: surface resized", "width", w, "height", h)
	}
}

func containerSize(cfg Config) (int, int) {
	w, h := cfg.Display.Size()
	if w <= 0 || h <= 0 {
		return cfg.Width, cfg.Height
	}
	return w, h
}

func (a *App) measure() {
	now := time.Now()
	delta := now.Sub(a.last).Seconds()
	a.last = now
	if delta <= 0 {
		return
	}
	instant := 1 / delta
	if a.fps == 0 {
		a.fps = instant
	} else {
		a.fps = a.fps*0.9 + instant*0.1
	}
	a.publishStatus()
}

func (a *App) handleInput(evt inputEvent) {
	switch evt {
	case inputEventTogglePlay:
		if err := a.setPlaying(a.sched.State() != scheduler.Running); err != nil {
			a.log.Warn("app: play toggle rejected", "error", err)
		}
	case inputEventToggleRecord:
		if err := a.setRecording(a.sink.State() == recorder.Idle); err != nil {
			a.log.Warn("app: record toggle rejected", "error", err)
		}
	case inputEventReset:
		a.store.Reset()
		a.log.Info("app: parameters reset")
	case inputEventRandomize:
		a.randomize()
	}
	a.publishStatus()
}

func (a *App) apply(cmd command) error {
	defer a.publishStatus()
	switch cmd.kind {
	case commandPlay:
		return a.setPlaying(cmd.on)
	case commandRecord:
		return a.setRecording(cmd.on)
	default:
		return fmt.Errorf("unknown command %d", cmd.kind)
	}
}

// setPlaying starts or stops the source and the scheduler together. A source
// that rejects playback leaves both untouched.
func (a *App) setPlaying(on bool) error {
	if on {
		if a.src != nil {
			if err := a.src.Play(); err != nil {
				return fmt.Errorf("play: %w", err)
			}
		}
		a.sched.Start()
		return nil
	}
	a.sched.Stop()
	if a.src != nil {
		if err := a.src.Pause(); err != nil {
			return fmt.Errorf("pause: %w", err)
		}
	}
	return nil
}

func (a *App) setRecording(on bool) error {
	if !on {
		a.sink.Stop()
		return nil
	}
	if err := a.sink.Start(a.surf.Stream(), a.cfg.RecordFPS); err != nil {
		return err
	}
	return nil
}

func (a *App) saveRecording(art recorder.Artifact) {
	if err := a.sink.Err(); err != nil {
		a.log.Warn("app: recording finished with errors", "error", err)
	}
	path, err := art.Save(a.cfg.OutputDir)
	if err != nil {
		a.log.Error("app: save recording", "error", err)
		return
	}
	a.log.Info("app: recording saved", "path", path, "size_bytes", len(art.Data))
}

func (a *App) randomize() {
	p := params.Randomize(a.rng)
	a.store.Set(p)
	a.log.Info("app: randomize parameters",
		"threshold", p.Threshold,
		"chaos", p.Chaos,
		"slices", p.Slices,
		"feedback", p.Feedback,
	)
}

// do hands cmd to the loop goroutine and waits for the result.
func (a *App) do(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Warn("app: keyboard input disabled", "error", err)
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			evt, ok := keyEvent(char, key)
			if !ok {
				continue
			}
			if evt == inputEventQuit {
				events <- evt
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

func keyEvent(char rune, key keyboard.Key) (inputEvent, bool) {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return inputEventQuit, true
	case key == keyboard.KeySpace || char == ' ':
		return inputEventTogglePlay, true
	}
	switch char {
	case 'q', 'Q':
		return inputEventQuit, true
	case 'r', 'R':
		return inputEventToggleRecord, true
	case 'z', 'Z':
		return inputEventReset, true
	case 'g', 'G':
		return inputEventRandomize, true
	}
	return 0, false
}
