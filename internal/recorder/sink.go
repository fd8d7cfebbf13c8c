// Package recorder captures the render surface at a fixed rate, collects the
// encoded chunks and turns them into a single WebM artifact on stop.
package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guidoenr/glitcher/internal/surface"
)

var (
	// ErrEncoderUnavailable is returned when no video encoder is built in.
	ErrEncoderUnavailable = errors.New("recorder: encoder unavailable")
	// ErrBusy is returned by Start while a recording is active or finalizing.
	ErrBusy = errors.New("recorder: busy")
)

const (
	ArtifactName     = "glitch_effect.webm"
	ArtifactMIME     = "video/webm"
	DefaultFrameRate = 30
)

// State is the sink lifecycle state.
type State int

const (
	Idle State = iota
	Capturing
	Finalizing
)

func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Finalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// Capturer is a stream of surface snapshots. *surface.Stream implements it.
type Capturer interface {
	Observe() (release func())
	Latest() *surface.Snapshot
}

// Session is one encoding session. Encode and Finish are called from a
// single goroutine. Finish returns once every chunk has been emitted.
type Session interface {
	Encode(img *image.RGBA, at time.Duration) error
	Finish() error
}

// EncoderConfig configures a Session.
type EncoderConfig struct {
	FrameRate int
	Logger    *slog.Logger
}

// EncoderFactory opens a session that reports encoded data through emit.
// emit may be called from any goroutine.
type EncoderFactory func(cfg EncoderConfig, emit func(chunk []byte)) (Session, error)

// Artifact is a finished recording.
type Artifact struct {
	Name    string
	MIME    string
	Data    []byte
	Session string
	Chunks  int
}

// Save writes the artifact into dir and returns the file path.
func (a Artifact) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, a.Name)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Sink records the capture stream into chunks.
type Sink struct {
	newSession EncoderFactory
	log        *slog.Logger

	// OnComplete, if set, is called with every finished artifact.
	OnComplete func(Artifact)

	mu       sync.Mutex
	state    State
	id       string
	chunks   [][]byte
	err      error
	stopCh   chan struct{}
	done     chan struct{}
	last     *Artifact
	captured int
}

// New returns an idle sink. A nil factory selects the built-in encoder.
func New(factory EncoderFactory, logger *slog.Logger) *Sink {
	if factory == nil {
		factory = NewEncoder
	}
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	close(done)
	return &Sink{
		newSession: factory,
		log:        logger.With("component", "recorder"),
		done:       done,
	}
}

// Start clears the previous recording and begins capturing stream at
// frameRate frames per second (DefaultFrameRate when <= 0).
func (s *Sink) Start(stream Capturer, frameRate int) error {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrBusy
	}

	id := uuid.New().String()
	session, err := s.newSession(EncoderConfig{FrameRate: frameRate, Logger: s.log}, s.collector(id))
	if err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	s.id = id
	s.chunks = nil
	s.err = nil
	s.last = nil
	s.captured = 0
	s.state = Capturing
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	captureDone := make(chan struct{})
	release := stream.Observe()
	go s.capture(stream, session, frameRate, s.stopCh, captureDone)
	go s.finalize(id, session, release, captureDone, s.done)

	s.log.Info("recorder: capture started", "session", id, "fps", frameRate)
	return nil
}

// Stop finalizes the current recording asynchronously. Done is closed and
// OnComplete fires once the artifact is ready. Stop while idle is a no-op.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Capturing {
		return
	}
	s.state = Finalizing
	close(s.stopCh)
	s.log.Info("recorder: finalizing", "session", s.id, "chunks", len(s.chunks))
}

// State returns the lifecycle state.
func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the most recent recording has been finalized.
func (s *Sink) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the failure of the most recent session, if any.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Last returns the most recent artifact.
func (s *Sink) Last() (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Artifact{}, false
	}
	return *s.last, true
}

// collector appends chunks for session id. Chunks arriving once the session
// is finalized are dropped.
func (s *Sink) collector(id string) func([]byte) {
	return func(chunk []byte) {
		if len(chunk) == 0 {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.id != id || s.state == Idle {
			s.log.Debug("recorder: late chunk dropped", "session", id, "size_bytes", len(chunk))
			return
		}
		s.chunks = append(s.chunks, bytes.Clone(chunk))
	}
}

func (s *Sink) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *Sink) capture(stream Capturer, session Session, frameRate int, stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(frameRate))
	start := time.Now()
	var frames int
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		s.captured = frames
		s.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := stream.Latest()
			if snap == nil || snap.Image == nil {
				continue
			}
			if err := session.Encode(snap.Image, time.Since(start)); err != nil {
				s.log.Error("recorder: encode failed, capture halted", "error", err)
				s.fail(fmt.Errorf("encode frame %d: %w", frames, err))
				<-stop
				return
			}
			frames++
		}
	}
}

func (s *Sink) finalize(id string, session Session, release func(), captureDone <-chan struct{}, done chan struct{}) {
	<-captureDone
	release()

	if err := session.Finish(); err != nil {
		s.log.Error("recorder: finalize failed", "session", id, "error", err)
		s.fail(fmt.Errorf("finalize: %w", err))
	}

	s.mu.Lock()
	art := Artifact{
		Name:    ArtifactName,
		MIME:    ArtifactMIME,
		Data:    bytes.Join(s.chunks, nil),
		Session: id,
		Chunks:  len(s.chunks),
	}
	s.last = &art
	s.chunks = nil
	s.state = Idle
	frames := s.captured
	onComplete := s.OnComplete
	s.mu.Unlock()

	s.log.Info("recorder: artifact ready",
		"session", id,
		"frames", frames,
		"chunks", art.Chunks,
		"size_bytes", len(art.Data),
	)
	if onComplete != nil {
		onComplete(art)
	}
	close(done)
}
