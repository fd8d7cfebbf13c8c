//go:build gst

package recorder

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// gstSession encodes RGBA frames to WebM/VP8.
//
// Pipeline:
//
//	appsrc → videoconvert → vp8enc → webmmux → appsink
//
// Every appsink sample is emitted as one chunk. The pipeline is built on the
// first frame, when the capture size is known.
type gstSession struct {
	log  *slog.Logger
	fps  int
	emit func([]byte)

	pipeline *gst.Pipeline
	src      *app.Source
	width    int
	height   int
	skipped  int

	mu     sync.Mutex
	busErr error
	eos    chan struct{}
	wg     sync.WaitGroup
}

// NewEncoder opens a GStreamer WebM session.
func NewEncoder(cfg EncoderConfig, emit func([]byte)) (Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fps := cfg.FrameRate
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	gst.Init(nil)
	return &gstSession{
		log:  logger,
		fps:  fps,
		emit: emit,
		eos:  make(chan struct{}),
	}, nil
}

func (s *gstSession) open(width, height int) error {
	launch := "appsrc name=src is-live=true do-timestamp=true format=time" +
		" ! videoconvert ! vp8enc deadline=1 ! webmmux streamable=true" +
		" ! appsink name=sink sync=false"
	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	srcElem, err := pipeline.GetElementByName("src")
	if err != nil {
		return fmt.Errorf("find appsrc: %w", err)
	}
	sinkElem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return fmt.Errorf("find appsink: %w", err)
	}

	src := app.SrcFromElement(srcElem)
	src.SetCaps(gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1",
		width, height, s.fps,
	)))

	sink := app.SinkFromElement(sinkElem)
	sink.SetCallbacks(&app.SinkCallbacks{NewSampleFunc: s.onSample})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	s.pipeline = pipeline
	s.src = src
	s.width, s.height = width, height

	s.wg.Add(1)
	go s.watchBus()

	s.log.Debug("recorder: encoder pipeline started", "width", width, "height", height, "fps", s.fps)
	return nil
}

func (s *gstSession) Encode(img *image.RGBA, _ time.Duration) error {
	if err := s.error(); err != nil {
		return err
	}
	b := img.Bounds()
	if s.pipeline == nil {
		if err := s.open(b.Dx(), b.Dy()); err != nil {
			return err
		}
	}
	if b.Dx() != s.width || b.Dy() != s.height {
		// caps are fixed for the session
		s.skipped++
		if s.skipped == 1 {
			s.log.Warn("recorder: surface resized while recording, dropping frames",
				"width", b.Dx(), "height", b.Dy(),
				"session_width", s.width, "session_height", s.height,
			)
		}
		return nil
	}

	if ret := s.src.PushBuffer(gst.NewBufferFromBytes(img.Pix)); ret != gst.FlowOK {
		return fmt.Errorf("push frame: flow %v", ret)
	}
	return nil
}

// Finish sends end-of-stream and waits until the muxer has flushed.
func (s *gstSession) Finish() error {
	if s.pipeline == nil {
		return nil
	}
	s.src.EndStream()
	<-s.eos
	s.wg.Wait()
	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}
	return s.error()
}

func (s *gstSession) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	chunk := make([]byte, len(data))
	copy(chunk, data)
	buffer.Unmap()

	s.emit(chunk)
	return gst.FlowOK
}

func (s *gstSession) error() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busErr
}

func (s *gstSession) watchBus() {
	defer s.wg.Done()
	defer close(s.eos)
	bus := s.pipeline.GetPipelineBus()
	for {
		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			s.log.Error("recorder: encoder error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
			)
			s.mu.Lock()
			s.busErr = fmt.Errorf("encoder: %s", gerr.Error())
			s.mu.Unlock()
			return
		}
	}
}
