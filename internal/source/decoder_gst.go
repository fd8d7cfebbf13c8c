//go:build gst

package source

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Decoder plays a video file through GStreamer and exposes the most recent
// decoded frame. Frames are published whole; a published frame is never
// written again.
//
// Pipeline:
//
//	filesrc → decodebin → videoconvert → capsfilter(RGBA) → appsink
type Decoder struct {
	log      *slog.Logger
	path     string
	pipeline *gst.Pipeline
	sink     *app.Sink

	latest  atomic.Pointer[Frame]
	playing atomic.Bool
	seq     atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDecoder builds the pipeline in the PAUSED state so the first frame is
// prerolled; call Play to start advancing.
func NewDecoder(path string, logger *slog.Logger) (*Decoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gst.Init(nil)

	launch := fmt.Sprintf(
		"filesrc location=%q ! decodebin ! videoconvert ! video/x-raw,format=RGBA ! appsink name=sink",
		path,
	)
	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, fmt.Errorf("find appsink: %w", err)
	}
	sink := app.SinkFromElement(elem)
	sink.SetProperty("sync", true)     // pace at the video's own rate
	sink.SetProperty("max-buffers", 1) // keep only the latest frame
	sink.SetProperty("drop", true)

	ctx, cancel := context.WithCancel(context.Background())
	d := &Decoder{
		log:      logger.With("component", "decoder"),
		path:     path,
		pipeline: pipeline,
		sink:     sink,
		ctx:      ctx,
		cancel:   cancel,
	}
	d.latest.Store(&Frame{})

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc:  d.onSample,
		NewPrerollFunc: d.onPreroll,
	})

	if err := pipeline.SetState(gst.StatePaused); err != nil {
		cancel()
		return nil, fmt.Errorf("preroll pipeline: %w", err)
	}

	d.wg.Add(1)
	go d.watchBus()

	d.log.Info("decoder: pipeline created", "path", path)
	return d, nil
}

// CurrentFrame returns the latest decoded frame. Before the first frame
// arrives the returned frame is not Ready.
func (d *Decoder) CurrentFrame() *Frame { return d.latest.Load() }

func (d *Decoder) Ready() bool   { return d.latest.Load().Ready }
func (d *Decoder) Playing() bool { return d.playing.Load() }

// Play starts playback. A rejected state change is returned and leaves the
// play state untouched.
func (d *Decoder) Play() error {
	if err := d.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("play %s: %w", d.path, err)
	}
	d.playing.Store(true)
	return nil
}

// Pause holds the current frame.
func (d *Decoder) Pause() error {
	if err := d.pipeline.SetState(gst.StatePaused); err != nil {
		return fmt.Errorf("pause %s: %w", d.path, err)
	}
	d.playing.Store(false)
	return nil
}

// Close tears the pipeline down and waits for the bus watcher.
func (d *Decoder) Close() error {
	d.cancel()
	err := d.pipeline.SetState(gst.StateNull)
	d.wg.Wait()
	d.playing.Store(false)
	return err
}

func (d *Decoder) onPreroll(sink *app.Sink) gst.FlowReturn {
	return d.publish(sink.PullPreroll())
}

func (d *Decoder) onSample(sink *app.Sink) gst.FlowReturn {
	return d.publish(sink.PullSample())
}

func (d *Decoder) publish(sample *gst.Sample) gst.FlowReturn {
	if sample == nil {
		d.log.Warn("decoder: empty sample, skipping frame")
		return gst.FlowOK
	}
	width, height, ok := sampleSize(sample)
	if !ok {
		d.log.Warn("decoder: sample without dimensions, skipping frame")
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) < width*height*4 {
		buffer.Unmap()
		d.log.Warn("decoder: short buffer", "size_bytes", len(data), "width", width, "height", height)
		return gst.FlowOK
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, data[:width*height*4])
	buffer.Unmap()

	frame := &Frame{
		Image:  img,
		Width:  width,
		Height: height,
		Ready:  true,
		Seq:    d.seq.Add(1),
	}
	d.latest.Store(frame)
	return gst.FlowOK
}

func sampleSize(sample *gst.Sample) (int, int, bool) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, false
	}
	st := caps.GetStructureAt(0)
	w, err := st.GetValue("width")
	if err != nil {
		return 0, 0, false
	}
	h, err := st.GetValue("height")
	if err != nil {
		return 0, 0, false
	}
	width, okW := w.(int)
	height, okH := h.(int)
	return width, height, okW && okH && width > 0 && height > 0
}

// watchBus loops the video on EOS and logs pipeline errors.
func (d *Decoder) watchBus() {
	defer d.wg.Done()
	bus := d.pipeline.GetPipelineBus()
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			d.log.Debug("decoder: end of stream, looping", "path", d.path)
			if !d.pipeline.SeekSimple(0, gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
				d.log.Warn("decoder: loop seek rejected", "path", d.path)
			}
		case gst.MessageError:
			gerr := msg.ParseError()
			d.log.Error("decoder: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
			)
		}
	}
}
