package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/guidoenr/glitcher/internal/effect"
	"github.com/guidoenr/glitcher/internal/params"
	"github.com/guidoenr/glitcher/internal/recorder"
	"github.com/guidoenr/glitcher/internal/scheduler"
)

// Status is a point-in-time view of the engine for the control surface.
type Status struct {
	Playing     bool         `json:"playing"`
	Recording   string       `json:"recording"`
	RecordError string       `json:"recordError,omitempty"`
	FPS         float64      `json:"fps"`
	Ticks       uint64       `json:"ticks"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Source      string       `json:"source"`
	SourceReady bool         `json:"sourceReady"`
	Effect      effect.Stats `json:"effect"`
}

// Status returns the latest published status. Safe for concurrent use.
func (a *App) Status() Status {
	if st := a.status.Load(); st != nil {
		return *st
	}
	return Status{}
}

// Params returns the current parameter snapshot.
func (a *App) Params() params.Parameters { return a.store.Current() }

// SetParam edits a single parameter, clamped to its range.
func (a *App) SetParam(name string, value float64) (params.Parameters, error) {
	p, err := a.store.SetField(name, value)
	if err != nil {
		return p, err
	}
	a.log.Debug("app: parameter set", "field", name, "value", value)
	return p, nil
}

// ResetParams restores the defaults.
func (a *App) ResetParams() params.Parameters {
	p := a.store.Reset()
	a.log.Info("app: parameters reset")
	return p
}

// SetPlaying asks the loop to play or pause.
func (a *App) SetPlaying(ctx context.Context, on bool) error {
	return a.do(ctx, command{kind: commandPlay, on: on})
}

// SetRecording asks the loop to start or stop a recording.
func (a *App) SetRecording(ctx context.Context, on bool) error {
	return a.do(ctx, command{kind: commandRecord, on: on})
}

// Recording returns the most recent finished recording.
func (a *App) Recording() (recorder.Artifact, bool) {
	return a.sink.Last()
}

// publishStatus must run on the loop goroutine.
func (a *App) publishStatus() {
	w, h := a.surf.Size()
	st := Status{
		Playing:   a.sched.State() == scheduler.Running,
		Recording: a.sink.State().String(),
		FPS:       a.fps,
		Ticks:     a.sched.Ticks(),
		Width:     w,
		Height:    h,
		Source:    a.cfg.Source,
		Effect:    a.pipeline.Stats(),
	}
	if a.src != nil {
		st.SourceReady = a.src.Ready()
	}
	if err := a.sink.Err(); err != nil {
		st.RecordError = err.Error()
	}
	a.status.Store(&st)
}

func (a *App) statusLine() string {
	st := a.Status()
	var b strings.Builder
	b.Grow(128)
	if st.Playing {
		b.WriteString("PLAY")
	} else {
		b.WriteString("PAUSE")
	}
	if st.Recording != recorder.Idle.String() {
		b.WriteString(" | REC ")
		b.WriteString(strings.ToUpper(st.Recording))
	}
	p := a.store.Current()
	fmt.Fprintf(&b, " | thr %.0f bri %.0f chaos %.2f slices %d fb %.2f",
		p.Threshold, p.Brightness, p.Chaos, p.Slices, p.Feedback)
	b.WriteString(" | drawn ")
	b.WriteString(strconv.Itoa(st.Effect.SlicesDrawn))
	if st.Effect.NoSignal {
		b.WriteString(" NO SIGNAL")
	}
	b.WriteString(" | fps ")
	b.WriteString(strconv.FormatFloat(st.FPS, 'f', 1, 64))
	return b.String()
}
