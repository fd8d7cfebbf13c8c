package recorder

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guidoenr/glitcher/internal/surface"
)

type fakeStream struct {
	observers atomic.Int32
	snap      atomic.Pointer[surface.Snapshot]
}

func (f *fakeStream) Observe() func() {
	f.observers.Add(1)
	var once sync.Once
	return func() { once.Do(func() { f.observers.Add(-1) }) }
}

func (f *fakeStream) Latest() *surface.Snapshot { return f.snap.Load() }

type fakeSession struct {
	encodeErr error
	tail      []byte
	emit      func([]byte)
	encoded   atomic.Int32
	finished  atomic.Bool
}

func (f *fakeSession) Encode(*image.RGBA, time.Duration) error {
	f.encoded.Add(1)
	return f.encodeErr
}

func (f *fakeSession) Finish() error {
	f.finished.Store(true)
	if f.tail != nil {
		f.emit(f.tail)
	}
	return nil
}

// fakeEncoder hands out the given session and remembers each emit callback.
type fakeEncoder struct {
	mu       sync.Mutex
	sessions []*fakeSession
	next     func() *fakeSession
	err      error
}

func (f *fakeEncoder) factory(_ EncoderConfig, emit func([]byte)) (Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSession{}
	if f.next != nil {
		s = f.next()
	}
	s.emit = emit
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeEncoder) last() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[len(f.sessions)-1]
}

func wait(t *testing.T, s *Sink) Artifact {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("recording did not finalize")
	}
	art, ok := s.Last()
	if !ok {
		t.Fatalf("no artifact after finalize")
	}
	return art
}

func TestEmptyRecordingYieldsEmptyArtifact(t *testing.T) {
	enc := &fakeEncoder{}
	s := New(enc.factory, nil)
	stream := &fakeStream{}
	if err := s.Start(stream, 30); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
	art := wait(t, s)
	if art.Data == nil || len(art.Data) != 0 || art.Chunks != 0 {
		t.Fatalf("artifact=%+v want empty", art)
	}
	if art.Name != "glitch_effect.webm" || art.MIME != "video/webm" {
		t.Fatalf("name=%q mime=%q", art.Name, art.MIME)
	}
	if !enc.last().finished.Load() {
		t.Fatalf("session not finished")
	}
	if stream.observers.Load() != 0 {
		t.Fatalf("stream still observed after finalize")
	}
	if s.State() != Idle {
		t.Fatalf("state=%s", s.State())
	}
}

func TestChunksConcatenatedInOrder(t *testing.T) {
	enc := &fakeEncoder{}
	s := New(enc.factory, nil)
	var completed []Artifact
	s.OnComplete = func(a Artifact) { completed = append(completed, a) }

	if err := s.Start(&fakeStream{}, 30); err != nil {
		t.Fatalf("start: %v", err)
	}
	emit := enc.last().emit
	emit([]byte("c1"))
	emit(nil)
	emit([]byte("c2-"))
	emit([]byte("c3"))
	s.Stop()
	art := wait(t, s)

	if !bytes.Equal(art.Data, []byte("c1c2-c3")) || art.Chunks != 3 {
		t.Fatalf("data=%q chunks=%d", art.Data, art.Chunks)
	}
	if len(completed) != 1 || completed[0].Session != art.Session || art.Session == "" {
		t.Fatalf("completion=%+v", completed)
	}
}

func TestFlushedChunksKept(t *testing.T) {
	enc := &fakeEncoder{next: func() *fakeSession { return &fakeSession{tail: []byte("tail")} }}
	s := New(enc.factory, nil)
	if err := s.Start(&fakeStream{}, 30); err != nil {
		t.Fatalf("start: %v", err)
	}
	enc.last().emit([]byte("head-"))
	s.Stop()
	if art := wait(t, s); string(art.Data) != "head-tail" {
		t.Fatalf("data=%q", art.Data)
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	s := New((&fakeEncoder{}).factory, nil)
	s.Stop()
	select {
	case <-s.Done():
	default:
		t.Fatalf("idle sink should report done")
	}
	if _, ok := s.Last(); ok {
		t.Fatalf("artifact without recording")
	}
}

func TestStartWhileCapturingIsBusy(t *testing.T) {
	s := New((&fakeEncoder{}).factory, nil)
	if err := s.Start(&fakeStream{}, 30); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(&fakeStream{}, 30); !errors.Is(err, ErrBusy) {
		t.Fatalf("err=%v want ErrBusy", err)
	}
	s.Stop()
	wait(t, s)
}

func TestLateChunksDiscardedAndRestartClears(t *testing.T) {
	enc := &fakeEncoder{}
	s := New(enc.factory, nil)
	if err := s.Start(&fakeStream{}, 30); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := enc.last().emit
	first([]byte("a"))
	s.Stop()
	wait(t, s)

	first([]byte("late"))
	if art, _ := s.Last(); string(art.Data) != "a" {
		t.Fatalf("late chunk changed artifact: %q", art.Data)
	}

	if err := s.Start(&fakeStream{}, 30); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, ok := s.Last(); ok {
		t.Fatalf("restart must clear the previous artifact")
	}
	first([]byte("stale"))
	enc.last().emit([]byte("b"))
	s.Stop()
	if art := wait(t, s); string(art.Data) != "b" {
		t.Fatalf("data=%q want b", art.Data)
	}
}

func TestCaptureEncodesSnapshots(t *testing.T) {
	enc := &fakeEncoder{}
	s := New(enc.factory, nil)
	stream := &fakeStream{}
	stream.snap.Store(&surface.Snapshot{Image: image.NewRGBA(image.Rect(0, 0, 2, 2)), Seq: 1})
	if err := s.Start(stream, 200); err != nil {
		t.Fatalf("start: %v", err)
	}
	if stream.observers.Load() != 1 {
		t.Fatalf("recording must observe the stream")
	}
	deadline := time.Now().Add(2 * time.Second)
	for enc.last().encoded.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("capture did not encode frames")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	wait(t, s)
}

func TestEncodeFailureIsSurfacedAndFinalizable(t *testing.T) {
	boom := errors.New("boom")
	enc := &fakeEncoder{next: func() *fakeSession { return &fakeSession{encodeErr: boom} }}
	s := New(enc.factory, nil)
	stream := &fakeStream{}
	stream.snap.Store(&surface.Snapshot{Image: image.NewRGBA(image.Rect(0, 0, 2, 2))})
	if err := s.Start(stream, 200); err != nil {
		t.Fatalf("start: %v", err)
	}
	enc.last().emit([]byte("kept"))

	deadline := time.Now().Add(2 * time.Second)
	for s.Err() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("encode error not surfaced")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("err=%v", s.Err())
	}
	if s.State() != Capturing {
		t.Fatalf("failure must wait for an explicit stop, state=%s", s.State())
	}
	s.Stop()
	if art := wait(t, s); string(art.Data) != "kept" {
		t.Fatalf("partial data lost: %q", art.Data)
	}
}

func TestEncoderUnavailable(t *testing.T) {
	s := New((&fakeEncoder{err: ErrEncoderUnavailable}).factory, nil)
	stream := &fakeStream{}
	if err := s.Start(stream, 30); !errors.Is(err, ErrEncoderUnavailable) {
		t.Fatalf("err=%v", err)
	}
	if s.State() != Idle || stream.observers.Load() != 0 {
		t.Fatalf("failed start changed state")
	}
}

func TestArtifactSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	art := Artifact{Name: ArtifactName, MIME: ArtifactMIME, Data: []byte("webm")}
	path, err := art.Save(dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "webm" {
		t.Fatalf("read back %q err=%v", got, err)
	}
	if filepath.Base(path) != "glitch_effect.webm" {
		t.Fatalf("path=%s", path)
	}
}
