//go:build !gst

package source

import (
	"errors"
	"testing"
)

func TestOpenVideoWithoutGStreamer(t *testing.T) {
	src, err := Open(Config{Path: "clip.mp4"})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if src != nil {
		t.Fatalf("expected nil source, got %T", src)
	}
}
