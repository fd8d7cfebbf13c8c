//go:build !gst

package source

import (
	"fmt"
	"log/slog"
)

// Decoder is unavailable without GStreamer.
type Decoder struct{ Static }

// NewDecoder reports that video decoding needs the gst build tag.
func NewDecoder(path string, _ *slog.Logger) (*Decoder, error) {
	return nil, fmt.Errorf("%w: decoding %s requires a build with -tags gst", ErrUnsupported, path)
}
