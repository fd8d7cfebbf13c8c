//go:build !gst

package recorder

// NewEncoder reports that this build has no video encoder. Build with
// -tags gst for WebM output.
func NewEncoder(EncoderConfig, func([]byte)) (Session, error) {
	return nil, ErrEncoderUnavailable
}
