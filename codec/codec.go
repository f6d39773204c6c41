// Package codec delimits wire messages on a byte stream.
//
// A frame is read into a caller-owned buffer, and the length of that buffer
// is the largest frame the caller accepts. Connections shrink or grow the
// buffer to change the bound (for example, before and after a handshake), so
// that a remote node cannot make the reader allocate.
package codec

import (
	"errors"
	"io"
)

// ErrMessageTooLarge is returned when a frame does not fit in the bound given
// by the caller's buffer.
var ErrMessageTooLarge = errors.New("message too large")

// An Encoder writes one frame holding buf, and returns the number of bytes of
// buf that were written.
type Encoder func(w io.Writer, buf []byte) (int, error)

// A Decoder reads one frame into buf, and returns the length of the frame.
// Frames larger than buf are an error.
type Decoder func(r io.Reader, buf []byte) (int, error)

// Framed returns the length-prefixed Encoder and Decoder used on every
// connection between nodes.
func Framed() (Encoder, Decoder) {
	return LengthPrefixEncoder(PlainEncoder, PlainEncoder), LengthPrefixDecoder(PlainDecoder, PlainDecoder)
}
