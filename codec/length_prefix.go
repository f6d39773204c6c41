package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// LengthPrefixSize is the number of bytes in the big-endian length prefix of
// a frame.
const LengthPrefixSize = 4

// LengthPrefixEncoder returns an Encoder that writes the length of the buffer
// using the prefix Encoder, followed by the buffer using the body Encoder. The
// returned count excludes the prefix.
func LengthPrefixEncoder(prefixEnc Encoder, bodyEnc Encoder) Encoder {
	return func(w io.Writer, buf []byte) (int, error) {
		if uint64(len(buf)) > uint64(^uint32(0)) {
			return 0, fmt.Errorf("encoding data length: %w", ErrMessageTooLarge)
		}
		prefix := [LengthPrefixSize]byte{}
		binary.BigEndian.PutUint32(prefix[:], uint32(len(buf)))
		if _, err := prefixEnc(w, prefix[:]); err != nil {
			return 0, fmt.Errorf("encoding data length: %w", err)
		}
		n, err := bodyEnc(w, buf)
		if err != nil {
			return n, fmt.Errorf("encoding data: %w", err)
		}
		return n, nil
	}
}

// LengthPrefixDecoder returns a Decoder that reads a length using the prefix
// Decoder, and then reads exactly that many bytes into the buffer using the
// body Decoder. A length greater than the buffer is rejected with
// ErrMessageTooLarge before any of the body is read.
func LengthPrefixDecoder(prefixDec Decoder, bodyDec Decoder) Decoder {
	return func(r io.Reader, buf []byte) (int, error) {
		prefix := [LengthPrefixSize]byte{}
		if _, err := prefixDec(r, prefix[:]); err != nil {
			return 0, fmt.Errorf("decoding data length: %w", err)
		}
		n := binary.BigEndian.Uint32(prefix[:])
		if uint64(n) > uint64(len(buf)) {
			return 0, fmt.Errorf("decoding data length: expected at most %v, got %v: %w", len(buf), n, ErrMessageTooLarge)
		}
		m, err := bodyDec(r, buf[:n])
		if err != nil {
			return m, fmt.Errorf("decoding data: %w", err)
		}
		return m, nil
	}
}
