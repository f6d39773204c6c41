package codec

import (
	"io"
)

// PlainEncoder writes buf with no framing. A writer that accepts fewer bytes
// without an error is reported as io.ErrShortWrite.
func PlainEncoder(w io.Writer, buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// PlainDecoder reads exactly len(buf) bytes. The stream ending before any
// byte is io.EOF, and ending part way is io.ErrUnexpectedEOF.
func PlainDecoder(r io.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}
