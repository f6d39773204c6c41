package codec_test

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing/quick"

	"github.com/renproject/kadnode/codec"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Length prefix codec", func() {
	enc := codec.LengthPrefixEncoder(codec.PlainEncoder, codec.PlainEncoder)
	dec := codec.LengthPrefixDecoder(codec.PlainDecoder, codec.PlainDecoder)

	Context("when frames are written back to back", func() {
		It("should read each frame separately", func() {
			f := func(frames [][]byte) bool {
				var rw bytes.Buffer
				for _, frame := range frames {
					n, err := enc(&rw, frame)
					Expect(err).ToNot(HaveOccurred())
					Expect(n).To(Equal(len(frame)))
				}
				buf := make([]byte, 4096)
				for _, frame := range frames {
					n, err := dec(&rw, buf)
					Expect(err).ToNot(HaveOccurred())
					Expect(bytes.Equal(buf[:n], frame)).To(BeTrue())
				}
				return rw.Len() == 0
			}
			Expect(quick.Check(f, nil)).To(Succeed())
		})
	})

	Context("when the frame is larger than the buffer", func() {
		It("should return an error without reading the body", func() {
			var rw bytes.Buffer
			data := make([]byte, 128)
			rand.Read(data)
			_, err := enc(&rw, data)
			Expect(err).ToNot(HaveOccurred())

			buf := make([]byte, 64)
			_, err = dec(&rw, buf)
			Expect(errors.Is(err, codec.ErrMessageTooLarge)).To(BeTrue())
			Expect(rw.Len()).To(Equal(128))
		})
	})

	Context("when the stream ends inside a frame", func() {
		It("should return an error", func() {
			var rw bytes.Buffer
			_, err := enc(&rw, []byte("hello world"))
			Expect(err).ToNot(HaveOccurred())
			rw.Truncate(codec.LengthPrefixSize + 3)

			buf := make([]byte, 64)
			_, err = dec(&rw, buf)
			Expect(errors.Is(err, io.ErrUnexpectedEOF)).To(BeTrue())
		})
	})

	Context("when the stream is empty", func() {
		It("should return EOF", func() {
			var rw bytes.Buffer
			_, err := dec(&rw, make([]byte, 64))
			Expect(errors.Is(err, io.EOF)).To(BeTrue())
		})
	})

	Context("when using the framing of nodes", func() {
		It("should bound frames by the buffer of the reader", func() {
			enc, dec := codec.Framed()
			var rw bytes.Buffer
			_, err := enc(&rw, make([]byte, 32))
			Expect(err).ToNot(HaveOccurred())
			Expect(rw.Len()).To(Equal(codec.LengthPrefixSize + 32))

			_, err = dec(&rw, make([]byte, 16))
			Expect(errors.Is(err, codec.ErrMessageTooLarge)).To(BeTrue())
			Expect(rw.Len()).To(Equal(32))
		})
	})
})
