package compress

import (
	"compress/flate"
	"io"
)

// deflateCodec implements spec.md §4.5's "DEFLATE-compatible, zlib-wrapped,
// raw" family. No third-party library in the retrieved example pack wraps
// stdlib DEFLATE with anything this repository needs beyond what
// compress/flate already provides directly, so this one codec is built on
// the standard library — see DESIGN.md.
type deflateCodec struct{}

func (deflateCodec) Algorithm() Algorithm { return AlgorithmDeflate }
func (deflateCodec) Extension() string    { return ".deflate" }

func (deflateCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	return flate.NewWriter(w, level)
}

func (deflateCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}
