package compress

import (
	"io"

	"github.com/andybalholm/brotli"
)

// brotliCodec trades encode speed for a better compression ratio than
// zstd at equivalent levels (SPEC_FULL §4.5).
type brotliCodec struct{}

func (brotliCodec) Algorithm() Algorithm { return AlgorithmBrotli }
func (brotliCodec) Extension() string    { return ".br" }

func (brotliCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	return brotli.NewWriterLevel(w, clampBrotliLevel(level)), nil
}

func (brotliCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

func clampBrotliLevel(level int) int {
	if level < brotli.BestSpeed {
		return brotli.BestSpeed
	}
	if level > brotli.BestCompression {
		return brotli.BestCompression
	}
	return level
}
