package compress

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4Codec is the fastest, lowest-ratio selectable algorithm (SPEC_FULL
// §4.5), intended for high-throughput sinks where CPU cost of
// compression, not on-disk size, is the binding constraint.
type lz4Codec struct{}

func (lz4Codec) Algorithm() Algorithm { return AlgorithmLZ4 }
func (lz4Codec) Extension() string    { return ".lz4" }

func (lz4Codec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
		return nil, err
	}
	return zw, nil
}

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func mapLZ4Level(level int) lz4.CompressionLevel {
	switch {
	case level <= 1:
		return lz4.Fast
	case level <= 5:
		return lz4.Level5
	default:
		return lz4.Level9
	}
}
