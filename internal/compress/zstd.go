package compress

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec is the default algorithm (SPEC_FULL §4.5), backed by
// klauspost/compress/zstd — the same library the teacher uses for its own
// chunk compression, minus the seekable-frame format this repository has
// no need for (plain records are appended, never randomly re-read by
// byte offset).
type zstdCodec struct{}

func (zstdCodec) Algorithm() Algorithm { return AlgorithmZstd }
func (zstdCodec) Extension() string    { return ".zst" }

func (zstdCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
}

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return readerNopCloser{dec}, nil
}

// readerNopCloser adapts a *zstd.Decoder (which exposes Close but not
// through io.ReadCloser's signature in every version) to io.ReadCloser.
type readerNopCloser struct{ *zstd.Decoder }

func (r readerNopCloser) Close() error {
	r.Decoder.Close()
	return nil
}

func mapZstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 3:
		return zstd.SpeedDefault
	case level <= 6:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
