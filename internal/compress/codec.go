// Package compress implements the CompressionConfig.Algorithm codecs
// (spec.md §4.5): compress, compress_file, compress_stream, with a CRC32
// emitted over the original bytes and verified on decompress.
package compress

import "io"

// Algorithm selects a Codec implementation (SPEC_FULL §4.5).
type Algorithm string

const (
	AlgorithmZstd    Algorithm = "zstd"
	AlgorithmBrotli  Algorithm = "brotli"
	AlgorithmLZ4     Algorithm = "lz4"
	AlgorithmDeflate Algorithm = "deflate"
	AlgorithmRLE     Algorithm = "rle"
)

// Codec compresses and decompresses byte streams at a configurable level
// (spec.md §4.5: "Levels map to a speed/ratio tradeoff").
type Codec interface {
	Algorithm() Algorithm
	// Extension is appended to a path when compress_file targets the
	// same path plus extension (spec.md §4.5 "dst_or_same+extension").
	Extension() string
	NewWriter(w io.Writer, level int) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// NewCodec returns the Codec for alg, or an error if alg is not one of
// the selectable algorithms.
func NewCodec(alg Algorithm) (Codec, error) {
	switch alg {
	case AlgorithmZstd:
		return zstdCodec{}, nil
	case AlgorithmBrotli:
		return brotliCodec{}, nil
	case AlgorithmLZ4:
		return lz4Codec{}, nil
	case AlgorithmDeflate:
		return deflateCodec{}, nil
	case AlgorithmRLE:
		return rleCodec{}, nil
	default:
		return nil, &UnknownAlgorithmError{Algorithm: alg}
	}
}

// UnknownAlgorithmError is returned by NewCodec for an unrecognized
// Algorithm.
type UnknownAlgorithmError struct{ Algorithm Algorithm }

func (e *UnknownAlgorithmError) Error() string {
	return "compress: unknown algorithm " + string(e.Algorithm)
}
