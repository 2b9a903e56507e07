package compress

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// CorruptionError is returned by Decompress/DecompressStream when the
// recorded CRC32 does not match the decompressed bytes (spec.md §4.5: "a
// mismatch surfaces a corruption error").
type CorruptionError struct {
	Want, Got uint32
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("compress: corruption detected: crc32 want %08x got %08x", e.Want, e.Got)
}

// crcTrailerSize is the length in bytes of the CRC32 trailer appended
// after the compressed payload.
const crcTrailerSize = 4

// Compress implements spec.md §4.5's `compress(bytes) -> compressed_bytes`:
// the codec's compressed stream followed by a 4-byte big-endian CRC32
// (IEEE) of the original, uncompressed bytes.
func Compress(codec Codec, level int, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := codec.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("compress: new writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compress: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: close writer: %w", err)
	}
	sum := crc32.ChecksumIEEE(data)
	out := buf.Bytes()
	out = append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
	return out, nil
}

// Decompress reverses Compress, verifying the trailing CRC32 against the
// recovered bytes.
func Decompress(codec Codec, compressed []byte) ([]byte, error) {
	if len(compressed) < crcTrailerSize {
		return nil, fmt.Errorf("compress: input shorter than crc trailer")
	}
	payload := compressed[:len(compressed)-crcTrailerSize]
	trailer := compressed[len(compressed)-crcTrailerSize:]
	want := uint32(trailer[0])<<24 | uint32(trailer[1])<<16 | uint32(trailer[2])<<8 | uint32(trailer[3])

	r, err := codec.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("compress: new reader: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compress: read: %w", err)
	}
	got := crc32.ChecksumIEEE(data)
	if got != want {
		return nil, &CorruptionError{Want: want, Got: got}
	}
	return data, nil
}

// CompressStream implements spec.md §4.5's `compress_stream(reader,
// writer)`: reads r to completion, writes the compressed form plus CRC32
// trailer to w.
func CompressStream(codec Codec, level int, r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("compress: read stream: %w", err)
	}
	out, err := Compress(codec, level, data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Result is returned by CompressFile (spec.md §4.5 "CompressionResult").
type Result struct {
	SourcePath      string
	DestPath        string
	OriginalBytes   int
	CompressedBytes int
}

// CompressFile implements spec.md §4.5's `compress_file(src,
// dst_or_same+extension) -> CompressionResult`. If dst is empty, the
// destination is src+codec.Extension().
func CompressFile(codec Codec, level int, src, dst string) (Result, error) {
	if dst == "" {
		dst = src + codec.Extension()
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return Result{}, fmt.Errorf("compress: read source file: %w", err)
	}
	out, err := Compress(codec, level, data)
	if err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return Result{}, fmt.Errorf("compress: write destination file: %w", err)
	}
	return Result{SourcePath: src, DestPath: dst, OriginalBytes: len(data), CompressedBytes: len(out)}, nil
}

// Callbacks fire around a background CompressFile call (spec.md §4.5:
// "callbacks fire on start, success, error, and archive-delete events").
// ArchiveDelete fires when the caller additionally wants the original
// source file removed once compression succeeds (a common rotation-engine
// follow-up, see internal/rotation's Hooks.Compress).
type Callbacks struct {
	OnStart         func(src string)
	OnSuccess       func(Result)
	OnError         func(src string, err error)
	OnArchiveDelete func(src string, err error)
	DeleteSource    bool
}

// Handle is returned by CompressFileAsync; Done closes once the
// background compression (and, if requested, source deletion) completes.
type Handle struct {
	Done   chan struct{}
	Result Result
	Err    error
}

// CompressFileAsync implements spec.md §4.5's `background=true` variant:
// the work is handed to submit (typically internal/pool.Pool.Submit) and
// runs Callbacks around it. If submit is nil, the work still runs
// asynchronously, in a plain goroutine, rather than blocking the caller —
// compress_file's contract is "returns a handle", not "runs on the pool
// specifically".
func CompressFileAsync(codec Codec, level int, src, dst string, cb Callbacks, submit func(func())) *Handle {
	h := &Handle{Done: make(chan struct{})}
	task := func() {
		defer close(h.Done)
		if cb.OnStart != nil {
			cb.OnStart(src)
		}
		res, err := CompressFile(codec, level, src, dst)
		h.Result, h.Err = res, err
		if err != nil {
			if cb.OnError != nil {
				cb.OnError(src, err)
			}
			return
		}
		if cb.OnSuccess != nil {
			cb.OnSuccess(res)
		}
		if cb.DeleteSource {
			delErr := os.Remove(src)
			if cb.OnArchiveDelete != nil {
				cb.OnArchiveDelete(src, delErr)
			}
		}
	}
	if submit != nil {
		submit(task)
	} else {
		go task()
	}
	return h
}
