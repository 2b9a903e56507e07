// Package sink defines the Sink contract (spec.md §4.3) and the console
// and file variants that share an internal buffered writer.
package sink

import (
	"bufio"
	"io"
	"sync"

	"emberlog/internal/record"
)

// RotationEvent is returned by Sink.RotateIfNeeded when a file-backed sink
// just rotated (spec.md §4.3).
type RotationEvent struct {
	PreviousPath string
	NewPath      string
}

// Sink is the contract every sink variant implements (spec.md §4.3).
// Write may buffer and is not required to be durable on return; Flush
// forces buffered bytes to the OS.
type Sink interface {
	Write(formatted []byte, rec record.Record) error
	Flush() error
	Name() string
	Enabled() bool
	Accepts(level record.Level) bool
	// RotateIfNeeded returns a non-nil *RotationEvent if this call caused
	// a file-backed sink to rotate. Sinks without rotation always return
	// (nil, nil).
	RotateIfNeeded() (*RotationEvent, error)
	Close() error
}

// bufferedWriter is the shared internal buffered writer console and file
// sinks use (spec.md §4.3: "Console and file sinks share an internal
// buffered writer with a configurable buffer size").
type bufferedWriter struct {
	mu  sync.Mutex
	w   *bufio.Writer
	raw io.Writer
}

func newBufferedWriter(w io.Writer, bufSize int) *bufferedWriter {
	if bufSize <= 0 {
		return &bufferedWriter{w: bufio.NewWriterSize(w, 1), raw: w}
	}
	return &bufferedWriter{w: bufio.NewWriterSize(w, bufSize), raw: w}
}

func (b *bufferedWriter) write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.w.Write(p)
	return err
}

func (b *bufferedWriter) flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.w.Flush()
}
