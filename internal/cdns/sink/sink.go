// Package sink implements the Compressing Sink component of spec
// §4.1: durable, optionally compressed byte output to a filesystem
// path or standard output. Grounded on original_source/src/
// streamwriter.hpp and streamwriter.cpp (StreamWriter/GzipStreamWriter/
// XzStreamWriter), translated from RAII-on-destructor semantics to an
// explicit Close().
package sink

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/sinodun-go/cdnswriter/internal/cdnserr"
)

// StdoutName is the path value meaning "write to standard output
// instead of a file" (spec §4.1's "standard-output mode"), matching
// StreamWriter::STDOUT_FILE_NAME in the original.
const StdoutName = "-"

// Sink is the capability set every compression variant exposes (spec
// §9 "Polymorphic sinks"): write_bytes, bytes_written, close,
// suggested_extension, plus is_open for the Orchestrator's rotation
// checks.
type Sink interface {
	Open(path string) error
	Write(p []byte) (int, error)
	BytesWritten() uint64
	IsOpen() bool
	Close() error
	SuggestedExtension() string
}

// countingWriter tracks bytes actually landed on the underlying file,
// so BytesWritten() reflects post-compression size as spec §4.1
// requires ("rotation triggered by max_file_size operates on the
// on-disk size").
type countingWriter struct {
	w   io.Writer
	n   uint64
	err error // first write error, latched so Close can discard the file
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}

// base holds the filesystem plumbing shared by every variant: open a
// temporary file, rename to the final name on clean close, remove the
// temporary file on error. Standard-output mode bypasses all of it.
type base struct {
	logging    bool
	name       string
	tempName   string
	file       *os.File
	counting   *countingWriter
	stdoutMode bool
	stdout     io.Writer // overridable for tests; defaults to os.Stdout
	open       bool
}

func (b *base) openFile(path string) error {
	if path == "" {
		return cdnserr.New("sink", cdnserr.InvalidArgument, "empty output pattern")
	}
	b.name = path
	if path == StdoutName {
		b.stdoutMode = true
		if b.stdout == nil {
			b.stdout = os.Stdout
		}
		b.counting = &countingWriter{w: b.stdout}
		b.open = true
		return nil
	}

	b.tempName = path + "." + uuid.NewString() + ".tmp"
	if b.logging {
		log.Printf("cdns/sink: opening temporary file: %s", b.tempName)
	}
	f, err := os.Create(b.tempName)
	if err != nil {
		return cdnserr.Wrap("sink", cdnserr.IoError, err)
	}
	b.file = f
	b.counting = &countingWriter{w: f}
	b.open = true
	return nil
}

// finishFile closes the temp file and renames it into place. On
// failure, including any earlier failed write, it removes the
// temporary file, per spec §4.1/§7.
func (b *base) finishFile(closeErr error) error {
	if b.stdoutMode {
		b.open = false
		return closeErr
	}
	if closeErr == nil && b.counting.err != nil {
		closeErr = cdnserr.Wrap("sink", cdnserr.IoError, b.counting.err)
	}
	if cerr := b.file.Close(); cerr != nil && closeErr == nil {
		closeErr = cdnserr.Wrap("sink", cdnserr.IoError, cerr)
	}
	b.open = false

	if closeErr != nil {
		os.Remove(b.tempName)
		return closeErr
	}

	if b.logging {
		log.Printf("cdns/sink: renaming temporary file: %s to %s", b.tempName, b.name)
	}
	if err := os.Rename(b.tempName, b.name); err != nil {
		os.Remove(b.tempName)
		return cdnserr.Wrap("sink", cdnserr.IoError, err)
	}
	return nil
}

// SetStdout overrides the writer used in standard-output mode, a test
// hook for capturing stdout-mode output without a real terminal.
func (s *NoneSink) SetStdout(w io.Writer) { s.stdout = w }
func (s *GzipSink) SetStdout(w io.Writer) { s.stdout = w }
func (s *XzSink) SetStdout(w io.Writer)   { s.stdout = w }

func (b *base) BytesWritten() uint64 {
	if b.counting == nil {
		return 0
	}
	return b.counting.n
}

func (b *base) IsOpen() bool { return b.open }

// NoneSink writes uncompressed bytes straight through (spec §4.1's
// "none" compression variant).
type NoneSink struct {
	base
}

// NewNoneSink builds an uncompressed sink. logging mirrors the
// original's `logging` open() parameter.
func NewNoneSink(logging bool) *NoneSink {
	return &NoneSink{base: base{logging: logging}}
}

func (s *NoneSink) Open(path string) error { return s.openFile(path) }

func (s *NoneSink) Write(p []byte) (int, error) {
	n, err := s.counting.Write(p)
	if err != nil {
		return n, cdnserr.Wrap("sink", cdnserr.IoError, err)
	}
	return n, nil
}

func (s *NoneSink) Close() error { return s.finishFile(nil) }

func (s *NoneSink) SuggestedExtension() string { return "" }

// GzipSink gzips output via klauspost/compress/gzip, an accelerated
// drop-in for the standard library's compress/gzip.
type GzipSink struct {
	base
	level int
	gz    *gzip.Writer
}

// NewGzipSink builds a gzip sink at the given compression level
// (0-9, matching gzip's convention; spec §4.1's "compression level"
// constructor parameter).
func NewGzipSink(level int, logging bool) (*GzipSink, error) {
	if level < gzip.NoCompression || level > gzip.BestCompression {
		return nil, cdnserr.New("sink", cdnserr.InvalidArgument, fmt.Sprintf("invalid gzip level %d", level))
	}
	return &GzipSink{base: base{logging: logging}, level: level}, nil
}

func (s *GzipSink) Open(path string) error {
	if err := s.openFile(path); err != nil {
		return err
	}
	gz, err := gzip.NewWriterLevel(s.counting, s.level)
	if err != nil {
		return cdnserr.Wrap("sink", cdnserr.CompressionError, err)
	}
	gz.Name = s.name
	gz.Comment = "Compressed by cdnswriter"
	s.gz = gz
	return nil
}

func (s *GzipSink) Write(p []byte) (int, error) {
	n, err := s.gz.Write(p)
	if err != nil {
		return n, cdnserr.Wrap("sink", cdnserr.CompressionError, err)
	}
	return n, nil
}

func (s *GzipSink) Close() error {
	err := s.gz.Close()
	if err != nil {
		err = cdnserr.Wrap("sink", cdnserr.CompressionError, err)
	}
	return s.finishFile(err)
}

func (s *GzipSink) SuggestedExtension() string { return ".gz" }

// XzSink compresses via ulikunitz/xz, a pure-Go LZMA2 implementation.
// It has no discrete preset-level knob like liblzma's easy encoder;
// level is accepted for interface parity with GzipSink and validated,
// but otherwise unused.
type XzSink struct {
	base
	level int
	xzw   *xz.Writer
}

// NewXzSink builds an xz sink. level is validated against the 0-9
// range the original CLI exposes even though ulikunitz/xz itself
// doesn't vary behavior by level.
func NewXzSink(level int, logging bool) (*XzSink, error) {
	if level < 0 || level > 9 {
		return nil, cdnserr.New("sink", cdnserr.InvalidArgument, fmt.Sprintf("invalid xz level %d", level))
	}
	return &XzSink{base: base{logging: logging}, level: level}, nil
}

func (s *XzSink) Open(path string) error {
	if err := s.openFile(path); err != nil {
		return err
	}
	w, err := xz.NewWriter(s.counting)
	if err != nil {
		return cdnserr.Wrap("sink", cdnserr.CompressionError, err)
	}
	s.xzw = w
	return nil
}

func (s *XzSink) Write(p []byte) (int, error) {
	n, err := s.xzw.Write(p)
	if err != nil {
		return n, cdnserr.Wrap("sink", cdnserr.CompressionError, err)
	}
	return n, nil
}

// Close drives the xz writer's finish action (ulikunitz/xz's Close
// writes the LZMA2 end-of-stream marker and footer, the Go analogue
// of the original's `codeLzmaStream(LZMA_FINISH)` loop) and raises a
// CompressionError for anything it returns.
func (s *XzSink) Close() error {
	err := s.xzw.Close()
	if err != nil {
		err = cdnserr.Wrap("sink", cdnserr.CompressionError, err)
	}
	return s.finishFile(err)
}

func (s *XzSink) SuggestedExtension() string { return ".xz" }
