package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestNoneSinkWritesAndRenames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.cdns")

	s := NewNoneSink(false)
	if err := s.Open(path); err != nil {
		t.Fatalf("open: %s", err)
	}
	if !s.IsOpen() {
		t.Fatal("expected IsOpen() true after open")
	}
	if _, err := s.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %s", err)
	}
	if s.BytesWritten() != 5 {
		t.Fatalf("BytesWritten = %d, want 5", s.BytesWritten())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %s", err)
	}
	if s.IsOpen() {
		t.Fatal("expected IsOpen() false after close")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading final file: %s", err)
	}
	if string(got) != "hello" {
		t.Fatalf("final content = %q, want %q", got, "hello")
	}
	if s.SuggestedExtension() != "" {
		t.Fatalf("SuggestedExtension() = %q, want empty", s.SuggestedExtension())
	}
}

func TestGzipSinkRoundTripSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")

	s, err := NewGzipSink(6, false)
	if err != nil {
		t.Fatalf("NewGzipSink: %s", err)
	}
	full := path + s.SuggestedExtension()
	if err := s.Open(full); err != nil {
		t.Fatalf("open: %s", err)
	}
	if _, err := s.Write([]byte("payload")); err != nil {
		t.Fatalf("write: %s", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %s", err)
	}
	if _, err := os.Stat(full); err != nil {
		t.Fatalf("expected final gzip file to exist: %s", err)
	}
	if s.SuggestedExtension() != ".gz" {
		t.Fatalf("SuggestedExtension() = %q, want .gz", s.SuggestedExtension())
	}
}

func TestXzSinkSuggestedExtension(t *testing.T) {
	s, err := NewXzSink(6, false)
	if err != nil {
		t.Fatalf("NewXzSink: %s", err)
	}
	if s.SuggestedExtension() != ".xz" {
		t.Fatalf("SuggestedExtension() = %q, want .xz", s.SuggestedExtension())
	}
}

func TestInvalidCompressionLevelRejected(t *testing.T) {
	if _, err := NewGzipSink(99, false); err == nil {
		t.Fatal("expected error for out-of-range gzip level")
	}
	if _, err := NewXzSink(-1, false); err == nil {
		t.Fatal("expected error for out-of-range xz level")
	}
}

func TestEmptyOutputPatternRejected(t *testing.T) {
	s := NewNoneSink(false)
	if err := s.Open(""); err == nil {
		t.Fatal("expected error for empty output pattern")
	}
}

func TestStdoutModeBypassesTempFile(t *testing.T) {
	var buf bytes.Buffer
	s := NewNoneSink(false)
	s.SetStdout(&buf)
	if err := s.Open(StdoutName); err != nil {
		t.Fatalf("open: %s", err)
	}
	if _, err := s.Write([]byte("x")); err != nil {
		t.Fatalf("write: %s", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %s", err)
	}
	if buf.String() != "x" {
		t.Fatalf("stdout buffer = %q, want %q", buf.String(), "x")
	}
}
