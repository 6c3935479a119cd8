package cborenc

import (
	"bytes"
	"testing"

	"github.com/sinodun-go/cdnswriter/internal/cdns/sink"
)

// memSink is a minimal in-memory sink.Sink for exercising the encoder
// without touching the filesystem.
type memSink struct {
	buf bytes.Buffer
	n   uint64
}

func (m *memSink) Open(string) error { return nil }
func (m *memSink) Write(p []byte) (int, error) {
	n, err := m.buf.Write(p)
	m.n += uint64(n)
	return n, err
}
func (m *memSink) BytesWritten() uint64      { return m.n }
func (m *memSink) IsOpen() bool              { return true }
func (m *memSink) Close() error              { return nil }
func (m *memSink) SuggestedExtension() string { return "" }

var _ sink.Sink = (*memSink)(nil)

func encode(t *testing.T, fn func(*Encoder)) []byte {
	t.Helper()
	m := &memSink{}
	e := NewEncoder(m)
	fn(e)
	if err := e.Flush(); err != nil {
		t.Fatalf("flush: %s", err)
	}
	if err := e.Err(); err != nil {
		t.Fatalf("encoder error: %s", err)
	}
	return m.buf.Bytes()
}

// TestWriteUint checks shortest-head encoding against RFC 8949
// Appendix A's worked examples.
func TestWriteUint(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{10, []byte{0x0a}},
		{23, []byte{0x17}},
		{24, []byte{0x18, 0x18}},
		{25, []byte{0x18, 0x19}},
		{100, []byte{0x18, 0x64}},
		{1000, []byte{0x19, 0x03, 0xe8}},
		{1000000, []byte{0x1a, 0x00, 0x0f, 0x42, 0x40}},
		{1000000000000, []byte{0x1b, 0x00, 0x00, 0x00, 0xe8, 0xd4, 0xa5, 0x10, 0x00}},
	}
	for _, c := range cases {
		got := encode(t, func(e *Encoder) { e.WriteUint(c.v) })
		if !bytes.Equal(got, c.want) {
			t.Errorf("WriteUint(%d) = % x, want % x", c.v, got, c.want)
		}
	}
}

func TestWriteInt(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{-1, []byte{0x20}},
		{-10, []byte{0x29}},
		{-100, []byte{0x38, 0x63}},
		{-1000, []byte{0x39, 0x03, 0xe7}},
		{0, []byte{0x00}},
	}
	for _, c := range cases {
		got := encode(t, func(e *Encoder) { e.WriteInt(c.v) })
		if !bytes.Equal(got, c.want) {
			t.Errorf("WriteInt(%d) = % x, want % x", c.v, got, c.want)
		}
	}
}

func TestWriteBytesAndText(t *testing.T) {
	got := encode(t, func(e *Encoder) { e.WriteBytes([]byte{1, 2, 3, 4}) })
	want := []byte{0x44, 1, 2, 3, 4}
	if !bytes.Equal(got, want) {
		t.Errorf("WriteBytes = % x, want % x", got, want)
	}

	got = encode(t, func(e *Encoder) { e.WriteText("IETF") })
	want = []byte{0x64, 'I', 'E', 'T', 'F'}
	if !bytes.Equal(got, want) {
		t.Errorf("WriteText = % x, want % x", got, want)
	}
}

func TestWriteArrayAndMapHeader(t *testing.T) {
	got := encode(t, func(e *Encoder) {
		e.WriteArrayHeader(3)
		e.WriteUint(1)
		e.WriteUint(2)
		e.WriteUint(3)
	})
	want := []byte{0x83, 0x01, 0x02, 0x03}
	if !bytes.Equal(got, want) {
		t.Errorf("array = % x, want % x", got, want)
	}

	got = encode(t, func(e *Encoder) {
		e.WriteMapHeader(1)
		e.WriteUint(1)
		e.WriteUint(2)
	})
	want = []byte{0xa1, 0x01, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("map = % x, want % x", got, want)
	}
}

func TestIndefiniteContainerAndBreak(t *testing.T) {
	got := encode(t, func(e *Encoder) {
		e.WriteIndefiniteArrayHeader()
		e.WriteUint(1)
		e.WriteUint(2)
		e.WriteBreak()
	})
	want := []byte{0x9f, 0x01, 0x02, 0xff}
	if !bytes.Equal(got, want) {
		t.Errorf("indefinite array = % x, want % x", got, want)
	}
}

func TestBoolAndNull(t *testing.T) {
	got := encode(t, func(e *Encoder) {
		e.WriteBool(true)
		e.WriteBool(false)
		e.WriteNull()
	})
	want := []byte{0xf5, 0xf4, 0xf6}
	if !bytes.Equal(got, want) {
		t.Errorf("bool/null = % x, want % x", got, want)
	}
}

// TestBytesWrittenMonotonic checks the property spec §8 requires of
// bytes_written(): monotonically non-decreasing across writes.
func TestBytesWrittenMonotonic(t *testing.T) {
	m := &memSink{}
	e := NewEncoder(m)
	var last uint64
	for i := 0; i < 100; i++ {
		e.WriteUint(uint64(i))
		e.Flush()
		if e.BytesWritten() < last {
			t.Fatalf("BytesWritten decreased: %d -> %d", last, e.BytesWritten())
		}
		last = e.BytesWritten()
	}
}

// TestStickyError verifies that once a write fails, the error is
// latched and returned on every subsequent call (bufio.Writer-style).
func TestStickyError(t *testing.T) {
	m := &failingSink{}
	e := NewEncoder(m)
	e.WriteUint(1)
	e.Flush()
	if e.Err() == nil {
		t.Fatal("expected sticky error after failing write")
	}
	e.WriteUint(2)
	if e.Err() == nil {
		t.Fatal("expected error to remain sticky")
	}
}

type failingSink struct{ memSink }

func (f *failingSink) Write(p []byte) (int, error) {
	return 0, errWriteFailed
}

var errWriteFailed = &testError{"forced write failure"}

type testError struct{ s string }

func (e *testError) Error() string { return e.s }
