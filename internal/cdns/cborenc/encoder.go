// Package cborenc implements the streaming canonical CBOR emitter of
// spec §4.2, grounded on original_source/src/cborencoder.hpp's
// CborBaseEncoder: a small internal buffer flushed to the underlying
// Sink, RFC 8949 shortest-head-encoding for integers, UTF-8 text
// strings, opaque byte strings, and definite/indefinite containers.
//
// The encoder keeps no logical item stack; matching array/map headers
// to their contents and to writeBreak is the caller's obligation, as
// spec §4.2 states explicitly.
package cborenc

import (
	"math"

	"github.com/sinodun-go/cdnswriter/internal/cdns/sink"
	"github.com/sinodun-go/cdnswriter/internal/cdnserr"
)

const bufSize = 2048

// CBOR major types (RFC 8949 §3).
const (
	majorUnsigned = 0
	majorNegative = 1
	majorBytes    = 2
	majorText     = 3
	majorArray    = 4
	majorMap      = 5
	majorSimple   = 7
)

const (
	simpleFalse     = 20
	simpleTrue      = 21
	simpleNull      = 22
	simpleFloat64   = 27
	indefiniteBreak = 31
)

// Encoder buffers CBOR-encoded bytes and flushes them to a Sink. Once
// a write fails, the sticky error is returned by every subsequent
// call and by Err(), mirroring bufio.Writer's error-latching idiom
// rather than the original's C++ exceptions.
type Encoder struct {
	sink sink.Sink
	buf  [bufSize]byte
	pos  int
	err  error
}

// NewEncoder wraps a Sink. The Sink must already be open.
func NewEncoder(s sink.Sink) *Encoder {
	return &Encoder{sink: s}
}

// Err returns the first write error the encoder has observed, if any.
func (e *Encoder) Err() error { return e.err }

// BytesWritten delegates to the Sink (spec §4.2).
func (e *Encoder) BytesWritten() uint64 { return e.sink.BytesWritten() }

// Flush forces any buffered output to the Sink.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if e.pos == 0 {
		return nil
	}
	if _, err := e.sink.Write(e.buf[:e.pos]); err != nil {
		e.err = cdnserr.Wrap("cborenc", cdnserr.IoError, err)
		return e.err
	}
	e.pos = 0
	return nil
}

func (e *Encoder) writeByte(b byte) {
	if e.err != nil {
		return
	}
	e.buf[e.pos] = b
	e.pos++
	if e.pos == bufSize {
		e.Flush()
	}
}

func (e *Encoder) writeRaw(p []byte) {
	for _, b := range p {
		e.writeByte(b)
	}
}

// writeTypeValue writes a major type plus its shortest-head-encoded
// additional-information value, per RFC 8949 §3.1.
func (e *Encoder) writeTypeValue(major byte, value uint64) {
	head := major << 5
	switch {
	case value < 24:
		e.writeByte(head | byte(value))
	case value <= 0xff:
		e.writeByte(head | 24)
		e.writeByte(byte(value))
	case value <= 0xffff:
		e.writeByte(head | 25)
		e.writeByte(byte(value >> 8))
		e.writeByte(byte(value))
	case value <= 0xffffffff:
		e.writeByte(head | 26)
		e.writeByte(byte(value >> 24))
		e.writeByte(byte(value >> 16))
		e.writeByte(byte(value >> 8))
		e.writeByte(byte(value))
	default:
		e.writeByte(head | 27)
		for shift := 56; shift >= 0; shift -= 8 {
			e.writeByte(byte(value >> shift))
		}
	}
}

// WriteUint writes an unsigned integer (major type 0).
func (e *Encoder) WriteUint(v uint64) { e.writeTypeValue(majorUnsigned, v) }

// WriteInt writes a signed integer, using major type 0 for
// non-negative values and major type 1 (encoded as -1-v) otherwise.
func (e *Encoder) WriteInt(v int64) {
	if v >= 0 {
		e.WriteUint(uint64(v))
		return
	}
	e.writeTypeValue(majorNegative, uint64(-1-v))
}

// WriteBool writes a CBOR boolean simple value.
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.writeByte(majorSimple<<5 | simpleTrue)
	} else {
		e.writeByte(majorSimple<<5 | simpleFalse)
	}
}

// WriteNull writes the CBOR null simple value, used when a caller
// needs an explicit "absent" marker rather than omitting the key.
func (e *Encoder) WriteNull() { e.writeByte(majorSimple<<5 | simpleNull) }

// WriteFloat writes a double-precision float (major type 7, 8-byte
// payload). The writer core itself has no float fields and does not
// call it; response delays, for instance, are written as integer
// nanoseconds.
func (e *Encoder) WriteFloat(v float64) {
	e.writeByte(majorSimple<<5 | simpleFloat64)
	bits := math.Float64bits(v)
	for shift := 56; shift >= 0; shift -= 8 {
		e.writeByte(byte(bits >> shift))
	}
}

// WriteBytes writes an opaque byte string (major type 2).
func (e *Encoder) WriteBytes(b []byte) {
	e.writeTypeValue(majorBytes, uint64(len(b)))
	e.writeRaw(b)
}

// WriteText writes a UTF-8 text string (major type 3). The caller
// guarantees s is valid UTF-8, per spec §4.2's contract.
func (e *Encoder) WriteText(s string) {
	e.writeTypeValue(majorText, uint64(len(s)))
	e.writeRaw([]byte(s))
}

// WriteArrayHeader writes a definite-length array head.
func (e *Encoder) WriteArrayHeader(n int) { e.writeTypeValue(majorArray, uint64(n)) }

// WriteIndefiniteArrayHeader writes an indefinite-length array head,
// to be terminated by WriteBreak.
func (e *Encoder) WriteIndefiniteArrayHeader() {
	e.writeByte(majorArray<<5 | indefiniteBreak)
}

// WriteMapHeader writes a definite-length map head (n key/value
// pairs).
func (e *Encoder) WriteMapHeader(n int) { e.writeTypeValue(majorMap, uint64(n)) }

// WriteIndefiniteMapHeader writes an indefinite-length map head, to
// be terminated by WriteBreak.
func (e *Encoder) WriteIndefiniteMapHeader() {
	e.writeByte(majorMap<<5 | indefiniteBreak)
}

// WriteBreak writes the break marker ending an indefinite-length
// array or map.
func (e *Encoder) WriteBreak() {
	e.writeByte(majorSimple<<5 | indefiniteBreak)
}
