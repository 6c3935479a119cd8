package block

import (
	"bytes"
	"testing"

	"github.com/sinodun-go/cdnswriter/internal/cdns/cborenc"
)

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
func (m *memSink) BytesWritten() uint64       { return m.n }
func (m *memSink) IsOpen() bool               { return true }
func (m *memSink) Close() error               { return nil }
func (m *memSink) SuggestedExtension() string { return "" }

func TestAddAddressStableIndex(t *testing.T) {
	b := NewBlock(0)
	i1 := b.AddAddress([]byte{192, 0, 2, 1})
	i2 := b.AddAddress([]byte{192, 0, 2, 2})
	i3 := b.AddAddress([]byte{192, 0, 2, 1})
	if i1 != i3 {
		t.Fatalf("repeated address got different index: %d vs %d", i1, i3)
	}
	if i1 == i2 {
		t.Fatal("distinct addresses collided")
	}
}

func TestIsFullAtMaxBlockItems(t *testing.T) {
	b := NewBlock(2)
	if b.IsFull() {
		t.Fatal("empty block reports full")
	}
	b.AppendRecord(Record{})
	if b.IsFull() {
		t.Fatal("block with 1/2 records reports full")
	}
	b.AppendRecord(Record{})
	if !b.IsFull() {
		t.Fatal("block with 2/2 records does not report full")
	}
}

func TestClearRetainsBlockParametersIndex(t *testing.T) {
	b := NewBlock(10)
	b.BlockParametersIndex = 7
	b.AddAddress([]byte{1, 2, 3, 4})
	b.AppendRecord(Record{})
	b.Clear()
	if b.BlockParametersIndex != 7 {
		t.Fatalf("BlockParametersIndex = %d, want 7 after Clear", b.BlockParametersIndex)
	}
	if b.RecordCount() != 0 {
		t.Fatalf("RecordCount() = %d after Clear, want 0", b.RecordCount())
	}
	if b.ips.len() != 0 {
		t.Fatalf("ips table len = %d after Clear, want 0", b.ips.len())
	}
}

func TestWriteCBORProducesNonEmptyMapWithoutOptionalSections(t *testing.T) {
	b := NewBlock(0)
	addrIdx := b.AddAddress([]byte{192, 0, 2, 1})
	b.AppendRecord(Record{HasClientAddress: true, ClientAddressIdx: addrIdx})

	m := &memSink{}
	enc := cborenc.NewEncoder(m)
	b.WriteCBOR(enc)
	if err := enc.Flush(); err != nil {
		t.Fatalf("flush: %s", err)
	}
	if m.buf.Len() == 0 {
		t.Fatal("expected non-empty CBOR output")
	}
	// Top-level block item is always a map (major type 5); address
	// event counts are omitted entirely when the block has none, so
	// the output should not contain any stray trailing bytes from a
	// header that was never followed by content.
	if m.buf.Bytes()[0]>>5 != 5 {
		t.Fatalf("expected block to be encoded as a CBOR map, got major type %d", m.buf.Bytes()[0]>>5)
	}
}

func TestAddressEventMultisetCounting(t *testing.T) {
	b := NewBlock(0)
	addr := []byte{10, 0, 0, 1}
	b.CountAddressEvent(1, 0, addr, false)
	b.CountAddressEvent(1, 0, addr, false)
	b.CountAddressEvent(2, 0, addr, false)

	if len(b.addressEventsOrder) != 2 {
		t.Fatalf("expected 2 distinct address-event keys, got %d", len(b.addressEventsOrder))
	}
	key := AddressEventKey{Kind: 1, Code: 0, ClientAddressIdx: 1, IsIPv6: false}
	if b.addressEvents[key] != 2 {
		t.Fatalf("count for repeated event = %d, want 2", b.addressEvents[key])
	}
}
