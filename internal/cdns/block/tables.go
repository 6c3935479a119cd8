// Package block implements the Block Data Accumulator of spec §4.3:
// the per-block interning tables, the transaction record list, the
// address-event multiset, and the statistics snapshots, plus the CBOR
// serialisation of all of it in canonical block-map order. Grounded
// on original_source/src/blockcbordata.cpp's table/Block/write-order
// structure, re-expressed with Go value types instead of the
// original's boost::optional fields.
package block

import (
	"encoding/binary"

	"github.com/sinodun-go/cdnswriter/internal/cdns/model"
)

// byteTable interns opaque byte strings (spec §3: IPs, Names/RDATA).
// Two distinct []byte values that happen to be byte-equal collapse to
// the same index — intentional for the IPs table (prefix truncation),
// incidental for Names/RDATA.
type byteTable struct {
	index  map[string]int
	values []string
}

func newByteTable() *byteTable {
	return &byteTable{index: make(map[string]int)}
}

// intern returns the stable 1-based index for b, inserting it at the
// end of insertion order if not already present.
func (t *byteTable) intern(b []byte) int {
	k := string(b)
	if idx, ok := t.index[k]; ok {
		return idx
	}
	t.values = append(t.values, k)
	idx := len(t.values)
	t.index[k] = idx
	return idx
}

func (t *byteTable) clear() {
	t.index = make(map[string]int)
	t.values = t.values[:0]
}

func (t *byteTable) len() int { return len(t.values) }

// genTable interns any comparable key type (spec §3's ClassType,
// Question, Resource Record, and QueryResponseSignature tables).
// Optional sub-fields of K must be represented as an explicit
// presence bool alongside a field always zeroed when absent, so that
// two "unset" values compare equal under Go's struct equality — spec
// §3's "unset fields comparing equal only to unset".
type genTable[K comparable] struct {
	index  map[K]int
	values []K
}

func newGenTable[K comparable]() *genTable[K] {
	return &genTable[K]{index: make(map[K]int)}
}

func (t *genTable[K]) intern(k K) int {
	if idx, ok := t.index[k]; ok {
		return idx
	}
	t.values = append(t.values, k)
	idx := len(t.values)
	t.index[k] = idx
	return idx
}

func (t *genTable[K]) clear() {
	t.index = make(map[K]int)
	t.values = nil
}

func (t *genTable[K]) len() int { return len(t.values) }

// ClassTypeKey is the (qtype, qclass) interning key.
type ClassTypeKey struct {
	QType  uint16
	QClass uint16
}

// QuestionKey is the (name-index, classtype-index) interning key.
// ClassType is optional per spec's exclusion hints.
type QuestionKey struct {
	NameIdx         int
	HasClassType    bool
	ClassTypeIdx    int
}

// ResourceRecordKey is the (name-index, classtype-index, ttl?,
// rdata-index?) interning key.
type ResourceRecordKey struct {
	NameIdx      int
	HasClassType bool
	ClassTypeIdx int
	HasTTL       bool
	TTL          uint32
	HasRdata     bool
	RdataIdx     int
}

// SignatureKey is the QueryResponseSignature interning key: the tuple
// of fields spec §3 lists as common to many transactions. Every
// optional field is a (Has, value) pair so absent fields always
// compare equal to each other regardless of which transaction left
// them unset.
type SignatureKey struct {
	HasServerAddress bool
	ServerAddressIdx int
	HasServerPort    bool
	ServerPort       uint16
	HasTransport     bool
	Transport        model.Transport
	HasQRType        bool
	QRHasQuery       bool
	QRHasResponse    bool
	HasQRFlags       bool
	QRFlags          model.QRFlags
	HasDNSFlags      bool
	DNSFlags         model.DNSFlags
	HasQueryOpcode   bool
	QueryOpcode      uint8
	HasQueryRcode    bool
	QueryRcode       uint16 // folded extended-rcode; see model.FoldRcode
	HasResponseRcode bool
	ResponseRcode    uint16
	HasQueryClass    bool
	QueryClassIdx    int
	HasQDCount       bool
	QDCount          uint16
	HasANCount       bool
	ANCount          uint16
	HasNSCount       bool
	NSCount          uint16
	HasARCount       bool
	ARCount          uint16
	HasEDNSVersion   bool
	EDNSVersion      uint8
	HasEDNSUDPSize   bool
	EDNSUDPSize      uint16
	HasEDNSOptRdata  bool
	EDNSOptRdataIdx  int
}

// encodeIndexList packs an ordered index sequence into a comparable
// string key (spec §3's Query-list/RR-list tables: "ordered sequence
// of question/RR indices"). Fixed-width big-endian encoding keeps two
// equal sequences byte-identical and two differently-ordered
// sequences distinct, matching the "ordered" requirement.
func encodeIndexList(indices []int) string {
	buf := make([]byte, 4*len(indices))
	for i, v := range indices {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return string(buf)
}

func decodeIndexList(s string) []int {
	n := len(s) / 4
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(binary.BigEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return out
}
