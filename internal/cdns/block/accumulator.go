package block

import (
	"time"

	"github.com/sinodun-go/cdnswriter/internal/cdns/cborenc"
	"github.com/sinodun-go/cdnswriter/internal/cdns/fields"
	"github.com/sinodun-go/cdnswriter/internal/cdns/model"
)

// Block holds one block's worth of writer state: every interning
// table, the record list, the address-event multiset, and the
// statistics snapshots (spec §3's "Block" type, §4.3's accumulator).
type Block struct {
	BlockParametersIndex int

	StartTime    time.Time
	HasStartTime bool
	EndTime      time.Time
	HasEndTime   bool
	EarliestTime time.Time
	HasEarliest  bool

	StartStats model.PacketStatistics
	EndStats   model.PacketStatistics

	ips           *byteTable
	nameRdata     *byteTable
	classTypes    *genTable[ClassTypeKey]
	questions     *genTable[QuestionKey]
	rrs           *genTable[ResourceRecordKey]
	questionLists *genTable[string]
	rrLists       *genTable[string]
	signatures    *genTable[SignatureKey]

	records []Record

	addressEvents      map[AddressEventKey]uint64
	addressEventsOrder []AddressEventKey

	maxBlockItems int
}

// NewBlock creates an empty block bounded by maxBlockItems (spec
// §4.3's configured per-block item ceiling; 0 means unbounded).
func NewBlock(maxBlockItems int) *Block {
	b := &Block{maxBlockItems: maxBlockItems}
	b.reset()
	return b
}

func (b *Block) reset() {
	if b.ips == nil {
		b.ips = newByteTable()
		b.nameRdata = newByteTable()
		b.classTypes = newGenTable[ClassTypeKey]()
		b.questions = newGenTable[QuestionKey]()
		b.rrs = newGenTable[ResourceRecordKey]()
		b.questionLists = newGenTable[string]()
		b.rrLists = newGenTable[string]()
		b.signatures = newGenTable[SignatureKey]()
	} else {
		b.ips.clear()
		b.nameRdata.clear()
		b.classTypes.clear()
		b.questions.clear()
		b.rrs.clear()
		b.questionLists.clear()
		b.rrLists.clear()
		b.signatures.clear()
	}
	b.records = nil
	b.addressEvents = make(map[AddressEventKey]uint64)
	b.addressEventsOrder = nil
	b.HasStartTime = false
	b.HasEndTime = false
	b.HasEarliest = false
}

// Clear resets all tables and records; retains block_parameters
// (spec §4.3).
func (b *Block) Clear() {
	bp := b.BlockParametersIndex
	b.reset()
	b.BlockParametersIndex = bp
}

// IsFull reports whether the block has reached its configured item
// ceiling (spec §4.3: "true iff records.len() == max_block_items").
func (b *Block) IsFull() bool {
	return b.maxBlockItems > 0 && len(b.records) >= b.maxBlockItems
}

func (b *Block) AddAddress(addr []byte) int      { return b.ips.intern(addr) }
func (b *Block) AddNameRdata(v []byte) int       { return b.nameRdata.intern(v) }
func (b *Block) AddClassType(k ClassTypeKey) int { return b.classTypes.intern(k) }
func (b *Block) AddQuestion(k QuestionKey) int    { return b.questions.intern(k) }
func (b *Block) AddResourceRecord(k ResourceRecordKey) int { return b.rrs.intern(k) }

func (b *Block) AddQuestionsList(indices []int) int {
	return b.questionLists.intern(encodeIndexList(indices))
}

func (b *Block) AddRRsList(indices []int) int {
	return b.rrLists.intern(encodeIndexList(indices))
}

func (b *Block) AddQueryResponseSignature(k SignatureKey) int {
	return b.signatures.intern(k)
}

// AppendRecord appends a completed transaction record to the block,
// in the order end_record was called (spec §5's ordering guarantee).
func (b *Block) AppendRecord(r Record) {
	b.records = append(b.records, r)
}

// CountAddressEvent accumulates one occurrence of the (kind, code,
// address, is_ipv6) tuple, interning address into the shared IPs
// table first (spec §3: "Accumulated as a multiset counted per
// block").
func (b *Block) CountAddressEvent(kind uint8, code uint16, address []byte, isIPv6 bool) {
	idx := b.AddAddress(address)
	key := AddressEventKey{Kind: kind, Code: code, ClientAddressIdx: idx, IsIPv6: isIPv6}
	if _, ok := b.addressEvents[key]; !ok {
		b.addressEventsOrder = append(b.addressEventsOrder, key)
	}
	b.addressEvents[key]++
}

// RecordCount reports the number of records currently buffered,
// chiefly for tests and diagnostics.
func (b *Block) RecordCount() int { return len(b.records) }

// LastRecord returns the most recently appended record, chiefly for
// tests and diagnostics.
func (b *Block) LastRecord() Record { return b.records[len(b.records)-1] }

// AddressEventKeyCount reports the number of distinct (kind, code,
// address, is_ipv6) keys counted so far, chiefly for tests.
func (b *Block) AddressEventKeyCount() int { return len(b.addressEventsOrder) }

// HasContent reports whether the block holds anything worth emitting:
// either transaction records or address-event counts. A block with
// neither (e.g. a file closed immediately after opening) is omitted
// entirely rather than written as an empty map.
func (b *Block) HasContent() bool {
	return len(b.records) > 0 || len(b.addressEventsOrder) > 0
}

// WriteCBOR emits the block as a field-indexed map in the canonical
// order spec §4.3 describes, omitting absent sub-blocks (address
// events / malformed messages when empty) and absent per-record
// members. Grounded on blockcbordata.cpp's BlockData::writeCbor.
func (b *Block) WriteCBOR(enc *cborenc.Encoder) {
	memberCount := 4 // preamble, statistics, tables, query_responses are always present
	if len(b.addressEventsOrder) > 0 {
		memberCount++
	}

	enc.WriteMapHeader(memberCount)

	enc.WriteUint(uint64(fields.BlockPreamble))
	b.writePreamble(enc)

	enc.WriteUint(uint64(fields.BlockStatistics))
	b.writeStatistics(enc)

	enc.WriteUint(uint64(fields.BlockTables))
	b.writeTables(enc)

	enc.WriteUint(uint64(fields.BlockQueryResponses))
	b.writeRecords(enc)

	if len(b.addressEventsOrder) > 0 {
		enc.WriteUint(uint64(fields.BlockAddressEventCounts))
		b.writeAddressEvents(enc)
	}
}

func (b *Block) writePreamble(enc *cborenc.Encoder) {
	enc.WriteMapHeader(2)
	enc.WriteUint(uint64(fields.BlockPreambleStartTime))
	enc.WriteArrayHeader(2)
	enc.WriteInt(b.StartTime.Unix())
	enc.WriteUint(uint64(b.StartTime.Nanosecond()))
	enc.WriteUint(uint64(fields.BlockPreambleBlockParametersIndex))
	enc.WriteUint(uint64(b.BlockParametersIndex))
}

func (b *Block) writeStatistics(enc *cborenc.Encoder) {
	enc.WriteMapHeader(6)
	enc.WriteUint(uint64(fields.StatsTotalPackets))
	enc.WriteUint(b.EndStats.TotalPackets)
	enc.WriteUint(uint64(fields.StatsTotalPairs))
	enc.WriteUint(b.EndStats.TotalPairs)
	enc.WriteUint(uint64(fields.StatsUnmatchedQueries))
	enc.WriteUint(b.EndStats.UnmatchedQueries)
	enc.WriteUint(uint64(fields.StatsUnmatchedResponses))
	enc.WriteUint(b.EndStats.UnmatchedResponses)
	enc.WriteUint(uint64(fields.StatsMalformedPackets))
	enc.WriteUint(b.EndStats.MalformedPackets)
	enc.WriteUint(uint64(fields.StatsCompactorNonDNSPackets))
	enc.WriteUint(b.EndStats.CompactorNonDNSPackets)
}

func (b *Block) writeTables(enc *cborenc.Encoder) {
	tableCount := 0
	if b.ips.len() > 0 {
		tableCount++
	}
	if b.classTypes.len() > 0 {
		tableCount++
	}
	if b.nameRdata.len() > 0 {
		tableCount++
	}
	if b.questions.len() > 0 {
		tableCount++
	}
	if b.rrs.len() > 0 {
		tableCount++
	}
	if b.signatures.len() > 0 {
		tableCount++
	}
	if b.questionLists.len() > 0 {
		tableCount++
	}
	if b.rrLists.len() > 0 {
		tableCount++
	}

	enc.WriteMapHeader(tableCount)

	if b.ips.len() > 0 {
		enc.WriteUint(uint64(fields.TablesIPAddress))
		enc.WriteArrayHeader(b.ips.len())
		for _, v := range b.ips.values {
			enc.WriteBytes([]byte(v))
		}
	}
	if b.classTypes.len() > 0 {
		enc.WriteUint(uint64(fields.TablesClassType))
		enc.WriteArrayHeader(b.classTypes.len())
		for _, ct := range b.classTypes.values {
			enc.WriteMapHeader(2)
			enc.WriteUint(uint64(fields.ClassTypeType))
			enc.WriteUint(uint64(ct.QType))
			enc.WriteUint(uint64(fields.ClassTypeClass))
			enc.WriteUint(uint64(ct.QClass))
		}
	}
	if b.nameRdata.len() > 0 {
		enc.WriteUint(uint64(fields.TablesNameRdata))
		enc.WriteArrayHeader(b.nameRdata.len())
		for _, v := range b.nameRdata.values {
			enc.WriteBytes([]byte(v))
		}
	}
	if b.questions.len() > 0 {
		enc.WriteUint(uint64(fields.TablesQuestion))
		enc.WriteArrayHeader(b.questions.len())
		for _, q := range b.questions.values {
			n := 1
			if q.HasClassType {
				n++
			}
			enc.WriteMapHeader(n)
			enc.WriteUint(uint64(fields.QuestionName))
			enc.WriteUint(uint64(q.NameIdx))
			if q.HasClassType {
				enc.WriteUint(uint64(fields.QuestionClassType))
				enc.WriteUint(uint64(q.ClassTypeIdx))
			}
		}
	}
	if b.rrs.len() > 0 {
		enc.WriteUint(uint64(fields.TablesResourceRecord))
		enc.WriteArrayHeader(b.rrs.len())
		for _, rr := range b.rrs.values {
			n := 1
			if rr.HasClassType {
				n++
			}
			if rr.HasTTL {
				n++
			}
			if rr.HasRdata {
				n++
			}
			enc.WriteMapHeader(n)
			enc.WriteUint(uint64(fields.RRName))
			enc.WriteUint(uint64(rr.NameIdx))
			if rr.HasClassType {
				enc.WriteUint(uint64(fields.RRClassType))
				enc.WriteUint(uint64(rr.ClassTypeIdx))
			}
			if rr.HasTTL {
				enc.WriteUint(uint64(fields.RRTTL))
				enc.WriteUint(uint64(rr.TTL))
			}
			if rr.HasRdata {
				enc.WriteUint(uint64(fields.RRRdata))
				enc.WriteUint(uint64(rr.RdataIdx))
			}
		}
	}
	if b.signatures.len() > 0 {
		enc.WriteUint(uint64(fields.TablesQueryResponseSignature))
		enc.WriteArrayHeader(b.signatures.len())
		for _, sig := range b.signatures.values {
			writeSignature(enc, sig)
		}
	}
	if b.questionLists.len() > 0 {
		enc.WriteUint(uint64(fields.TablesQuestionList))
		enc.WriteArrayHeader(b.questionLists.len())
		for _, v := range b.questionLists.values {
			writeIndexArray(enc, decodeIndexList(v))
		}
	}
	if b.rrLists.len() > 0 {
		enc.WriteUint(uint64(fields.TablesRRList))
		enc.WriteArrayHeader(b.rrLists.len())
		for _, v := range b.rrLists.values {
			writeIndexArray(enc, decodeIndexList(v))
		}
	}
}

func writeIndexArray(enc *cborenc.Encoder, indices []int) {
	enc.WriteArrayHeader(len(indices))
	for _, idx := range indices {
		enc.WriteUint(uint64(idx))
	}
}

func writeSignature(enc *cborenc.Encoder, sig SignatureKey) {
	n := 0
	if sig.HasServerAddress {
		n++
	}
	if sig.HasServerPort {
		n++
	}
	if sig.HasTransport {
		n++
	}
	if sig.HasQRType {
		n++
	}
	if sig.HasQRFlags {
		n++
	}
	if sig.HasQueryOpcode {
		n++
	}
	if sig.HasDNSFlags {
		n++
	}
	if sig.HasQueryRcode {
		n++
	}
	if sig.HasQueryClass {
		n++
	}
	if sig.HasQDCount {
		n++
	}
	if sig.HasANCount {
		n++
	}
	if sig.HasNSCount {
		n++
	}
	if sig.HasARCount {
		n++
	}
	if sig.HasEDNSVersion {
		n++
	}
	if sig.HasEDNSUDPSize {
		n++
	}
	if sig.HasEDNSOptRdata {
		n++
	}
	if sig.HasResponseRcode {
		n++
	}

	enc.WriteMapHeader(n)
	if sig.HasServerAddress {
		enc.WriteUint(uint64(fields.SigServerAddress))
		enc.WriteUint(uint64(sig.ServerAddressIdx))
	}
	if sig.HasServerPort {
		enc.WriteUint(uint64(fields.SigServerPort))
		enc.WriteUint(uint64(sig.ServerPort))
	}
	if sig.HasTransport {
		enc.WriteUint(uint64(fields.SigQRTransportFlags))
		enc.WriteUint(uint64(sig.Transport))
	}
	if sig.HasQRType {
		enc.WriteUint(uint64(fields.SigQRType))
		t := 0
		if sig.QRHasQuery {
			t |= 1
		}
		if sig.QRHasResponse {
			t |= 2
		}
		enc.WriteUint(uint64(t))
	}
	if sig.HasQRFlags {
		enc.WriteUint(uint64(fields.SigQRSigFlags))
		enc.WriteUint(uint64(sig.QRFlags))
	}
	if sig.HasQueryOpcode {
		enc.WriteUint(uint64(fields.SigQueryOpcode))
		enc.WriteUint(uint64(sig.QueryOpcode))
	}
	if sig.HasDNSFlags {
		enc.WriteUint(uint64(fields.SigQRDNSFlags))
		enc.WriteUint(uint64(sig.DNSFlags))
	}
	if sig.HasQueryRcode {
		enc.WriteUint(uint64(fields.SigQueryRcode))
		enc.WriteUint(uint64(sig.QueryRcode))
	}
	if sig.HasQueryClass {
		enc.WriteUint(uint64(fields.SigQueryClassType))
		enc.WriteUint(uint64(sig.QueryClassIdx))
	}
	if sig.HasQDCount {
		enc.WriteUint(uint64(fields.SigQueryQDCount))
		enc.WriteUint(uint64(sig.QDCount))
	}
	if sig.HasANCount {
		enc.WriteUint(uint64(fields.SigQueryANCount))
		enc.WriteUint(uint64(sig.ANCount))
	}
	if sig.HasNSCount {
		enc.WriteUint(uint64(fields.SigQueryNSCount))
		enc.WriteUint(uint64(sig.NSCount))
	}
	if sig.HasARCount {
		enc.WriteUint(uint64(fields.SigQueryARCount))
		enc.WriteUint(uint64(sig.ARCount))
	}
	if sig.HasEDNSVersion {
		enc.WriteUint(uint64(fields.SigQueryEDNSVersion))
		enc.WriteUint(uint64(sig.EDNSVersion))
	}
	if sig.HasEDNSUDPSize {
		enc.WriteUint(uint64(fields.SigQueryUDPSize))
		enc.WriteUint(uint64(sig.EDNSUDPSize))
	}
	if sig.HasEDNSOptRdata {
		enc.WriteUint(uint64(fields.SigQueryOptRdata))
		enc.WriteUint(uint64(sig.EDNSOptRdataIdx))
	}
	if sig.HasResponseRcode {
		enc.WriteUint(uint64(fields.SigResponseRcode))
		enc.WriteUint(uint64(sig.ResponseRcode))
	}
}

func (b *Block) writeRecords(enc *cborenc.Encoder) {
	enc.WriteArrayHeader(len(b.records))
	for _, r := range b.records {
		writeRecord(enc, b.StartTime, r)
	}
}

func writeRecord(enc *cborenc.Encoder, blockStart time.Time, r Record) {
	n := 0
	if r.HasTimestamp {
		n++
	}
	if r.HasClientAddress {
		n++
	}
	if r.HasClientPort {
		n++
	}
	if r.HasTransactionID {
		n++
	}
	if r.HasSignature {
		n++
	}
	if r.HasHopLimit {
		n++
	}
	if r.HasResponseDelay {
		n++
	}
	if r.HasQName {
		n++
	}
	if r.HasQuerySize {
		n++
	}
	if r.HasResponseSize {
		n++
	}
	if !r.QueryExtraInfo.IsEmpty() {
		n++
	}
	if !r.ResponseExtraInfo.IsEmpty() {
		n++
	}

	enc.WriteMapHeader(n)
	if r.HasTimestamp {
		enc.WriteUint(uint64(fields.RecordTimeOffset))
		enc.WriteInt(r.Timestamp.Sub(blockStart).Nanoseconds())
	}
	if r.HasClientAddress {
		enc.WriteUint(uint64(fields.RecordClientAddressIndex))
		enc.WriteUint(uint64(r.ClientAddressIdx))
	}
	if r.HasClientPort {
		enc.WriteUint(uint64(fields.RecordClientPort))
		enc.WriteUint(uint64(r.ClientPort))
	}
	if r.HasTransactionID {
		enc.WriteUint(uint64(fields.RecordTransactionID))
		enc.WriteUint(uint64(r.TransactionID))
	}
	if r.HasSignature {
		enc.WriteUint(uint64(fields.RecordQRSignatureIndex))
		enc.WriteUint(uint64(r.SignatureIdx))
	}
	if r.HasHopLimit {
		enc.WriteUint(uint64(fields.RecordClientHoplimit))
		enc.WriteUint(uint64(r.HopLimit))
	}
	if r.HasResponseDelay {
		enc.WriteUint(uint64(fields.RecordResponseDelay))
		enc.WriteInt(r.ResponseDelay.Nanoseconds())
	}
	if r.HasQName {
		enc.WriteUint(uint64(fields.RecordQueryName))
		enc.WriteUint(uint64(r.QNameIdx))
	}
	if r.HasQuerySize {
		enc.WriteUint(uint64(fields.RecordQuerySize))
		enc.WriteUint(uint64(r.QuerySize))
	}
	if r.HasResponseSize {
		enc.WriteUint(uint64(fields.RecordResponseSize))
		enc.WriteUint(uint64(r.ResponseSize))
	}
	if !r.QueryExtraInfo.IsEmpty() {
		enc.WriteUint(uint64(fields.RecordQueryExtraInfo))
		writeExtraInfo(enc, r.QueryExtraInfo)
	}
	if !r.ResponseExtraInfo.IsEmpty() {
		enc.WriteUint(uint64(fields.RecordResponseExtraInfo))
		writeExtraInfo(enc, r.ResponseExtraInfo)
	}
}

func writeExtraInfo(enc *cborenc.Encoder, e *ExtraInfo) {
	n := 0
	if e.HasQuestionsList {
		n++
	}
	if e.HasAnswersList {
		n++
	}
	if e.HasAuthorityList {
		n++
	}
	if e.HasAdditionalList {
		n++
	}
	enc.WriteMapHeader(n)
	if e.HasQuestionsList {
		enc.WriteUint(uint64(fields.ExtraQuestionsList))
		enc.WriteUint(uint64(e.QuestionsListIdx))
	}
	if e.HasAnswersList {
		enc.WriteUint(uint64(fields.ExtraAnswersList))
		enc.WriteUint(uint64(e.AnswersListIdx))
	}
	if e.HasAuthorityList {
		enc.WriteUint(uint64(fields.ExtraAuthorityList))
		enc.WriteUint(uint64(e.AuthorityListIdx))
	}
	if e.HasAdditionalList {
		enc.WriteUint(uint64(fields.ExtraAdditionalList))
		enc.WriteUint(uint64(e.AdditionalListIdx))
	}
}

func (b *Block) writeAddressEvents(enc *cborenc.Encoder) {
	enc.WriteArrayHeader(len(b.addressEventsOrder))
	for _, key := range b.addressEventsOrder {
		enc.WriteMapHeader(4)
		enc.WriteUint(uint64(fields.AEType))
		enc.WriteUint(uint64(key.Kind))
		enc.WriteUint(uint64(fields.AECode))
		enc.WriteUint(uint64(key.Code))
		enc.WriteUint(uint64(fields.AEAddressIndex))
		enc.WriteUint(uint64(key.ClientAddressIdx))
		enc.WriteUint(uint64(fields.AECount))
		enc.WriteUint(b.addressEvents[key])
	}
}
