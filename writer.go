// Package cdnswriter implements the Block Writer (Orchestrator) of
// spec §4.4: the public entry point driving the full writer protocol
// (file header, block emission, record assembly, rotation, file
// footer) on top of the Compressing Sink, CBOR Encoder, Block Data
// Accumulator, and Output Path Engine packages. Grounded on
// original_source/src/blockcborwriter.cpp's BlockCborWriter.
package cdnswriter

import (
	"net"
	"time"

	"github.com/sinodun-go/cdnswriter/internal/cdns/block"
	"github.com/sinodun-go/cdnswriter/internal/cdns/cborenc"
	"github.com/sinodun-go/cdnswriter/internal/cdns/fields"
	"github.com/sinodun-go/cdnswriter/internal/cdns/model"
	"github.com/sinodun-go/cdnswriter/internal/cdns/pathengine"
	"github.com/sinodun-go/cdnswriter/internal/cdns/sink"
	"github.com/sinodun-go/cdnswriter/internal/cdnserr"
	"github.com/sinodun-go/cdnswriter/internal/constants"
)

// side/section discriminate which part of the pending record the
// next Write{Question,ResourceRecord} call populates (spec §9's
// "enum discriminator plus a mutable cursor" ownership note).
type side int

const (
	sideNone side = iota
	sideQuery
	sideResponse
)

type section int

const (
	sectionNone section = iota
	sectionQuestions
	sectionAnswers
	sectionAuthority
	sectionAdditional
)

// Writer is the Orchestrator: it exclusively owns the Accumulator,
// the Encoder, and the Sink (spec §5).
type Writer struct {
	cfg     Config
	pattern pathengine.Pattern

	sink sink.Sink
	enc  *cborenc.Encoder

	blk *block.Block

	fileOpen    bool
	fileOpenAt  time.Time
	blockInFile bool // true once a record has landed in the in-progress block (its start statistics are snapshotted)

	rotateRequested bool // external "rotate now" flag, polled at record boundaries (spec §5)

	prevBlockEndStats model.PacketStatistics

	pending       block.Record
	pendingQuery  block.ExtraInfo
	pendingResp   block.ExtraInfo
	curSide       side
	curSection    section
	curQuestions  []int
	curAnswers    []int
	curAuthority  []int
	curAdditional []int

	protoErr error // set by a sanity check under constants.PerformSanityChecks, surfaced by EndRecord
}

// NewWriter constructs an Orchestrator from cfg. No file is opened
// yet: open is deferred until the first record lands, so that a
// writer constructed but never fed a transaction produces no output
// at all (spec §9's rotation-race idempotence note).
func NewWriter(cfg Config) (*Writer, error) {
	s, err := buildSink(cfg)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		cfg:     cfg,
		pattern: pathengine.NewPattern(cfg.OutputPattern),
		sink:    s,
		blk:     block.NewBlock(cfg.MaxBlockItems),
	}
	return w, nil
}

func buildSink(cfg Config) (sink.Sink, error) {
	switch cfg.Compression {
	case CompressionGzip:
		return sink.NewGzipSink(cfg.CompressionLevel, cfg.Logging)
	case CompressionXz:
		return sink.NewXzSink(cfg.CompressionLevel, cfg.Logging)
	default:
		return sink.NewNoneSink(cfg.Logging), nil
	}
}

// RequestRotate sets the process-level "rotate now" flag an external
// signal handler raises (spec §5). The handler must not call into the
// Orchestrator directly; it may only set this flag, which the next
// CheckForRotation call consumes by calling ForceRotate.
func (w *Writer) RequestRotate() { w.rotateRequested = true }

// CheckForRotation may close the current file and open a new one.
// Triggers: a pending RequestRotate (handled by ForceRotate); file not
// yet open; current sink bytes >= MaxFileSize; the path engine reports
// a new rotation window (spec §4.4).
func (w *Writer) CheckForRotation(timestamp time.Time) error {
	if w.rotateRequested {
		return w.ForceRotate(timestamp)
	}
	if !w.fileOpen {
		return w.openFile(timestamp)
	}
	needRotate := (w.cfg.MaxFileSize > 0 && w.sink.BytesWritten() >= w.cfg.MaxFileSize) ||
		pathengine.NeedRotate(w.fileOpenAt, timestamp, w.cfg.RotationPeriod)
	if needRotate {
		return w.rotate(timestamp)
	}
	return nil
}

// ForceRotate behaves as CheckForRotation with a synthesised
// deadline, for signal-driven rotation (spec §4.4). Idempotent when
// the current block has no records: it does nothing rather than
// produce an empty adjacent file (spec §9's rotation-race note).
func (w *Writer) ForceRotate(timestamp time.Time) error {
	w.rotateRequested = false
	if !w.fileOpen {
		return w.openFile(timestamp)
	}
	if w.blk.RecordCount() == 0 {
		return nil
	}
	return w.rotate(timestamp)
}

func (w *Writer) rotate(timestamp time.Time) error {
	if err := w.closeFile(); err != nil {
		return err
	}
	return w.openFile(timestamp)
}

func (w *Writer) openFile(timestamp time.Time) error {
	path := w.pattern.Filename(timestamp, w.sink.SuggestedExtension())
	if w.cfg.OutputPattern == sink.StdoutName {
		path = sink.StdoutName
	}
	if err := w.sink.Open(path); err != nil {
		return err
	}
	w.enc = cborenc.NewEncoder(w.sink)
	w.fileOpen = true
	w.fileOpenAt = timestamp
	w.blockInFile = false
	w.writeFileHeader()
	return w.enc.Err()
}

// writeFileHeader emits the length-3 top-level array and opens the
// indefinite-length blocks array (spec §4.4/§6): [format-id,
// preamble-map, blocks...]. The blocks array is left open; Close
// terminates it with a break.
func (w *Writer) writeFileHeader() {
	w.enc.WriteArrayHeader(3)
	w.enc.WriteText(fields.FileFormatID)
	w.writePreambleMap()
	w.enc.WriteIndefiniteArrayHeader()
}

func (w *Writer) writePreambleMap() {
	w.enc.WriteMapHeader(4)
	w.enc.WriteUint(uint64(fields.FilePreambleMajorVersion))
	w.enc.WriteUint(uint64(fields.FormatMajorVersion))
	w.enc.WriteUint(uint64(fields.FilePreambleMinorVersion))
	w.enc.WriteUint(uint64(fields.FormatMinorVersion))
	w.enc.WriteUint(uint64(fields.FilePreamblePrivateVersion))
	w.enc.WriteUint(uint64(fields.FormatPrivateVersion))
	w.enc.WriteUint(uint64(fields.FilePreambleBlockParameters))
	// Exactly one BlockParameters entry per file (spec §9's Open
	// Question, resolved in SPEC_FULL.md's supplemented features).
	w.enc.WriteArrayHeader(1)
	w.writeBlockParameters()
}

func (w *Writer) writeBlockParameters() {
	w.enc.WriteMapHeader(1)
	w.enc.WriteUint(uint64(fields.BlockParamsStorageHints))
	w.writeStorageHints()
}

func (w *Writer) writeStorageHints() {
	w.enc.WriteMapHeader(4)
	w.enc.WriteUint(uint64(fields.StorageHintsQueryResponseHints))
	w.enc.WriteBool(true)
	w.enc.WriteUint(uint64(fields.StorageHintsQueryResponseSignatureHints))
	w.enc.WriteBool(!w.cfg.Exclusions.Signature)
	w.enc.WriteUint(uint64(fields.StorageHintsRRHints))
	w.enc.WriteBool(!w.cfg.Exclusions.RRTTL || !w.cfg.Exclusions.RRRdata)
	w.enc.WriteUint(uint64(fields.StorageHintsOtherDataHints))
	w.enc.WriteBool(!w.cfg.Exclusions.AddressEvents)
}

// closeFile stamps the in-progress block's end time, emits it, emits
// the file footer, and closes the sink. On failure the final file is
// not emitted with its target name (spec §7).
func (w *Writer) closeFile() error {
	if !w.fileOpen {
		return nil
	}
	if w.blk.HasContent() {
		w.emitBlock(w.fileOpenAt)
	}
	w.enc.WriteBreak() // terminate the indefinite blocks array
	if err := w.enc.Flush(); err != nil {
		w.sink.Close()
		w.fileOpen = false
		return err
	}
	err := w.sink.Close()
	w.fileOpen = false
	return err
}

// emitBlock writes the current block to the encoder and resets the
// Accumulator, carrying its end-statistics forward as the next
// block's start-statistics (spec §9's deferred-snapshotting
// supplement).
func (w *Writer) emitBlock(endTime time.Time) {
	if !w.blk.HasEndTime {
		w.blk.EndTime = endTime
		w.blk.HasEndTime = true
	}
	w.blk.WriteCBOR(w.enc)
	w.prevBlockEndStats = w.blk.EndStats
	w.blk.Clear()
	w.blockInFile = false
}

// StartRecord begins assembling a new pending record. If the current
// block is full it is closed and emitted first (spec §4.4).
func (w *Writer) StartRecord(qr *model.QueryResponse) error {
	if w.blk.IsFull() {
		w.emitBlock(qr.Timestamp())
	}
	w.pending = block.Record{}
	w.pendingQuery = block.ExtraInfo{}
	w.pendingResp = block.ExtraInfo{}
	w.curSide = sideNone
	w.curSection = sectionNone
	w.curQuestions = nil
	w.curAnswers = nil
	w.curAuthority = nil
	w.curAdditional = nil
	w.protoErr = nil
	return w.enc.Err()
}

// requireGroupOpen flags a protocol-misuse error, under
// constants.PerformSanityChecks, when a caller tries to buffer a
// question or resource record without first calling
// StartExtendedQueryGroup/StartExtendedResponseGroup (spec §9's
// cursor-ownership note).
func (w *Writer) requireGroupOpen(call string) bool {
	if !constants.PerformSanityChecks {
		return true
	}
	if w.curSide == sideNone {
		w.protoErr = cdnserr.New("writer", cdnserr.ProtocolMisuse, call+" called with no extended group open")
		return false
	}
	return true
}

func addrBytes(ip net.IP, prefixBits int) []byte {
	raw := normalizeAddr(ip)
	if raw == nil {
		return nil
	}
	return truncatePrefix(raw, prefixBits)
}

// normalizeAddr collapses ip to its shortest wire form (4 bytes for
// anything with an IPv4 form, 16 otherwise), so the same address
// always interns to the same IPs table entry regardless of how it
// arrived — net.ParseIP("192.0.2.5") yields a 16-byte IPv4-in-IPv6
// form that would otherwise collide with a distinct table entry from
// an address that came in already as 4 bytes.
func normalizeAddr(ip net.IP) []byte {
	if ip == nil {
		return nil
	}
	if raw := ip.To4(); raw != nil {
		return raw
	}
	return ip.To16()
}

// truncatePrefix masks raw to the given prefix length in bits,
// rounding the byte count up and masking the partial byte — the same
// rule original_source/src/blockcborwriter.cpp's addr_to_string
// applies (spec §8 scenario 4).
func truncatePrefix(raw []byte, prefixBits int) []byte {
	if prefixBits < 0 {
		prefixBits = 0
	}
	maxBits := len(raw) * 8
	if prefixBits > maxBits {
		prefixBits = maxBits
	}
	fullBytes := prefixBits / 8
	remBits := prefixBits % 8
	n := fullBytes
	if remBits > 0 {
		n++
	}
	out := make([]byte, n)
	copy(out, raw[:n])
	if remBits > 0 {
		mask := byte(0xff << (8 - remBits))
		out[n-1] &= mask
	}
	return out
}

func (w *Writer) prefixFor(ip net.IP, cfgV4, cfgV6 int) int {
	if ip.To4() != nil {
		return cfgV4
	}
	return cfgV6
}

// WriteBasic populates the pending record and its signature from qr,
// honouring the configured exclusion hints (spec §3/§4.4), and
// updates the block's earliest/latest times and statistics.
func (w *Writer) WriteBasic(qr *model.QueryResponse, stats model.PacketStatistics) error {
	ex := w.cfg.Exclusions
	hasQuery := qr.HasQuery()
	hasResponse := qr.HasResponse()

	primary := qr.Query
	if primary == nil {
		primary = qr.Response
	}

	ts := qr.Timestamp()
	w.updateBlockTimes(ts)

	if w.blk.RecordCount() == 0 && !w.blockInFile {
		w.blk.StartStats = w.prevBlockEndStats
	}
	w.blk.EndStats = stats
	w.blockInFile = true

	if !ex.Timestamp {
		w.pending.HasTimestamp = true
		w.pending.Timestamp = ts
	}
	if !ex.ClientAddress && primary.ClientAddress != nil {
		bits := w.prefixFor(primary.ClientAddress, w.cfg.ClientAddressPrefixIPv4, w.cfg.ClientAddressPrefixIPv6)
		idx := w.blk.AddAddress(addrBytes(primary.ClientAddress, bits))
		w.pending.HasClientAddress = true
		w.pending.ClientAddressIdx = idx
	}
	if !ex.ClientPort {
		w.pending.HasClientPort = true
		w.pending.ClientPort = primary.ClientPort
	}
	if !ex.TransactionID {
		w.pending.HasTransactionID = true
		w.pending.TransactionID = primary.ID
	}
	if !ex.HopLimit && primary.HopLim != nil {
		w.pending.HasHopLimit = true
		w.pending.HopLimit = *primary.HopLim
	}
	if !ex.QueryName && primary.Question != nil {
		idx := w.blk.AddNameRdata(primary.Question.Name)
		w.pending.HasQName = true
		w.pending.QNameIdx = idx
	}
	if !ex.QuerySize && qr.Query != nil && qr.Query.WireLen != nil {
		w.pending.HasQuerySize = true
		w.pending.QuerySize = *qr.Query.WireLen
	}
	if !ex.ResponseSize && qr.Response != nil && qr.Response.WireLen != nil {
		w.pending.HasResponseSize = true
		w.pending.ResponseSize = *qr.Response.WireLen
	}
	if !ex.ResponseDelay && hasQuery && hasResponse {
		w.pending.HasResponseDelay = true
		w.pending.ResponseDelay = qr.Response.Timestamp.Sub(qr.Query.Timestamp)
	}

	sig := w.buildSignature(qr, ex)
	if !ex.Signature {
		w.pending.HasSignature = true
		w.pending.SignatureIdx = w.blk.AddQueryResponseSignature(sig)
	}

	return w.enc.Err()
}

// updateBlockTimes maintains the block preamble's earliest/start/end
// times (spec §3's earliest_time <= start_time <= every
// record.timestamp <= end_time). earliest_time always tracks the
// running minimum. start_time only widens down to the running minimum
// when StartEndTimesFromData is set (blockcborwriter.cpp's writeBasic
// does the same under config_.start_end_times_from_data); otherwise it
// is stamped once, from the record that opened the block, and left
// alone — matching the original's block-open stamp.
func (w *Writer) updateBlockTimes(ts time.Time) {
	if !w.blk.HasEarliest || ts.Before(w.blk.EarliestTime) {
		w.blk.EarliestTime = ts
		w.blk.HasEarliest = true
	}

	if w.cfg.StartEndTimesFromData {
		if !w.blk.HasStartTime || ts.Before(w.blk.StartTime) {
			w.blk.StartTime = ts
			w.blk.HasStartTime = true
		}
	} else if !w.blk.HasStartTime {
		w.blk.StartTime = ts
		w.blk.HasStartTime = true
	}

	if !w.blk.HasEndTime || ts.After(w.blk.EndTime) {
		w.blk.EndTime = ts
		w.blk.HasEndTime = true
	}
}

func (w *Writer) buildSignature(qr *model.QueryResponse, ex model.ExclusionHints) block.SignatureKey {
	var sig block.SignatureKey
	primary := qr.Query
	if primary == nil {
		primary = qr.Response
	}

	if !ex.ServerAddress && primary.ServerAddress != nil {
		bits := w.prefixFor(primary.ServerAddress, w.cfg.ServerAddressPrefixIPv4, w.cfg.ServerAddressPrefixIPv6)
		sig.HasServerAddress = true
		sig.ServerAddressIdx = w.blk.AddAddress(addrBytes(primary.ServerAddress, bits))
	}
	if !ex.ServerPort {
		sig.HasServerPort = true
		sig.ServerPort = primary.ServerPort
	}
	if !ex.Transport {
		sig.HasTransport = true
		sig.Transport = primary.Transport
	}
	sig.HasQRType = true
	sig.QRHasQuery = qr.HasQuery()
	sig.QRHasResponse = qr.HasResponse()

	if !ex.QRFlags {
		sig.HasQRFlags = true
		sig.QRFlags = buildQRFlags(qr)
	}
	if !ex.Opcode {
		sig.HasQueryOpcode = true
		sig.QueryOpcode = primary.Opcode
	}
	if !ex.DNSFlags {
		sig.HasDNSFlags = true
		sig.DNSFlags = model.PackDNSFlags(qr.Query, qr.Response)
	}
	if !ex.Rcodes {
		if qr.Query != nil {
			sig.HasQueryRcode = true
			sig.QueryRcode = model.FoldRcode(qr.Query.Rcode, qr.Query.EDNS)
		}
		if qr.Response != nil {
			sig.HasResponseRcode = true
			sig.ResponseRcode = model.FoldRcode(qr.Response.Rcode, qr.Response.EDNS)
		}
	}
	if !ex.ClassType && primary.Question != nil {
		sig.HasQueryClass = true
		sig.QueryClassIdx = w.blk.AddClassType(block.ClassTypeKey{
			QType:  primary.Question.ClassType.QType,
			QClass: primary.Question.ClassType.QClass,
		})
	}
	if !ex.SectionCounts {
		sig.HasQDCount = true
		sig.QDCount = primary.QDCount
		sig.HasANCount = true
		sig.ANCount = primary.ANCount
		sig.HasNSCount = true
		sig.NSCount = primary.NSCount
		sig.HasARCount = true
		sig.ARCount = primary.ARCount
	}
	if !ex.EDNS && primary.EDNS != nil {
		sig.HasEDNSVersion = true
		sig.EDNSVersion = primary.EDNS.Version
		sig.HasEDNSUDPSize = true
		sig.EDNSUDPSize = primary.EDNS.UDPPayloadSize
		if primary.EDNS.OptRdata != nil {
			sig.HasEDNSOptRdata = true
			sig.EDNSOptRdataIdx = w.blk.AddNameRdata(primary.EDNS.OptRdata)
		}
	}
	return sig
}

// buildQRFlags restores the six named bits the original compactor
// packs into one qr_flags word (SPEC_FULL.md's supplemented feature).
func buildQRFlags(qr *model.QueryResponse) model.QRFlags {
	var f model.QRFlags
	if qr.HasQuery() {
		f |= model.HasQuery
		if !qr.Query.HasQuestion {
			f |= model.QueryHasNoQuestion
		}
		if qr.Query.EDNS != nil {
			f |= model.QueryHasOPT
		}
	}
	if qr.HasResponse() {
		f |= model.HasResponse
		if !qr.Response.HasQuestion {
			f |= model.ResponseHasNoQuestion
		}
		if qr.Response.EDNS != nil {
			f |= model.ResponseHasOPT
		}
	}
	return f
}

// StartExtendedQueryGroup/StartExtendedResponseGroup designate which
// side the following Write{Question,ResourceRecord} calls populate
// (spec §4.4, §9's cursor ownership note).
func (w *Writer) StartExtendedQueryGroup()    { w.curSide = sideQuery }
func (w *Writer) StartExtendedResponseGroup() { w.curSide = sideResponse }

func (w *Writer) StartQuestionsSection() { w.curSection = sectionQuestions }
func (w *Writer) StartAnswersSection()   { w.curSection = sectionAnswers }
func (w *Writer) StartAuthoritySection() { w.curSection = sectionAuthority }
func (w *Writer) StartAdditionalSection() { w.curSection = sectionAdditional }

// WriteQuestion buffers an extra question into the current side's
// questions-section list.
func (w *Writer) WriteQuestion(q model.Question) {
	if !w.requireGroupOpen("WriteQuestion") {
		return
	}
	nameIdx := w.blk.AddNameRdata(q.Name)
	key := block.QuestionKey{NameIdx: nameIdx}
	if !w.cfg.Exclusions.ClassType {
		key.HasClassType = true
		key.ClassTypeIdx = w.blk.AddClassType(block.ClassTypeKey{QType: q.ClassType.QType, QClass: q.ClassType.QClass})
	}
	idx := w.blk.AddQuestion(key)
	w.curQuestions = append(w.curQuestions, idx)
}

// WriteResourceRecord buffers an extra RR into the current side's
// current section list.
func (w *Writer) WriteResourceRecord(rr model.ResourceRecord) {
	if !w.requireGroupOpen("WriteResourceRecord") {
		return
	}
	nameIdx := w.blk.AddNameRdata(rr.Name)
	key := block.ResourceRecordKey{NameIdx: nameIdx}
	if !w.cfg.Exclusions.ClassType {
		key.HasClassType = true
		key.ClassTypeIdx = w.blk.AddClassType(block.ClassTypeKey{QType: rr.ClassType.QType, QClass: rr.ClassType.QClass})
	}
	if !w.cfg.Exclusions.RRTTL && rr.TTL != nil {
		key.HasTTL = true
		key.TTL = *rr.TTL
	}
	if !w.cfg.Exclusions.RRRdata && rr.RDATA != nil {
		key.HasRdata = true
		key.RdataIdx = w.blk.AddNameRdata(rr.RDATA)
	}
	idx := w.blk.AddResourceRecord(key)
	switch w.curSection {
	case sectionAnswers:
		w.curAnswers = append(w.curAnswers, idx)
	case sectionAuthority:
		w.curAuthority = append(w.curAuthority, idx)
	case sectionAdditional:
		w.curAdditional = append(w.curAdditional, idx)
	}
}

// EndExtendedGroup finalises the buffered questions/RRs of the
// current side into list-table indices stored on the pending
// record's extended-info slot for that side (spec §4.4).
func (w *Writer) EndExtendedGroup() {
	var e block.ExtraInfo
	if len(w.curQuestions) > 0 {
		e.HasQuestionsList = true
		e.QuestionsListIdx = w.blk.AddQuestionsList(w.curQuestions)
	}
	if len(w.curAnswers) > 0 {
		e.HasAnswersList = true
		e.AnswersListIdx = w.blk.AddRRsList(w.curAnswers)
	}
	if len(w.curAuthority) > 0 {
		e.HasAuthorityList = true
		e.AuthorityListIdx = w.blk.AddRRsList(w.curAuthority)
	}
	if len(w.curAdditional) > 0 {
		e.HasAdditionalList = true
		e.AdditionalListIdx = w.blk.AddRRsList(w.curAdditional)
	}

	switch w.curSide {
	case sideQuery:
		w.pendingQuery = e
	case sideResponse:
		w.pendingResp = e
	}

	w.curSide = sideNone
	w.curSection = sectionNone
	w.curQuestions = nil
	w.curAnswers = nil
	w.curAuthority = nil
	w.curAdditional = nil
}

// WriteAddressEvent counts ae into the current block's address-event
// multiset, unless excluded by policy, and snapshots stats (spec
// §4.4).
func (w *Writer) WriteAddressEvent(ae model.AddressEvent, stats model.PacketStatistics) {
	w.blk.EndStats = stats
	if w.cfg.Exclusions.AddressEvents {
		return
	}
	w.blk.CountAddressEvent(uint8(ae.Kind), ae.Code, normalizeAddr(ae.Address), ae.IsIPv6)
}

// EndRecord appends the pending record to the current block (spec
// §4.4), completing the per-transaction protocol; the rotate-now flag
// is consumed by the next transaction's CheckForRotation. It reports any protocol-misuse error a sanity check
// flagged earlier in the transaction (see requireGroupOpen).
func (w *Writer) EndRecord() error {
	if !w.pendingQuery.IsEmpty() {
		w.pending.QueryExtraInfo = &w.pendingQuery
	}
	if !w.pendingResp.IsEmpty() {
		w.pending.ResponseExtraInfo = &w.pendingResp
	}
	w.blk.AppendRecord(w.pending)
	err := w.protoErr
	w.protoErr = nil
	return err
}

// RotateRequested reports whether an external signal handler has
// raised the rotate-now flag since it was last consumed (spec §5).
func (w *Writer) RotateRequested() bool { return w.rotateRequested }

// Close flushes any in-progress block, writes the file footer, and
// closes the sink (spec §4.4).
func (w *Writer) Close() error {
	return w.closeFile()
}
