// Package fields is the single table-driven mapping from semantic
// field name to CBOR map key, required by spec §4.3/§9 ("Field
// registry... MUST live in one place; both writer and reader consult
// the same table"). Numbering follows the original compactor's
// block_cbor field-index assignments (blockcbordata.cpp /
// blockcborwriter.cpp) so a reader built against that registry can
// parse files this writer emits.
package fields

// FileFormatID is the text item that opens every C-DNS file.
const FileFormatID = "C-DNS"

const (
	FormatMajorVersion = 1
	FormatMinorVersion = 0
	FormatPrivateVersion = 0
)

// File preamble map keys.
const (
	FilePreambleMajorVersion int = 0
	FilePreambleMinorVersion int = 1
	FilePreamblePrivateVersion int = 2
	FilePreambleBlockParameters int = 3
)

// BlockParameters map keys (storage/collection hints and the
// per-block identifiers the writer intends to use — spec §6).
const (
	BlockParamsStorageHints int = 0
	BlockParamsCollectionHints int = 1
	BlockParamsOpcodes int = 2
	BlockParamsRRTypes int = 3
	BlockParamsStorageHintsDetail int = 4
)

// StorageHints sub-map keys.
const (
	StorageHintsQueryResponseHints int = 0
	StorageHintsQueryResponseSignatureHints int = 1
	StorageHintsRRHints int = 2
	StorageHintsOtherDataHints int = 3
)

// Block map keys (top-level members of a single block).
const (
	BlockPreamble int = 0
	BlockStatistics int = 1
	BlockTables int = 2
	BlockQueryResponses int = 3
	BlockAddressEventCounts int = 4
	BlockMalformedMessages int = 5
)

// BlockPreamble map keys.
const (
	BlockPreambleStartTime int = 0
	BlockPreambleBlockParametersIndex int = 1
)

// BlockStatistics map keys.
const (
	StatsTotalPackets int = 0
	StatsTotalPairs int = 1
	StatsUnmatchedQueries int = 2
	StatsUnmatchedResponses int = 3
	StatsMalformedPackets int = 4
	StatsCompactorNonDNSPackets int = 5
)

// BlockTables map keys: one per interning table (spec §3 table).
const (
	TablesIPAddress int = 0
	TablesClassType int = 1
	TablesNameRdata int = 2
	TablesQuestion int = 3
	TablesResourceRecord int = 4
	TablesQueryResponseSignature int = 5
	TablesQuestionList int = 6
	TablesRRList int = 7
)

// ClassType table entry keys.
const (
	ClassTypeType int = 0
	ClassTypeClass int = 1
)

// Question table entry keys.
const (
	QuestionName int = 0
	QuestionClassType int = 1
)

// ResourceRecord table entry keys.
const (
	RRName int = 0
	RRClassType int = 1
	RRTTL int = 2
	RRRdata int = 3
)

// QueryResponseSignature table entry keys.
const (
	SigServerAddress int = 0
	SigServerPort int = 1
	SigQRTransportFlags int = 2
	SigQRType int = 3
	SigQRSigFlags int = 4
	SigQueryOpcode int = 5
	SigQRDNSFlags int = 6
	SigQueryRcode int = 7
	SigQueryClassType int = 8
	SigQueryQDCount int = 9
	SigQueryANCount int = 10
	SigQueryNSCount int = 11
	SigQueryARCount int = 12
	SigQueryEDNSVersion int = 13
	SigQueryUDPSize int = 14
	SigQueryOptRdata int = 15
	SigResponseRcode int = 16
)

// QueryResponse record map keys.
const (
	RecordTimeOffset int = 0
	RecordClientAddressIndex int = 1
	RecordClientPort int = 2
	RecordTransactionID int = 3
	RecordQRSignatureIndex int = 4
	RecordClientHoplimit int = 5
	RecordResponseDelay int = 6
	RecordQueryName int = 7
	RecordQuerySize int = 8
	RecordResponseSize int = 9
	RecordQueryExtraInfo int = 10
	RecordResponseExtraInfo int = 11
)

// QueryResponseExtraInfo map keys.
const (
	ExtraQuestionsList int = 0
	ExtraAnswersList int = 1
	ExtraAuthorityList int = 2
	ExtraAdditionalList int = 3
)

// AddressEventCount table entry keys.
const (
	AEType int = 0
	AECode int = 1
	AEAddressIndex int = 2
	AECount int = 3
)
