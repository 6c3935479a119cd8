package block

import (
	"time"

	"github.com/sinodun-go/cdnswriter/internal/constants"
)

// ExtraInfo is the optional per-side "extended group" payload (spec
// §3's record "optional extended-info groups"): indices into the
// Query-list/RR-list tables for questions/answers/authority/
// additional beyond the first question.
type ExtraInfo struct {
	HasQuestionsList bool
	QuestionsListIdx int
	HasAnswersList   bool
	AnswersListIdx   int
	HasAuthorityList bool
	AuthorityListIdx int
	HasAdditionalList bool
	AdditionalListIdx int
}

// IsEmpty reports whether no optional list is present.
func (e *ExtraInfo) IsEmpty() bool {
	return e == nil || (!e.HasQuestionsList && !e.HasAnswersList && !e.HasAuthorityList && !e.HasAdditionalList)
}

// Record is the per-transaction record of spec §3: timestamp,
// client-address-index, client-port, transaction-id, qname-index,
// query/response size, hop limit, response delay, signature-index,
// plus the optional extended-info groups. The qr-flags bitset is
// carried in the referenced signature (SignatureKey.QRFlags).
type Record struct {
	_ constants.Incomparabe // carries *ExtraInfo pointers; compare fields, not the struct

	HasTimestamp bool
	Timestamp    time.Time

	HasClientAddress bool
	ClientAddressIdx int
	HasClientPort    bool
	ClientPort       uint16
	HasTransactionID bool
	TransactionID    uint16
	HasQName         bool
	QNameIdx         int
	HasQuerySize     bool
	QuerySize        uint32
	HasResponseSize  bool
	ResponseSize     uint32
	HasHopLimit      bool
	HopLimit         uint8
	HasResponseDelay bool
	ResponseDelay    time.Duration
	HasSignature     bool
	SignatureIdx     int

	QueryExtraInfo    *ExtraInfo
	ResponseExtraInfo *ExtraInfo
}

// AddressEventKey is the (event-kind, event-code, client-address,
// is-ipv6) multiset key of spec §3. ClientAddressIdx refers to the
// same IPs table client/server addresses are interned into.
type AddressEventKey struct {
	Kind             uint8
	Code             uint16
	ClientAddressIdx int
	IsIPv6           bool
}
