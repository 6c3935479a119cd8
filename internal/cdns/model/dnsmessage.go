// Package model holds the plain data types the writer core exchanges
// with its matcher collaborator: the Transaction input interface and
// its DNS-message, question, resource-record, and address-event
// sub-structures (spec §3, §6).
//
// Field names here are deliberately close to dnstap's Message shape
// (timestamp, socket family/protocol, addresses, ports, query/response
// wire bytes) since that is the real wire format a matcher typically
// unpacks before handing us a Transaction. We use miekg/dns only for
// its RR-type and class name tables (ClassType.String); no packet
// parsing happens in this package or anywhere else in the writer core.
package model

import (
	"net"
	"time"

	"github.com/miekg/dns"
)

// Transport identifies the network/session layer a DNS message
// travelled over.
type Transport uint8

const (
	TransportUDP Transport = iota
	TransportTCP
	TransportTLS
	TransportDTLS
	TransportHTTPS
)

func (t Transport) String() string {
	switch t {
	case TransportUDP:
		return "UDP"
	case TransportTCP:
		return "TCP"
	case TransportTLS:
		return "TLS"
	case TransportDTLS:
		return "DTLS"
	case TransportHTTPS:
		return "HTTPS"
	default:
		return "UNKNOWN"
	}
}

// ClassType is the (qtype, qclass) pair shared by questions and
// resource records, interned as a unit (spec §3 table). QType/QClass
// use the same uint16 wire values miekg/dns's Question.Qtype/Qclass
// do, so dns.TypeToString/dns.ClassToString can stringify them.
type ClassType struct {
	QType  uint16
	QClass uint16
}

func (ct ClassType) String() string {
	t, ok := dns.TypeToString[ct.QType]
	if !ok {
		t = "TYPE" + itoa(int(ct.QType))
	}
	c, ok := dns.ClassToString[ct.QClass]
	if !ok {
		c = "CLASS" + itoa(int(ct.QClass))
	}
	return t + " " + c
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// EDNS carries the EDNS(0) OPT fields spec §3 lists as optional.
type EDNS struct {
	UDPPayloadSize    uint16
	ExtendedRcodeHigh uint8 // top 8 bits of the 12-bit extended RCODE
	Version           uint8
	DO                bool   // DNSSEC OK bit, RFC 3225
	OptRdata          []byte // opaque wire-format RDATA of the OPT RR
}

// Question is the first (or only, for extended sections) question of
// a DNS message: name plus class/type.
type Question struct {
	Name      []byte // domain name, wire-encoded
	ClassType ClassType
}

// ResourceRecord is an answer/authority/additional RR carried in an
// extended section.
type ResourceRecord struct {
	Name      []byte
	ClassType ClassType
	TTL       *uint32 // nil if excluded or absent
	RDATA     []byte  // nil if excluded; opaque wire-format RDATA
}

// DNSMessage is one side (query or response) of a Transaction, with
// every field spec §3 lists as part of a "Transaction (input)".
type DNSMessage struct {
	Timestamp time.Time

	ClientAddress net.IP
	ClientPort    uint16
	ServerAddress net.IP
	ServerPort    uint16
	Transport     Transport

	ID      uint16
	Opcode  uint8 // dns.OpcodeQuery and friends, from miekg/dns
	Rcode   uint8 // dns.RcodeSuccess and friends, low 4 bits pre-EDNS fold
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16

	// AA/TC/RD/RA/AD/CD are this side's DNS header flag bits, packed
	// into the QueryResponseSignature's dns_flags word by PackDNSFlags.
	AA bool
	TC bool
	RD bool
	RA bool
	AD bool
	CD bool

	// Question is the message's first question, if any.
	Question    *Question
	HasQuestion bool

	// ExtraQuestions/Answers/Authorities/Additionals beyond the first
	// question are the "extended group" payload (spec §4.4,
	// start/end QuestionsSection etc.) — populated by the matcher
	// only when it wants those sections archived in full.
	ExtraQuestions []Question
	Answers        []ResourceRecord
	Authorities    []ResourceRecord
	Additionals    []ResourceRecord

	EDNS    *EDNS
	WireLen *uint32 // on-wire message length, if known
	HopLim  *uint8  // IP hop limit / TTL of the carrying packet
}

// QueryResponse is a matched pair with at least one side present
// (spec §3's "Transaction (input)"), mirroring the original compactor's
// QueryResponse (query_/response_ unique_ptrs, at least one set).
type QueryResponse struct {
	Query    *DNSMessage
	Response *DNSMessage
}

func (qr *QueryResponse) HasQuery() bool    { return qr.Query != nil }
func (qr *QueryResponse) HasResponse() bool { return qr.Response != nil }

// Timestamp returns the query's timestamp if present, else the
// response's. Panics if neither is set — same precondition the
// original's queryresponse_match_error guards against; callers of
// this package must not construct an empty QueryResponse.
func (qr *QueryResponse) Timestamp() time.Time {
	if qr.Query != nil {
		return qr.Query.Timestamp
	}
	if qr.Response != nil {
		return qr.Response.Timestamp
	}
	panic("model: QueryResponse has neither query nor response")
}
