package model

import "net"

// AEKind is the event-kind half of an Address-Event (spec §3):
// ICMP-style notifications the matcher observed for a client address,
// independent of any particular DNS transaction.
type AEKind uint8

const (
	AETCPReset AEKind = iota
	AEICMPTimeExceeded
	AEICMPDestUnreachable
	AEICMPv6TimeExceeded
	AEICMPv6DestUnreachable
	AEICMPv6PacketTooBig
)

// AddressEvent is one occurrence of an event-kind/event-code pair for
// a client address, counted as a multiset per block (spec §3).
type AddressEvent struct {
	Kind      AEKind
	Code      uint16
	Address   net.IP
	IsIPv6    bool
}
