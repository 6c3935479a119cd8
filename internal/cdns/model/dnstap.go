package model

import (
	"net"

	dnstap "github.com/dnstap/golang-dnstap"
)

// TransportFromDNSTap maps a dnstap SocketProtocol onto our Transport
// enum. It is a pure enum translation, not packet parsing: callers
// still do their own DNS-message unpacking (a Non-goal of this
// package) before building a DNSMessage.
func TransportFromDNSTap(proto dnstap.SocketProtocol) Transport {
	switch proto {
	case dnstap.SocketProtocol_TCP:
		return TransportTCP
	case dnstap.SocketProtocol_DOT:
		return TransportTLS
	case dnstap.SocketProtocol_DOH:
		return TransportHTTPS
	default:
		return TransportUDP
	}
}

// AddressesFromDNSTap pulls the client/server addresses and ports out
// of a dnstap Message's socket-layer fields. For CLIENT_QUERY/
// CLIENT_RESPONSE messages query_address/query_port is the client and
// response_address/response_port is the server, matching how
// dnstap-consuming collectors in the wild read these fields; other
// message roles (RESOLVER_*, FORWARDER_*, etc.) invert that pairing,
// which callers must account for by passing clientIsQuery=false.
func AddressesFromDNSTap(msg *dnstap.Message, clientIsQuery bool) (clientAddr, serverAddr net.IP, clientPort, serverPort uint16) {
	if msg == nil {
		return nil, nil, 0, 0
	}
	queryAddr := net.IP(msg.QueryAddress)
	responseAddr := net.IP(msg.ResponseAddress)
	var queryPort, responsePort uint16
	if msg.QueryPort != nil {
		queryPort = uint16(*msg.QueryPort)
	}
	if msg.ResponsePort != nil {
		responsePort = uint16(*msg.ResponsePort)
	}
	if clientIsQuery {
		return queryAddr, responseAddr, queryPort, responsePort
	}
	return responseAddr, queryAddr, responsePort, queryPort
}
