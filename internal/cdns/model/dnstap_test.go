package model

import (
	"net"
	"testing"

	dnstap "github.com/dnstap/golang-dnstap"
)

func TestTransportFromDNSTap(t *testing.T) {
	cases := []struct {
		proto dnstap.SocketProtocol
		want  Transport
	}{
		{dnstap.SocketProtocol_UDP, TransportUDP},
		{dnstap.SocketProtocol_TCP, TransportTCP},
		{dnstap.SocketProtocol_DOT, TransportTLS},
		{dnstap.SocketProtocol_DOH, TransportHTTPS},
	}
	for _, c := range cases {
		if got := TransportFromDNSTap(c.proto); got != c.want {
			t.Errorf("TransportFromDNSTap(%v) = %v, want %v", c.proto, got, c.want)
		}
	}
}

func TestAddressesFromDNSTapClientQuery(t *testing.T) {
	qport := uint32(40000)
	rport := uint32(53)
	msg := &dnstap.Message{
		QueryAddress:    net.ParseIP("192.0.2.10").To4(),
		ResponseAddress: net.ParseIP("198.51.100.53").To4(),
		QueryPort:       &qport,
		ResponsePort:    &rport,
	}

	clientAddr, serverAddr, clientPort, serverPort := AddressesFromDNSTap(msg, true)
	if !clientAddr.Equal(net.ParseIP("192.0.2.10")) {
		t.Errorf("clientAddr = %v, want 192.0.2.10", clientAddr)
	}
	if !serverAddr.Equal(net.ParseIP("198.51.100.53")) {
		t.Errorf("serverAddr = %v, want 198.51.100.53", serverAddr)
	}
	if clientPort != 40000 || serverPort != 53 {
		t.Errorf("ports = %d/%d, want 40000/53", clientPort, serverPort)
	}
}

func TestAddressesFromDNSTapInvertedRole(t *testing.T) {
	qport := uint32(53)
	rport := uint32(40000)
	msg := &dnstap.Message{
		QueryAddress:    net.ParseIP("198.51.100.53").To4(),
		ResponseAddress: net.ParseIP("192.0.2.10").To4(),
		QueryPort:       &qport,
		ResponsePort:    &rport,
	}

	clientAddr, serverAddr, clientPort, serverPort := AddressesFromDNSTap(msg, false)
	if !clientAddr.Equal(net.ParseIP("192.0.2.10")) {
		t.Errorf("clientAddr = %v, want 192.0.2.10", clientAddr)
	}
	if !serverAddr.Equal(net.ParseIP("198.51.100.53")) {
		t.Errorf("serverAddr = %v, want 198.51.100.53", serverAddr)
	}
	if clientPort != 40000 || serverPort != 53 {
		t.Errorf("ports = %d/%d, want 40000/53", clientPort, serverPort)
	}
}

func TestAddressesFromDNSTapNilMessage(t *testing.T) {
	clientAddr, serverAddr, clientPort, serverPort := AddressesFromDNSTap(nil, true)
	if clientAddr != nil || serverAddr != nil || clientPort != 0 || serverPort != 0 {
		t.Fatal("expected all-zero result for a nil message")
	}
}
