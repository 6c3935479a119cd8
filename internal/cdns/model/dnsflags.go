package model

// DNSFlags bits pack a transaction's query and response header/EDNS
// flags into the single "dns_flags" word backend.cpp's
// block_cbor::set_dns_flags splits back apart by side (query bits in
// the low byte, response bits in the high byte), and
// blockcborwriter.cpp's writeBasic assigns once per transaction via
// block_cbor::dns_flags(*qr) rather than carrying the bits separately.
const (
	QueryAA DNSFlags = 1 << 0
	QueryTC DNSFlags = 1 << 1
	QueryRD DNSFlags = 1 << 2
	QueryRA DNSFlags = 1 << 3
	QueryAD DNSFlags = 1 << 4
	QueryCD DNSFlags = 1 << 5
	QueryDO DNSFlags = 1 << 6 // EDNS(0) DNSSEC-OK, RFC 3225

	ResponseAA DNSFlags = 1 << 8
	ResponseTC DNSFlags = 1 << 9
	ResponseRD DNSFlags = 1 << 10
	ResponseRA DNSFlags = 1 << 11
	ResponseAD DNSFlags = 1 << 12
	ResponseCD DNSFlags = 1 << 13
)

// DNSFlags is the QueryResponseSignature's dns_flags word.
type DNSFlags uint16

func (f DNSFlags) Has(bit DNSFlags) bool { return f&bit != 0 }

// PackDNSFlags builds the dns_flags word for a transaction from its
// query and response messages, either of which may be nil.
func PackDNSFlags(q, r *DNSMessage) DNSFlags {
	var f DNSFlags
	if q != nil {
		if q.AA {
			f |= QueryAA
		}
		if q.TC {
			f |= QueryTC
		}
		if q.RD {
			f |= QueryRD
		}
		if q.RA {
			f |= QueryRA
		}
		if q.AD {
			f |= QueryAD
		}
		if q.CD {
			f |= QueryCD
		}
		if q.EDNS != nil && q.EDNS.DO {
			f |= QueryDO
		}
	}
	if r != nil {
		if r.AA {
			f |= ResponseAA
		}
		if r.TC {
			f |= ResponseTC
		}
		if r.RD {
			f |= ResponseRD
		}
		if r.RA {
			f |= ResponseRA
		}
		if r.AD {
			f |= ResponseAD
		}
		if r.CD {
			f |= ResponseCD
		}
	}
	return f
}
