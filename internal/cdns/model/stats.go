package model

// PacketStatistics is the "Statistics input interface" of spec §6:
// supplied by the matcher on every record-producing call and
// snapshotted by the Orchestrator at block start/end (spec §3, §4.4).
// Field set follows the kind of counters the original compactor's
// PacketStatistics/AddressEventCount structures track.
type PacketStatistics struct {
	TotalPackets        uint64
	TotalPairs          uint64
	UnmatchedQueries    uint64
	UnmatchedResponses  uint64
	MalformedPackets    uint64
	CompactorNonDNSPackets uint64
}
