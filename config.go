package cdnswriter

import (
	"time"

	"github.com/sinodun-go/cdnswriter/internal/cdns/model"
	"github.com/sinodun-go/cdnswriter/internal/constants"
)

// CompressionVariant selects the Compressing Sink implementation
// (spec §4.1's "compression variant" constructor parameter).
type CompressionVariant int

const (
	CompressionNone CompressionVariant = iota
	CompressionGzip
	CompressionXz
)

// Config is the plain struct of typed fields an external collaborator
// (daemon/CLI) populates before constructing a Writer, mirroring the
// teacher's own config.go shape. Configuration-file/CLI parsing itself
// is out of scope here (spec.md §1's Non-goals).
type Config struct {
	// OutputPattern is the strftime-subset filename pattern passed to
	// the Output Path Engine (spec §4.5); "-" means standard output.
	OutputPattern string

	Compression      CompressionVariant
	CompressionLevel int
	Logging          bool

	// MaxBlockItems bounds the Accumulator's pending-record count
	// (spec §3/§4.3); 0 means unbounded.
	MaxBlockItems int
	// MaxFileSize bounds the Sink's post-compression byte count
	// before rotation (spec §4.4); 0 means unbounded.
	MaxFileSize uint64
	// RotationPeriod bounds the wall-clock window a single file may
	// span (spec §4.4/§4.5); 0 disables period-based rotation.
	RotationPeriod time.Duration

	// ClientAddressPrefixIPv4/IPv6 truncate interned addresses to the
	// given bit length (spec §3's "Address-prefix truncation",
	// scenario 4 of §8). 32/128 means no truncation.
	ClientAddressPrefixIPv4 int
	ClientAddressPrefixIPv6 int
	ServerAddressPrefixIPv4 int
	ServerAddressPrefixIPv6 int

	Exclusions model.ExclusionHints

	// StartEndTimesFromData, when set, widens the block start time down
	// to the earliest record timestamp, so that earliest_time <=
	// start_time <= every record.timestamp <= end_time (spec §3);
	// otherwise the start time is the timestamp of the record that
	// opened the block. The end time is always the latest record
	// timestamp.
	StartEndTimesFromData bool
}

// DefaultConfig returns a Config with zero-risk defaults: no address
// truncation, no rotation, synchronous uncompressed output to the
// current directory.
func DefaultConfig() Config {
	return Config{
		OutputPattern:           "capture-%Y%m%d-%H%M%S",
		Compression:             CompressionNone,
		CompressionLevel:        6,
		MaxBlockItems:           constants.DefaultMaxBlockItems,
		MaxFileSize:             constants.DefaultMaxFileSize,
		RotationPeriod:          constants.DefaultRotationPeriod * time.Second,
		ClientAddressPrefixIPv4: 32,
		ClientAddressPrefixIPv6: 128,
		ServerAddressPrefixIPv4: 32,
		ServerAddressPrefixIPv6: 128,
	}
}
