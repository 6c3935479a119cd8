package constants

import (
	"os"
	"strconv"
)

const (
	// DefaultMaxBlockItems bounds the number of query/response records
	// held in a block before it is flushed, absent an explicit override.
	DefaultMaxBlockItems = 10000

	// DefaultMaxFileSize of 0 means file-size rotation is disabled.
	DefaultMaxFileSize = 0

	// DefaultRotationPeriod of 0 means period rotation is disabled.
	DefaultRotationPeriod = 0
)

// Incomparabe embeds into a struct to forbid accidental use of == on
// values that carry slices/maps, catching it at compile time instead
// of at a confusing runtime panic.
type Incomparabe [0]func()

var LongTests bool
var VeryLongTests bool

func init() {
	VeryLongTests = isTruthy("TEST_CDNSWRITER_VERY_LONG")
	LongTests = VeryLongTests || isTruthy("TEST_CDNSWRITER_LONG")
}

func isTruthy(varname string) bool {
	envStr := os.Getenv(varname)
	if envStr != "" {
		if num, err := strconv.ParseUint(envStr, 10, 64); err != nil || num != 0 {
			return true
		}
	}
	return false
}

var PerformSanityChecks = true
