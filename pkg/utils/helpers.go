package utils

import (
	"strings"
)

var (
	NullEthereumAddress    = "0000000000000000000000000000000000000000"
	NullEthereumAddressHex = "0x" + NullEthereumAddress
)

// NormalizeAddress returns the lower-cased, trimmed form of a hex address,
// which is how the subgraph stores account ids.
func NormalizeAddress(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}

// IsEmptyAddress reports whether a is blank or the zero address.
func IsEmptyAddress(a string) bool {
	a = NormalizeAddress(a)
	return a == "" || a == NullEthereumAddressHex || a == NullEthereumAddress
}
