// Package allocator implements the Address Allocator (SPEC_FULL.md
// §4.B): given a network's CIDR and the offsets already in use, it
// returns the smallest free positive offset, skipping the network and
// broadcast addresses and the reserved offset 0.
package allocator

import (
	"fmt"
	"net"

	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// NextOffset returns the smallest positive integer offset such that
// base+offset is a usable host address inside cidr and offset is not
// already present in used. Offset 0 is never returned: it is reserved
// by convention for the gateway's own address in rendered client
// configs that don't forward internet traffic (spec.md §9).
//
// The caller is expected to run this inside the same transaction as
// the insert it accompanies and re-check uniqueness at commit time
// (SPEC_FULL.md §4.B); NextOffset itself is a pure function of its
// inputs.
func NextOffset(cidr *net.IPNet, used map[int]bool) (int, error) {
	ones, bits := cidr.Mask.Size()
	if bits != 32 {
		return 0, fmt.Errorf("allocator: %w: only IPv4 CIDRs are supported", wgerr.ErrValidation)
	}

	hostBits := bits - ones
	totalHosts := 1 << uint(hostBits)

	// Usable host offsets exclude the network address (offset 0, also
	// reserved by policy) and the broadcast address (offset
	// totalHosts-1).
	maxOffset := totalHosts - 2
	if maxOffset < 1 {
		return 0, fmt.Errorf("allocator: %w: network has no usable host addresses", wgerr.ErrCapacity)
	}

	for offset := 1; offset <= maxOffset; offset++ {
		if !used[offset] {
			return offset, nil
		}
	}

	return 0, fmt.Errorf("allocator: %w", wgerr.ErrCapacity)
}
