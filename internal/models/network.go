// Package models holds the persisted entities of the Network Planner,
// mirroring the tables described in SPEC_FULL.md §3.
package models

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// Network is the operator's abstract declaration of a VPN network.
type Network struct {
	ID                  uuid.UUID
	Name                string
	CIDR                *net.IPNet
	DNSServers          []net.IP
	PersistentKeepalive int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BaseHost returns the IPv4 address at the given positive offset from
// the network's base address, per SPEC_FULL.md / spec.md §3's
// "Effective address = network.cidr.base_host(offset)".
func (n *Network) BaseHost(offset int) net.IP {
	base := n.CIDR.IP.To4()
	ip := make(net.IP, 4)
	copy(ip, base)
	v := uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
	v += uint32(offset)
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
