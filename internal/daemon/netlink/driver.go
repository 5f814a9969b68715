// Package netlink implements the Convergence Daemon's Netlink Driver
// (SPEC_FULL.md §4.E): link lifecycle and device/peer state pushed
// through real netlink sockets rather than shelling out to `wg`.
// Grounded on plexsphere-plexd's internal/wireguard/controller_linux.go,
// which makes the same wgctrl-plus-vishvananda/netlink split.
package netlink

import "net"

// Kind categorizes a Driver error so the convergence loop knows how to
// react, per spec.md §4.E.
type Kind int

const (
	// KindFatal is an unrecoverable condition; skip this tick, log loudly.
	KindFatal Kind = iota
	// KindPermissionDenied means the process lacks CAP_NET_ADMIN; no
	// netlink mutation can succeed. The convergence loop logs it and
	// tries again next tick; the daemon does not exit on it.
	KindPermissionDenied
	// KindNotFound means the target link/peer doesn't exist. Callers
	// that are deleting treat this as already-satisfied.
	KindNotFound
	// KindTransient means the operation may succeed if retried next tick.
	KindTransient
)

// Error wraps a Driver failure with its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string { return "netlink: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var nerr *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			nerr = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nerr != nil && nerr.Kind == kind
}

// Addr is an IPv4 address with its prefix length, as pushed by
// set_addresses.
type Addr struct {
	IP        net.IP
	PrefixLen int
}

// Peer is one WireGuard peer to push during configure.
type Peer struct {
	PublicKey           string
	PresharedKey        string // empty if none
	Endpoint            string // "host:port", empty if none
	AllowedIPs          []string
	PersistentKeepalive int // seconds, 0 disables
}

// DeviceConfig is the device-level state pushed by configure. The
// driver passes ReplacePeers through as given; the convergence loop
// always sets it so the device ends up with exactly the given peer
// set, per spec.md §4.E.
type DeviceConfig struct {
	PrivateKey   string
	ListenPort   int
	FWMark       *int
	ReplacePeers bool
	Peers        []Peer
}

// Driver abstracts the netlink/wgctrl operations the convergence loop
// needs, so the loop can be tested against a fake without real
// privileged syscalls.
type Driver interface {
	EnsureLink(ifname string) error
	SetAddresses(ifname string, addrs []Addr) error
	Configure(ifname string, cfg DeviceConfig) error
	SetUp(ifname string) error
	DeleteLink(ifname string) error
}
