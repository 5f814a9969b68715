//go:build linux

package netlink

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"

	vnetlink "github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// LinkDriver implements Driver against real rtnetlink and the
// generic-netlink WireGuard family.
type LinkDriver struct {
	logger *slog.Logger
}

// New returns a LinkDriver.
func New(logger *slog.Logger) *LinkDriver {
	return &LinkDriver{logger: logger}
}

var _ Driver = (*LinkDriver)(nil)

// EnsureLink creates a WireGuard link by the given name if none
// exists. If a link with that name exists but isn't a WireGuard link,
// this fails fatally per spec.md §4.E.
func (d *LinkDriver) EnsureLink(ifname string) error {
	existing, err := vnetlink.LinkByName(ifname)
	if err == nil {
		if existing.Type() != "wireguard" {
			return &Error{Kind: KindFatal, Op: "ensure_link", Err: fmt.Errorf("interface %q exists with type %q, not wireguard", ifname, existing.Type())}
		}
		return nil
	}
	if !isLinkNotFound(err) {
		return classify("ensure_link", err)
	}

	attrs := vnetlink.NewLinkAttrs()
	attrs.Name = ifname
	link := &vnetlink.GenericLink{LinkAttrs: attrs, LinkType: "wireguard"}
	if err := vnetlink.LinkAdd(link); err != nil {
		return classify("ensure_link", err)
	}

	d.logger.Info("wireguard link created", "interface", ifname)
	return nil
}

// SetAddresses reconciles the interface's IPv4 addresses to exactly
// the given set: missing ones are added, extraneous ones removed.
func (d *LinkDriver) SetAddresses(ifname string, want []Addr) error {
	link, err := vnetlink.LinkByName(ifname)
	if err != nil {
		return classify("set_addresses", err)
	}

	current, err := vnetlink.AddrList(link, vnetlink.FAMILY_V4)
	if err != nil {
		return classify("set_addresses", err)
	}

	wantSet := make(map[string]Addr, len(want))
	for _, a := range want {
		wantSet[fmt.Sprintf("%s/%d", a.IP.String(), a.PrefixLen)] = a
	}

	haveSet := make(map[string]bool, len(current))
	for _, c := range current {
		ones, _ := c.IPNet.Mask.Size()
		haveSet[fmt.Sprintf("%s/%d", c.IPNet.IP.String(), ones)] = true
		if _, ok := wantSet[fmt.Sprintf("%s/%d", c.IPNet.IP.String(), ones)]; !ok {
			if err := vnetlink.AddrDel(link, &c); err != nil {
				return classify("set_addresses", err)
			}
		}
	}

	for key, a := range wantSet {
		if haveSet[key] {
			continue
		}
		addr, err := vnetlink.ParseAddr(fmt.Sprintf("%s/%d", a.IP.String(), a.PrefixLen))
		if err != nil {
			return &Error{Kind: KindFatal, Op: "set_addresses", Err: err}
		}
		if err := vnetlink.AddrAdd(link, addr); err != nil {
			return classify("set_addresses", err)
		}
	}

	return nil
}

// SetUp brings the interface up.
func (d *LinkDriver) SetUp(ifname string) error {
	link, err := vnetlink.LinkByName(ifname)
	if err != nil {
		return classify("set_up", err)
	}
	if err := vnetlink.LinkSetUp(link); err != nil {
		return classify("set_up", err)
	}
	return nil
}

// Configure atomically pushes device and peer state via wgctrl. The
// caller always sets cfg.ReplacePeers so the device converges to
// exactly the given peer set.
func (d *LinkDriver) Configure(ifname string, cfg DeviceConfig) error {
	client, err := wgctrl.New()
	if err != nil {
		return classify("configure", err)
	}
	defer client.Close()

	privKey, err := wgtypes.ParseKey(cfg.PrivateKey)
	if err != nil {
		return &Error{Kind: KindFatal, Op: "configure", Err: fmt.Errorf("parse private key: %w", err)}
	}

	peers := make([]wgtypes.PeerConfig, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		pc, err := peerConfig(p)
		if err != nil {
			return &Error{Kind: KindFatal, Op: "configure", Err: err}
		}
		peers = append(peers, pc)
	}

	wgcfg := wgtypes.Config{
		PrivateKey:   &privKey,
		ListenPort:   &cfg.ListenPort,
		FirewallMark: cfg.FWMark,
		ReplacePeers: cfg.ReplacePeers,
		Peers:        peers,
	}

	if err := client.ConfigureDevice(ifname, wgcfg); err != nil {
		return classify("configure", err)
	}
	return nil
}

// DeleteLink removes the named interface. Idempotent: a missing link
// is success.
func (d *LinkDriver) DeleteLink(ifname string) error {
	link, err := vnetlink.LinkByName(ifname)
	if err != nil {
		if isLinkNotFound(err) {
			return nil
		}
		return classify("delete_link", err)
	}
	if err := vnetlink.LinkDel(link); err != nil {
		return classify("delete_link", err)
	}
	d.logger.Info("wireguard link deleted", "interface", ifname)
	return nil
}

func peerConfig(p Peer) (wgtypes.PeerConfig, error) {
	pubKey, err := wgtypes.ParseKey(p.PublicKey)
	if err != nil {
		return wgtypes.PeerConfig{}, fmt.Errorf("parse peer public key: %w", err)
	}

	pc := wgtypes.PeerConfig{
		PublicKey:         pubKey,
		ReplaceAllowedIPs: true,
	}

	if p.PresharedKey != "" {
		psk, err := wgtypes.ParseKey(p.PresharedKey)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("parse preshared key: %w", err)
		}
		pc.PresharedKey = &psk
	}

	if p.Endpoint != "" {
		udpAddr, err := net.ResolveUDPAddr("udp", p.Endpoint)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("resolve endpoint %q: %w", p.Endpoint, err)
		}
		pc.Endpoint = udpAddr
	}

	for _, cidr := range p.AllowedIPs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("parse allowed ip %q: %w", cidr, err)
		}
		pc.AllowedIPs = append(pc.AllowedIPs, *ipNet)
	}

	if p.PersistentKeepalive > 0 {
		keepalive := time.Duration(p.PersistentKeepalive) * time.Second
		pc.PersistentKeepaliveInterval = &keepalive
	}

	return pc, nil
}

func isLinkNotFound(err error) bool {
	_, ok := err.(vnetlink.LinkNotFoundError)
	return ok
}

func classify(op string, err error) error {
	if isLinkNotFound(err) {
		return &Error{Kind: KindNotFound, Op: op, Err: err}
	}
	if errors.Is(err, os.ErrPermission) {
		return &Error{Kind: KindPermissionDenied, Op: op, Err: err}
	}
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EBUSY) {
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}
	return &Error{Kind: KindFatal, Op: op, Err: err}
}
