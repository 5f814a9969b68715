// Package topology implements the Topology Resolver (SPEC_FULL.md
// §4.C): the component that turns persisted networks, servers,
// clients, routes, and PSKs into a gateway's desired peer state and a
// client's exportable .conf text.
package topology

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/wirewarden/wirewarden/internal/models"
	"github.com/wirewarden/wirewarden/internal/store"
	"github.com/wirewarden/wirewarden/internal/vault"
)

// Resolver computes gateway views and client configs from the store.
type Resolver struct {
	store *store.Store
}

// New builds a Resolver over the given store.
func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// InterfaceView is the local WireGuard interface state a gateway
// should run, per the wire format in spec.md §6.
type InterfaceView struct {
	Address    string
	PrefixLen  int
	ListenPort int
	PrivateKey string
}

// PeerView is one client peer entry in a gateway's desired state.
type PeerView struct {
	PublicKey           string
	PresharedKey        string
	AllowedIPs          []string
	PersistentKeepalive int
}

// GatewayView is a server's fully materialised desired state: its own
// interface plus one peer per client in its network. Server-to-server
// peering is not modelled (spec.md §4.C).
type GatewayView struct {
	Interface InterfaceView
	Peers     []PeerView
}

// GatewayView produces the gateway-shaped view of a server's desired
// WireGuard state, per spec.md §4.C "Gateway view of a server".
func (r *Resolver) GatewayView(ctx context.Context, server *models.Server) (*GatewayView, error) {
	network, err := r.store.GetNetwork(ctx, server.NetworkID)
	if err != nil {
		return nil, err
	}

	key, err := r.store.GetKey(ctx, server.KeyID)
	if err != nil {
		return nil, err
	}
	privKey, err := r.store.Vault.RevealPrivate(vault.Sealed{Ciphertext: key.PrivateKeyCiphertext, Nonce: key.PrivateKeyNonce})
	if err != nil {
		return nil, err
	}

	ones, _ := network.CIDR.Mask.Size()
	iface := InterfaceView{
		Address:    network.BaseHost(server.Offset).String(),
		PrefixLen:  ones,
		ListenPort: *server.EndpointPort,
		PrivateKey: privKey.String(),
	}

	clients, err := r.store.ListClientsByNetwork(ctx, network.ID)
	if err != nil {
		return nil, err
	}

	peers := make([]PeerView, 0, len(clients))
	for _, client := range clients {
		clientKey, err := r.store.GetKey(ctx, client.KeyID)
		if err != nil {
			return nil, err
		}

		pskKey, err := r.revealPSK(ctx, server.ID, client.ID)
		if err != nil {
			return nil, err
		}

		peers = append(peers, PeerView{
			PublicKey:           clientKey.PublicKey,
			PresharedKey:        pskKey,
			AllowedIPs:          []string{network.BaseHost(client.Offset).String() + "/32"},
			PersistentKeepalive: network.PersistentKeepalive,
		})
	}

	return &GatewayView{Interface: iface, Peers: peers}, nil
}

// RenderClientConfig produces the canonical WireGuard .conf text for a
// client, per spec.md §4.C "Client config render" and §6's format.
func (r *Resolver) RenderClientConfig(ctx context.Context, client *models.Client, forwardInternet bool) (string, error) {
	network, err := r.store.GetNetwork(ctx, client.NetworkID)
	if err != nil {
		return "", err
	}

	clientKey, err := r.store.GetKey(ctx, client.KeyID)
	if err != nil {
		return "", err
	}
	clientPrivKey, err := r.store.Vault.RevealPrivate(vault.Sealed{Ciphertext: clientKey.PrivateKeyCiphertext, Nonce: clientKey.PrivateKeyNonce})
	if err != nil {
		return "", err
	}

	servers, err := r.store.ListServersByNetwork(ctx, network.ID)
	if err != nil {
		return "", err
	}

	var cb configBuilder
	cb.line("[Interface]")
	cb.line("PrivateKey = %s", clientPrivKey.String())
	cb.line("Address = %s/32", network.BaseHost(client.Offset).String())
	if len(network.DNSServers) > 0 {
		cb.line("DNS = %s", joinIPs(network.DNSServers))
	}
	cb.blank()

	for _, sv := range servers {
		serverKey, err := r.store.GetKey(ctx, sv.KeyID)
		if err != nil {
			return "", err
		}
		pskKey, err := r.revealPSK(ctx, sv.ID, client.ID)
		if err != nil {
			return "", err
		}

		allowedIPs, err := r.allowedIPsFor(ctx, network, sv, forwardInternet)
		if err != nil {
			return "", err
		}

		cb.line("[Peer]")
		cb.line("PublicKey = %s", serverKey.PublicKey)
		cb.line("PresharedKey = %s", pskKey)
		if sv.EndpointHost != nil {
			cb.line("Endpoint = %s:%d", *sv.EndpointHost, *sv.EndpointPort)
		}
		if network.PersistentKeepalive > 0 {
			cb.line("PersistentKeepalive = %d", network.PersistentKeepalive)
		}
		cb.line("AllowedIPs = %s", strings.Join(allowedIPs, ", "))
		cb.blank()
	}

	return cb.String(), nil
}

// revealPSK fetches (creating on demand) and unseals the PSK for a
// (server, client) pair, returning its canonical base-64 form.
func (r *Resolver) revealPSK(ctx context.Context, serverID, clientID uuid.UUID) (string, error) {
	psk, err := r.store.GetOrCreatePSK(ctx, serverID, clientID)
	if err != nil {
		return "", err
	}
	key, err := r.store.Vault.RevealPSK(vault.Sealed{Ciphertext: psk.Ciphertext, Nonce: psk.Nonce})
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

// allowedIPsFor computes one server peer's AllowedIPs list, per
// spec.md §4.C: if forward_internet is requested and this server
// forwards internet traffic, emit exactly 0.0.0.0/0; otherwise the
// deterministic union of the network CIDR and this server's
// advertised routes (network first, then routes in ascending
// (address, prefix) order).
func (r *Resolver) allowedIPsFor(ctx context.Context, network *models.Network, server *models.Server, forwardInternet bool) ([]string, error) {
	if forwardInternet && server.ForwardsInternetTraffic {
		return []string{"0.0.0.0/0"}, nil
	}

	routes, err := r.store.ListRoutesByServer(ctx, server.ID)
	if err != nil {
		return nil, err
	}

	sort.Slice(routes, func(i, j int) bool {
		return compareCIDR(routes[i].RouteCIDR, routes[j].RouteCIDR) < 0
	})

	out := []string{network.CIDR.String()}
	seen := map[string]bool{out[0]: true}
	for _, rt := range routes {
		s := rt.RouteCIDR.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// compareCIDR orders two IPv4 CIDRs by (address, prefix length)
// ascending, for the deterministic AllowedIPs ordering spec.md §4.C
// requires.
func compareCIDR(a, b *net.IPNet) int {
	if c := bytes.Compare(a.IP.To4(), b.IP.To4()); c != 0 {
		return c
	}
	onesA, _ := a.Mask.Size()
	onesB, _ := b.Mask.Size()
	return onesA - onesB
}

func joinIPs(ips []net.IP) string {
	parts := make([]string, len(ips))
	for i, ip := range ips {
		parts[i] = ip.String()
	}
	return strings.Join(parts, ", ")
}

// configBuilder assembles WireGuard INI text line by line.
type configBuilder struct {
	b strings.Builder
}

func (c *configBuilder) line(format string, args ...any) {
	fmt.Fprintf(&c.b, format, args...)
	c.b.WriteByte('\n')
}

func (c *configBuilder) blank() {
	c.b.WriteByte('\n')
}

func (c *configBuilder) String() string {
	return strings.TrimRight(c.b.String(), "\n") + "\n"
}
