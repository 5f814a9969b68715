package store

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wirewarden/wirewarden/internal/models"
	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// CreateNetwork validates and persists a new network declaration.
func (s *Store) CreateNetwork(ctx context.Context, name, cidr string, dns []string, keepalive int) (*models.Network, error) {
	ipNet, err := validateNetworkCIDR(cidr)
	if err != nil {
		return nil, err
	}
	dnsIPs, err := validateDNSServers(dns)
	if err != nil {
		return nil, err
	}
	if keepalive < 0 || keepalive > 65535 {
		return nil, fmt.Errorf("store: %w: persistent_keepalive out of range", wgerr.ErrValidation)
	}

	n := &models.Network{
		ID:                  uuid.New(),
		Name:                name,
		CIDR:                ipNet,
		DNSServers:          dnsIPs,
		PersistentKeepalive: keepalive,
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO networks (id, name, cidr, dns_servers, persistent_keepalive)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.Name, n.CIDR.String(), dnsStrings(dnsIPs), n.PersistentKeepalive)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("store: %w: network name %q already exists", wgerr.ErrValidation, name)
		}
		return nil, fmt.Errorf("store: create network: %w", err)
	}

	return n, nil
}

// GetNetwork loads a network by id.
func (s *Store) GetNetwork(ctx context.Context, id uuid.UUID) (*models.Network, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, name, cidr, dns_servers, persistent_keepalive, created_at, updated_at
		FROM networks WHERE id = $1
	`, id)
	return scanNetwork(row)
}

func scanNetwork(row pgx.Row) (*models.Network, error) {
	var n models.Network
	var cidrStr string
	var dns []string
	if err := row.Scan(&n.ID, &n.Name, &cidrStr, &dns, &n.PersistentKeepalive, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("store: %w: network", wgerr.ErrNotFound)
		}
		return nil, fmt.Errorf("store: scan network: %w", err)
	}
	_, ipNet, err := net.ParseCIDR(cidrStr)
	if err != nil {
		return nil, fmt.Errorf("store: malformed cidr in database: %w", err)
	}
	n.CIDR = ipNet
	n.DNSServers = make([]net.IP, 0, len(dns))
	for _, d := range dns {
		n.DNSServers = append(n.DNSServers, net.ParseIP(d))
	}
	return &n, nil
}

// UpdateNetworkSettings mutates the DNS list and keepalive, the only
// fields a network's lifecycle allows to change after creation
// (spec.md §3).
func (s *Store) UpdateNetworkSettings(ctx context.Context, id uuid.UUID, dns []string, keepalive int) error {
	dnsIPs, err := validateDNSServers(dns)
	if err != nil {
		return err
	}
	if keepalive < 0 || keepalive > 65535 {
		return fmt.Errorf("store: %w: persistent_keepalive out of range", wgerr.ErrValidation)
	}

	tag, err := s.Pool.Exec(ctx, `
		UPDATE networks SET dns_servers = $2, persistent_keepalive = $3, updated_at = NOW()
		WHERE id = $1
	`, id, dnsStrings(dnsIPs), keepalive)
	if err != nil {
		return fmt.Errorf("store: update network: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %w: network", wgerr.ErrNotFound)
	}
	return nil
}

// DeleteNetwork removes a network. Foreign-key cascades remove its
// servers, clients, routes, and PSKs (spec.md §3 lifecycle).
func (s *Store) DeleteNetwork(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM networks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete network: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %w: network", wgerr.ErrNotFound)
	}
	return nil
}

func validateNetworkCIDR(cidr string) (*net.IPNet, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("store: %w: invalid cidr %q: %v", wgerr.ErrValidation, cidr, err)
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("store: %w: cidr %q is not IPv4", wgerr.ErrValidation, cidr)
	}
	ones, bits := ipNet.Mask.Size()
	if bits != 32 || ones < 8 || ones > 30 {
		return nil, fmt.Errorf("store: %w: prefix length must be in [8,30]", wgerr.ErrValidation)
	}
	return ipNet, nil
}

func validateDNSServers(dns []string) ([]net.IP, error) {
	seen := make(map[string]bool, len(dns))
	out := make([]net.IP, 0, len(dns))
	for _, d := range dns {
		ip := net.ParseIP(d)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("store: %w: dns server %q is not a valid IPv4 address", wgerr.ErrValidation, d)
		}
		canon := ip.To4().String()
		if seen[canon] {
			continue
		}
		seen[canon] = true
		out = append(out, ip.To4())
	}
	return out, nil
}

func dnsStrings(ips []net.IP) []string {
	out := make([]string, len(ips))
	for i, ip := range ips {
		out[i] = ip.String()
	}
	return out
}
