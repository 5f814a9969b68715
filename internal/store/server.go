package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wirewarden/wirewarden/internal/allocator"
	"github.com/wirewarden/wirewarden/internal/models"
	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// DefaultListenPort is used when a server is created without an
// explicit port. WireGuard servers conventionally listen on the same
// port they advertise as their endpoint.
const DefaultListenPort = 51820

// CreateServer mints a keypair, allocates an address offset, and
// persists a new server within a single SERIALIZABLE transaction, per
// spec.md §5. endpoint_host is optional per spec.md §3; endpoint_port
// always carries a value (the server's listen port), defaulted to
// DefaultListenPort when the caller omits it.
func (s *Store) CreateServer(ctx context.Context, networkID uuid.UUID, name string, forwardsInternet bool, endpointHost *string, endpointPort *int) (*models.Server, error) {
	port := DefaultListenPort
	if endpointPort != nil {
		if *endpointPort < 1 || *endpointPort > 65535 {
			return nil, fmt.Errorf("store: %w: endpoint_port out of range", wgerr.ErrValidation)
		}
		port = *endpointPort
	}
	endpointPort = &port

	var server *models.Server
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		network, err := scanNetwork(tx.QueryRow(ctx, `
			SELECT id, name, cidr, dns_servers, persistent_keepalive, created_at, updated_at
			FROM networks WHERE id = $1 FOR UPDATE
		`, networkID))
		if err != nil {
			return err
		}

		used, err := usedOffsets(ctx, tx, networkID)
		if err != nil {
			return err
		}

		offset, err := allocator.NextOffset(network.CIDR, used)
		if err != nil {
			return err
		}

		kp, err := s.Vault.GenerateKeypair()
		if err != nil {
			return err
		}
		keyID := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO wg_keys (id, private_key_ciphertext, private_key_nonce, public_key)
			VALUES ($1, $2, $3, $4)
		`, keyID, kp.Sealed.Ciphertext, kp.Sealed.Nonce, kp.PublicKey); err != nil {
			return fmt.Errorf("store: insert key: %w", err)
		}

		server = &models.Server{
			ID:                      uuid.New(),
			NetworkID:               networkID,
			Name:                    name,
			KeyID:                   keyID,
			CapabilityToken:         uuid.New(),
			Offset:                  offset,
			ForwardsInternetTraffic: forwardsInternet,
			EndpointHost:            endpointHost,
			EndpointPort:            endpointPort,
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO wg_servers (id, network_id, name, key_id, capability_token, address_offset,
				forwards_internet_traffic, endpoint_host, endpoint_port)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, server.ID, server.NetworkID, server.Name, server.KeyID, server.CapabilityToken,
			server.Offset, server.ForwardsInternetTraffic, server.EndpointHost, server.EndpointPort)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("store: %w: server name or offset already in use", wgerr.ErrValidation)
			}
			return fmt.Errorf("store: insert server: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}

func usedOffsets(ctx context.Context, tx pgx.Tx, networkID uuid.UUID) (map[int]bool, error) {
	used := make(map[int]bool)

	rows, err := tx.Query(ctx, `SELECT address_offset FROM wg_servers WHERE network_id = $1`, networkID)
	if err != nil {
		return nil, fmt.Errorf("store: query server offsets: %w", err)
	}
	for rows.Next() {
		var o int
		if err := rows.Scan(&o); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan server offset: %w", err)
		}
		used[o] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT address_offset FROM wg_clients WHERE network_id = $1`, networkID)
	if err != nil {
		return nil, fmt.Errorf("store: query client offsets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o int
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("store: scan client offset: %w", err)
		}
		used[o] = true
	}
	return used, rows.Err()
}

func scanServer(row pgx.Row) (*models.Server, error) {
	var sv models.Server
	if err := row.Scan(&sv.ID, &sv.NetworkID, &sv.Name, &sv.KeyID, &sv.CapabilityToken, &sv.Offset,
		&sv.ForwardsInternetTraffic, &sv.EndpointHost, &sv.EndpointPort, &sv.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("store: %w: server", wgerr.ErrNotFound)
		}
		return nil, fmt.Errorf("store: scan server: %w", err)
	}
	return &sv, nil
}

const serverColumns = `id, network_id, name, key_id, capability_token, address_offset,
	forwards_internet_traffic, endpoint_host, endpoint_port, created_at`

// GetServerByToken resolves a capability token to its owning server.
// Used only by the Gateway Pull API: absence of a match is an Auth
// error, not NotFound, to avoid leaking existence (spec.md §4.D).
func (s *Store) GetServerByToken(ctx context.Context, token uuid.UUID) (*models.Server, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+serverColumns+` FROM wg_servers WHERE capability_token = $1`, token)
	server, err := scanServer(row)
	if err != nil {
		if wgerr.Is(err, wgerr.ErrNotFound) {
			return nil, fmt.Errorf("store: %w: unknown capability token", wgerr.ErrAuth)
		}
		return nil, err
	}
	return server, nil
}

// GetServer loads a server by id.
func (s *Store) GetServer(ctx context.Context, id uuid.UUID) (*models.Server, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+serverColumns+` FROM wg_servers WHERE id = $1`, id)
	return scanServer(row)
}

// ListServersByNetwork returns every server in a network, ordered by
// name for deterministic rendering.
func (s *Store) ListServersByNetwork(ctx context.Context, networkID uuid.UUID) ([]*models.Server, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+serverColumns+` FROM wg_servers WHERE network_id = $1 ORDER BY name`, networkID)
	if err != nil {
		return nil, fmt.Errorf("store: list servers: %w", err)
	}
	defer rows.Close()

	var out []*models.Server
	for rows.Next() {
		sv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// DeleteServer removes a server. Cascades remove its key and any PSKs
// referencing it.
func (s *Store) DeleteServer(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM wg_servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %w: server", wgerr.ErrNotFound)
	}
	return nil
}
