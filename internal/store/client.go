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

// CreateClient mints a keypair, allocates an address offset shared with
// the server offset space, and persists a new client, per spec.md §5.
func (s *Store) CreateClient(ctx context.Context, networkID uuid.UUID, name string) (*models.Client, error) {
	var client *models.Client
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

		client = &models.Client{
			ID:        uuid.New(),
			NetworkID: networkID,
			Name:      name,
			KeyID:     keyID,
			Offset:    offset,
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO wg_clients (id, network_id, name, key_id, address_offset)
			VALUES ($1, $2, $3, $4, $5)
		`, client.ID, client.NetworkID, client.Name, client.KeyID, client.Offset)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("store: %w: client name or offset already in use", wgerr.ErrValidation)
			}
			return fmt.Errorf("store: insert client: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.NetworkID, &c.Name, &c.KeyID, &c.Offset, &c.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("store: %w: client", wgerr.ErrNotFound)
		}
		return nil, fmt.Errorf("store: scan client: %w", err)
	}
	return &c, nil
}

const clientColumns = `id, network_id, name, key_id, address_offset, created_at`

// GetClient loads a client by id.
func (s *Store) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM wg_clients WHERE id = $1`, id)
	return scanClient(row)
}

// ListClientsByNetwork returns every client in a network, ordered by
// name for deterministic rendering.
func (s *Store) ListClientsByNetwork(ctx context.Context, networkID uuid.UUID) ([]*models.Client, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+clientColumns+` FROM wg_clients WHERE network_id = $1 ORDER BY name`, networkID)
	if err != nil {
		return nil, fmt.Errorf("store: list clients: %w", err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteClient removes a client. Cascades remove its key and any PSKs
// referencing it.
func (s *Store) DeleteClient(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM wg_clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %w: client", wgerr.ErrNotFound)
	}
	return nil
}
