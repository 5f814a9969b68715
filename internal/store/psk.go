package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wirewarden/wirewarden/internal/models"
	"github.com/wirewarden/wirewarden/internal/wgerr"
)

func scanPSK(row pgx.Row) (*models.PeerPSK, error) {
	var p models.PeerPSK
	if err := row.Scan(&p.ID, &p.ServerID, &p.ClientID, &p.Ciphertext, &p.Nonce); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("store: %w: preshared key", wgerr.ErrNotFound)
		}
		return nil, fmt.Errorf("store: scan preshared key: %w", err)
	}
	return &p, nil
}

const pskColumns = `id, server_id, client_id, psk_ciphertext, psk_nonce`

// GetOrCreatePSK returns the preshared key for a (server, client) pair,
// generating one on first access. Concurrent callers racing to create
// the same pair are resolved with ON CONFLICT DO NOTHING followed by a
// re-read, per spec.md §4.C / §9: PSK creation is idempotent and
// race-safe rather than transactional.
func (s *Store) GetOrCreatePSK(ctx context.Context, serverID, clientID uuid.UUID) (*models.PeerPSK, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+pskColumns+` FROM wg_peer_psks WHERE server_id = $1 AND client_id = $2
	`, serverID, clientID)
	psk, err := scanPSK(row)
	if err == nil {
		return psk, nil
	}
	if !wgerr.Is(err, wgerr.ErrNotFound) {
		return nil, err
	}

	sealed, err := s.Vault.GeneratePSK()
	if err != nil {
		return nil, err
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO wg_peer_psks (id, server_id, client_id, psk_ciphertext, psk_nonce)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (server_id, client_id) DO NOTHING
	`, uuid.New(), serverID, clientID, sealed.Ciphertext, sealed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("store: insert preshared key: %w", err)
	}

	row = s.Pool.QueryRow(ctx, `
		SELECT `+pskColumns+` FROM wg_peer_psks WHERE server_id = $1 AND client_id = $2
	`, serverID, clientID)
	return scanPSK(row)
}

// RotatePresharedKeys reseals every preshared key referencing a client
// under a fresh nonce and a fresh secret, per spec.md §8 scenario 5
// (credential rotation for a compromised client touches every server
// pairing, not just one).
func (s *Store) RotatePresharedKeys(ctx context.Context, clientID uuid.UUID) (int, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+pskColumns+` FROM wg_peer_psks WHERE client_id = $1`, clientID)
	if err != nil {
		return 0, fmt.Errorf("store: list preshared keys: %w", err)
	}
	var psks []*models.PeerPSK
	for rows.Next() {
		p, err := scanPSK(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		psks = append(psks, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range psks {
		sealed, err := s.Vault.GeneratePSK()
		if err != nil {
			return 0, err
		}
		if _, err := s.Pool.Exec(ctx, `
			UPDATE wg_peer_psks SET psk_ciphertext = $2, psk_nonce = $3 WHERE id = $1
		`, p.ID, sealed.Ciphertext, sealed.Nonce); err != nil {
			return 0, fmt.Errorf("store: rotate preshared key: %w", err)
		}
	}
	return len(psks), nil
}
