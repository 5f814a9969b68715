package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wirewarden/wirewarden/internal/models"
	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// GetKey loads a key record by id.
func (s *Store) GetKey(ctx context.Context, id uuid.UUID) (*models.Key, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, private_key_ciphertext, private_key_nonce, public_key
		FROM wg_keys WHERE id = $1
	`, id)

	var k models.Key
	if err := row.Scan(&k.ID, &k.PrivateKeyCiphertext, &k.PrivateKeyNonce, &k.PublicKey); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("store: %w: key", wgerr.ErrNotFound)
		}
		return nil, fmt.Errorf("store: scan key: %w", err)
	}
	return &k, nil
}
