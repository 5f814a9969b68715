package models

import "github.com/google/uuid"

// PeerPSK is a 32-byte pre-shared secret keyed by (server_id,
// client_id), sealed at rest. Jointly referenced by a server and a
// client but owned by neither.
type PeerPSK struct {
	ID          uuid.UUID
	ServerID    uuid.UUID
	ClientID    uuid.UUID
	Ciphertext  []byte
	Nonce       []byte
}
