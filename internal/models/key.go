package models

import "github.com/google/uuid"

// Key is a WireGuard keypair record. The private key is sealed at rest
// under the process-wide vault secret; only the Vault package ever
// unseals it.
type Key struct {
	ID                    uuid.UUID
	PrivateKeyCiphertext  []byte
	PrivateKeyNonce       []byte
	PublicKey             string // canonical base64
}
