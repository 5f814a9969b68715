// Package vault implements the Key Vault (SPEC_FULL.md §4.A): it
// generates WireGuard keypairs and pre-shared keys, and seals private
// material at rest under a process-wide AEAD secret. Public halves are
// returned freely; private halves only ever leave this package through
// RevealPrivate/RevealPSK.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// Vault seals and unseals WireGuard private keys and pre-shared keys
// with XChaCha20-Poly1305 under a single process-wide secret loaded at
// startup.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a 32-byte secret (SPEC_FULL.md's
// WIREWARDEN_SEAL_KEY).
func New(secret []byte) (*Vault, error) {
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return nil, fmt.Errorf("vault: %w: %v", wgerr.ErrCrypto, err)
	}
	return &Vault{aead: aead}, nil
}

// Sealed is a ciphertext and the nonce it was sealed under.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
}

func (v *Vault) seal(plaintext []byte) (Sealed, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, fmt.Errorf("vault: generate nonce: %w", err)
	}
	ciphertext := v.aead.Seal(nil, nonce, plaintext, nil)
	return Sealed{Ciphertext: ciphertext, Nonce: nonce}, nil
}

func (v *Vault) unseal(s Sealed) ([]byte, error) {
	plaintext, err := v.aead.Open(nil, s.Nonce, s.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("vault: unseal: %w: %v", wgerr.ErrCrypto, err)
	}
	return plaintext, nil
}

// GeneratedKeypair is a freshly minted WireGuard keypair, private half
// already sealed.
type GeneratedKeypair struct {
	Sealed    Sealed
	PublicKey string // canonical base64
}

// GenerateKeypair creates a Curve25519 WireGuard keypair with the
// standard clamping (via wgtypes, the same path every netlink-capable
// peer in the corpus uses) and seals the private half.
func (v *Vault) GenerateKeypair() (GeneratedKeypair, error) {
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return GeneratedKeypair{}, fmt.Errorf("vault: generate keypair: %w", err)
	}

	sealed, err := v.seal(priv[:])
	if err != nil {
		return GeneratedKeypair{}, err
	}

	return GeneratedKeypair{
		Sealed:    sealed,
		PublicKey: priv.PublicKey().String(),
	}, nil
}

// GeneratePSK creates 32 uniformly random bytes and seals them.
func (v *Vault) GeneratePSK() (Sealed, error) {
	var psk [32]byte
	if _, err := rand.Read(psk[:]); err != nil {
		return Sealed{}, fmt.Errorf("vault: generate psk: %w", err)
	}
	return v.seal(psk[:])
}

// RevealPrivate unseals a 32-byte WireGuard private key. An unseal
// failure (nonce mismatch, bad tag) is fatal to the caller's
// operation: the record is unrecoverable and must be reported, not
// silently regenerated.
func (v *Vault) RevealPrivate(s Sealed) (wgtypes.Key, error) {
	plaintext, err := v.unseal(s)
	if err != nil {
		return wgtypes.Key{}, err
	}
	key, err := wgtypes.NewKey(plaintext)
	if err != nil {
		return wgtypes.Key{}, fmt.Errorf("vault: malformed private key: %w: %v", wgerr.ErrCrypto, err)
	}
	return key, nil
}

// RevealPSK unseals a 32-byte pre-shared key.
func (v *Vault) RevealPSK(s Sealed) (wgtypes.Key, error) {
	plaintext, err := v.unseal(s)
	if err != nil {
		return wgtypes.Key{}, err
	}
	key, err := wgtypes.NewKey(plaintext)
	if err != nil {
		return wgtypes.Key{}, fmt.Errorf("vault: malformed psk: %w: %v", wgerr.ErrCrypto, err)
	}
	return key, nil
}

// Reseal unseals s and re-seals the recovered plaintext under a fresh
// nonce under the same process-wide secret. Exercised by the roundtrip
// testable property in spec.md §8.
func (v *Vault) Reseal(s Sealed) (Sealed, error) {
	plaintext, err := v.unseal(s)
	if err != nil {
		return Sealed{}, err
	}
	return v.seal(plaintext)
}
