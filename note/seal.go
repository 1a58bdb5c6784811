package note

import (
	crand "crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/veilswap/veilswap-go/poseidon"
)

// scrypt cost parameters for the backup KDF. Interactive-strength; a backup
// is decrypted rarely.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

const saltSize = 16

// sealAD binds ciphertexts to the note wire version so a backup cannot be
// replayed into a future format.
var sealAD = []byte(Prefix + "-" + Version)

// Seal encrypts the serialized note under a passphrase with
// ChaCha20-Poly1305. Output layout: salt(16) || nonce(12) || ciphertext.
func (n *DepositNote) Seal(passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := crand.Read(salt); err != nil {
		return nil, fmt.Errorf("note: seal salt: %w", err)
	}
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("note: seal kdf: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("note: seal aead: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := crand.Read(nonce); err != nil {
		return nil, fmt.Errorf("note: seal nonce: %w", err)
	}
	out := make([]byte, 0, saltSize+chacha20poly1305.NonceSize+len(n.Serialize())+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(n.Serialize()), sealAD)
	return out, nil
}

// Open decrypts a sealed backup and reconstructs the note. A wrong
// passphrase or tampered ciphertext fails authentication.
func Open(hasher *poseidon.Hasher, sealed, passphrase []byte) (*DepositNote, error) {
	if len(sealed) < saltSize+chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: sealed backup too short", ErrNoteFormat)
	}
	salt := sealed[:saltSize]
	nonce := sealed[saltSize : saltSize+chacha20poly1305.NonceSize]
	ciphertext := sealed[saltSize+chacha20poly1305.NonceSize:]

	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("note: open kdf: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("note: open aead: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, sealAD)
	if err != nil {
		return nil, fmt.Errorf("note: open: %w", err)
	}
	return Deserialize(hasher, string(plaintext))
}
