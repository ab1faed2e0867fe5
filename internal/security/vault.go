package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrIntegrity is returned by Decrypt for any envelope that cannot be opened: bad structure,
	// tag mismatch, or wrong key. The cases are deliberately indistinguishable.
	ErrIntegrity = errors.New("content integrity error")
	// ErrHashMismatch is returned when decrypted content does not match its stored content hash.
	ErrHashMismatch = errors.New("content hash mismatch")
	// ErrInvalidVaultKey is returned when no key material can be derived.
	ErrInvalidVaultKey = errors.New("invalid vault key")
)

// Cipher names an AEAD construction used for new envelopes.
type Cipher string

const (
	CipherAES256GCM         Cipher = "aes-256-gcm"
	CipherXChaCha20Poly1305 Cipher = "xchacha20-poly1305"
)

// envelopeAAD binds every envelope to its purpose.
var envelopeAAD = []byte("transcript-data")

const envelopeSeparator = ":"

// VaultKey is immutable symmetric key material derived once from a configured secret.
type VaultKey struct {
	k [sha256.Size]byte
}

// DeriveVaultKey hashes secret with SHA-256 into a 256-bit key.
func DeriveVaultKey(secret string) (VaultKey, error) {
	if secret == "" {
		return VaultKey{}, ErrInvalidVaultKey
	}
	return VaultKey{k: sha256.Sum256([]byte(secret))}, nil
}

// Vault encrypts and decrypts opaque payloads with a process-wide key.
//
// Envelopes have the form hex(nonce):hex(tag):hex(ciphertext). The nonce length identifies
// the AEAD (12 bytes for AES-256-GCM, 24 for XChaCha20-Poly1305), so envelopes written under
// either cipher can be opened regardless of which one is configured for sealing.
// A Vault is safe for concurrent use.
type Vault struct {
	seal    cipher.AEAD
	byNonce map[int]cipher.AEAD
}

// NewVault builds a Vault from key, sealing new envelopes with c.
func NewVault(key VaultKey, c Cipher) (*Vault, error) {
	if key.k == ([sha256.Size]byte{}) {
		return nil, ErrInvalidVaultKey
	}
	block, err := aes.NewCipher(key.k[:])
	if err != nil {
		return nil, fmt.Errorf("vault: aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm: %w", err)
	}
	xc, err := chacha20poly1305.NewX(key.k[:])
	if err != nil {
		return nil, fmt.Errorf("vault: xchacha20-poly1305: %w", err)
	}
	v := &Vault{
		byNonce: map[int]cipher.AEAD{
			gcm.NonceSize(): gcm,
			xc.NonceSize():  xc,
		},
	}
	switch c {
	case CipherAES256GCM, "":
		v.seal = gcm
	case CipherXChaCha20Poly1305:
		v.seal = xc
	default:
		return nil, fmt.Errorf("vault: unsupported cipher %q", c)
	}
	return v, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the envelope string.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, v.seal.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	sealed := v.seal.Seal(nil, nonce, plaintext, envelopeAAD)
	split := len(sealed) - v.seal.Overhead()
	ct, tag := sealed[:split], sealed[split:]
	return hex.EncodeToString(nonce) + envelopeSeparator +
		hex.EncodeToString(tag) + envelopeSeparator +
		hex.EncodeToString(ct), nil
}

// Decrypt opens an envelope produced by Encrypt. Any failure returns ErrIntegrity.
func (v *Vault) Decrypt(envelope string) ([]byte, error) {
	parts := strings.Split(envelope, envelopeSeparator)
	if len(parts) != 3 {
		return nil, ErrIntegrity
	}
	nonce, ok := decodeLowerHex(parts[0])
	if !ok {
		return nil, ErrIntegrity
	}
	tag, ok := decodeLowerHex(parts[1])
	if !ok {
		return nil, ErrIntegrity
	}
	ct, ok := decodeLowerHex(parts[2])
	if !ok {
		return nil, ErrIntegrity
	}
	aead, found := v.byNonce[len(nonce)]
	if !found || len(tag) != aead.Overhead() {
		return nil, ErrIntegrity
	}
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(append(sealed, ct...), tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, envelopeAAD)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// Open decrypts envelope and checks the result against storedHash.
// Returns ErrIntegrity if decryption fails and ErrHashMismatch if the hash does not match.
func (v *Vault) Open(envelope, storedHash string) ([]byte, error) {
	plaintext, err := v.Decrypt(envelope)
	if err != nil {
		return nil, err
	}
	if err := VerifyContentHash(plaintext, storedHash); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// ContentHash is the package-level ContentHash, exposed on Vault for callers that hold one.
func (v *Vault) ContentHash(plaintext []byte) string {
	return ContentHash(plaintext)
}

// ContentHash returns the hex-encoded SHA-256 digest of plaintext. It is not secret.
func ContentHash(plaintext []byte) string {
	h := sha256.Sum256(plaintext)
	return hex.EncodeToString(h[:])
}

// VerifyContentHash returns ErrHashMismatch unless ContentHash(plaintext) equals storedHash.
func VerifyContentHash(plaintext []byte, storedHash string) error {
	if subtle.ConstantTimeCompare([]byte(ContentHash(plaintext)), []byte(storedHash)) != 1 {
		return ErrHashMismatch
	}
	return nil
}

// decodeLowerHex decodes s, rejecting upper-case digits so that every envelope has exactly one spelling.
func decodeLowerHex(s string) ([]byte, bool) {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'F' {
			return nil, false
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}
