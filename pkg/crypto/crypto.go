// Package crypto provides the authenticated encryption, password-based
// key derivation, salted hashing and constant-time comparison
// primitives used by the vault engine. All state is stateless and
// functional: no key material is retained between calls.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize       = 32
	nonceSize      = 12
	hashSaltSize   = 16
	pbkdf2Iters    = 100_000
	derivedKeySize = 32
)

// Sentinel errors. Decryption failures are deliberately collapsed into
// a single ErrDecryptionFailed regardless of whether the cause was a
// bad key, corrupted ciphertext, or a forged tag, so callers cannot
// use error variety as an oracle.
var (
	ErrEncryptionFailed    = errors.New("crypto: encryption failed")
	ErrDecryptionFailed    = errors.New("crypto: decryption failed")
	ErrDecodingFailed      = errors.New("crypto: malformed base64")
	ErrInvalidData         = errors.New("crypto: blob shorter than salt+nonce+1 byte")
	ErrKeyDerivationFailed = errors.New("crypto: key derivation failed")
)

// Blob is salt || nonce || ciphertext (ciphertext includes the GCM tag).
type Blob struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
}

// Bytes lays the blob out as salt(32) || nonce(12) || ciphertext.
func (b Blob) Bytes() []byte {
	out := make([]byte, 0, len(b.Salt)+len(b.Nonce)+len(b.Ciphertext))
	out = append(out, b.Salt...)
	out = append(out, b.Nonce...)
	out = append(out, b.Ciphertext...)
	return out
}

// ParseBlob splits a raw byte sequence back into its salt/nonce/ciphertext
// components. It fails with ErrInvalidData if the input is shorter than
// salt+nonce+1 byte of ciphertext.
func ParseBlob(data []byte) (Blob, error) {
	if len(data) < saltSize+nonceSize+1 {
		return Blob{}, ErrInvalidData
	}
	return Blob{
		Salt:       data[:saltSize],
		Nonce:      data[saltSize : saltSize+nonceSize],
		Ciphertext: data[saltSize+nonceSize:],
	}, nil
}

func deriveKey(masterKey string, salt []byte) []byte {
	return pbkdf2.Key([]byte(masterKey), salt, pbkdf2Iters, derivedKeySize, sha256.New)
}

// Encrypt seals plaintext under a key derived from masterKey and a
// freshly generated random salt and nonce, returning the combined blob.
// Encryption is randomized: encrypting the same plaintext twice under
// the same master key yields two distinct blobs.
func Encrypt(plaintext []byte, masterKey string) (Blob, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrKeyDerivationFailed, err)
	}

	key := deriveKey(masterKey, salt)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return Blob{Salt: salt, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Decrypt opens a blob produced by Encrypt. Every failure mode —
// wrong key, corrupted ciphertext, tampered tag, truncated input —
// surfaces as the same ErrDecryptionFailed so a caller probing for
// the cause cannot distinguish them.
func Decrypt(blob Blob, masterKey string) ([]byte, error) {
	if len(blob.Salt) != saltSize || len(blob.Nonce) != nonceSize {
		return nil, ErrDecryptionFailed
	}

	key := deriveKey(masterKey, blob.Salt)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptToBase64 encrypts plaintext and base64-(standard)-encodes the
// resulting blob.
func EncryptToBase64(plaintext []byte, masterKey string) (string, error) {
	blob, err := Encrypt(plaintext, masterKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob.Bytes()), nil
}

// DecryptFromBase64 reverses EncryptToBase64.
func DecryptFromBase64(encoded string, masterKey string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrDecodingFailed
	}
	blob, err := ParseBlob(raw)
	if err != nil {
		return nil, err
	}
	return Decrypt(blob, masterKey)
}

// GenerateKey returns a fresh random 32-byte key, base64-encoded.
func GenerateKey() (string, error) {
	key := make([]byte, derivedKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyDerivationFailed, err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// HashWithSalt returns base64(salt(16) || SHA-256(salt || input)).
func HashWithSalt(input string) (string, error) {
	salt := make([]byte, hashSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyDerivationFailed, err)
	}
	sum := sha256.Sum256(append(append([]byte(nil), salt...), input...))
	out := append(salt, sum[:]...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// VerifySaltedHash reports whether input hashes to stored under the
// HashWithSalt scheme. Comparison is constant-time: every byte pair is
// OR-accumulated into xor and only the final accumulator is checked,
// so a mismatch at byte 0 takes exactly as long to reject as a
// mismatch at the last byte. A length mismatch between the computed
// and stored hash still short-circuits to false, since there is no
// fixed-length buffer left to compare against — but it carries no
// information about which byte differed, since none were compared.
func VerifySaltedHash(input, stored string) bool {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) != hashSaltSize+sha256.Size {
		return false
	}
	salt := raw[:hashSaltSize]
	want := raw[hashSaltSize:]

	sum := sha256.Sum256(append(append([]byte(nil), salt...), input...))
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
