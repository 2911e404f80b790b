package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/illarion/eris/internal/base32"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/pbkdf2"
)

const (
	KeySize       = 32     // Block key size (BLAKE2b-256 output, ChaCha20 key)
	ReferenceSize = 32     // Block reference size (BLAKE2b-256 output)
	SecretSize    = 32     // Convergence secret size
	SaltSize      = 32     // KDF salt size
	DefaultIters  = 210000 // Default PBKDF2 iterations (OWASP minimum)
)

var ErrInvalidArgument = errors.New("invalid argument")

// zeroNonce is safe because every distinct plaintext derives a distinct key.
var zeroNonce [chacha20.NonceSize]byte

// Reference is the BLAKE2b-256 hash of an encrypted block
type Reference [ReferenceSize]byte

// ParseReference parses the unpadded base32 form of a reference
func ParseReference(s string) (Reference, error) {
	var ref Reference
	b, err := base32.DecodeString(s)
	if err != nil {
		return ref, fmt.Errorf("parse reference %q: %w", s, err)
	}
	if len(b) != ReferenceSize {
		return ref, fmt.Errorf("parse reference %q: %w: got %d bytes", s, ErrInvalidArgument, len(b))
	}
	copy(ref[:], b)
	return ref, nil
}

func (r Reference) String() string {
	return base32.EncodeToString(r[:])
}

// IsZero reports whether every byte of the reference is zero
func (r Reference) IsZero() bool {
	return r == Reference{}
}

// Key is the symmetric key of a single block
type Key [KeySize]byte

func (k Key) String() string {
	return base32.EncodeToString(k[:])
}

// IsZero reports whether every byte of the key is zero
func (k Key) IsZero() bool {
	return k == Key{}
}

// NullConvergenceSecret returns the well-known all-zero secret.
// Encodings made with it deduplicate across every user of the null secret.
func NullConvergenceSecret() []byte {
	return make([]byte, SecretSize)
}

// GenerateSecret returns a random convergence secret
func GenerateSecret() ([]byte, error) {
	return GenerateRandom(SecretSize)
}

// DeriveKey derives the key of a plaintext block keyed by the convergence secret
func DeriveKey(plaintext, secret []byte) (Key, error) {
	var key Key
	if len(secret) != SecretSize {
		return key, fmt.Errorf("%w: convergence secret must be %d bytes, got %d", ErrInvalidArgument, SecretSize, len(secret))
	}
	h, err := blake2b.New256(secret)
	if err != nil {
		return key, fmt.Errorf("failed to create keyed hash: %w", err)
	}
	h.Write(plaintext)
	h.Sum(key[:0])
	return key, nil
}

// DeriveReference computes the reference of an encrypted block
func DeriveReference(ciphertext []byte) Reference {
	return Reference(blake2b.Sum256(ciphertext))
}

// XORKeyStream encrypts or decrypts src into dst with ChaCha20 under key.
// Applying it twice with the same key restores the input.
func XORKeyStream(dst, src []byte, key Key) error {
	if len(dst) < len(src) {
		return fmt.Errorf("%w: output buffer too small", ErrInvalidArgument)
	}
	c, err := chacha20.NewUnauthenticatedCipher(key[:], zeroNonce[:])
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	c.XORKeyStream(dst[:len(src)], src)
	return nil
}

// KDF turns a passphrase into a private convergence secret
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a new KDF with a random salt
func NewKDF() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: DefaultIters,
	}, nil
}

// DeriveSecret derives a convergence secret from a passphrase
func (k *KDF) DeriveSecret(passphrase []byte) []byte {
	return pbkdf2.Key(passphrase, k.Salt, k.Iterations, SecretSize, sha256.New)
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
