package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32
	// IVSize is the GCM standard nonce size.
	IVSize = 12
	// SaltSize is the salt length used by the IV-and-salt mode.
	SaltSize = 16

	pbkdf2Iterations = 2000
	hkdfInfoCipher   = "encattr-deterministic-cipher"
	hkdfInfoNonce    = "encattr-deterministic-nonce"
)

// Sealed is the output of an encryption: the ciphertext and whatever
// per-value material must be stored next to it.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

// AttributeCipher encrypts single attribute values with AES-256-GCM.
// It holds no state and is safe for concurrent use.
type AttributeCipher struct{}

// NewAttributeCipher creates a new AttributeCipher instance
func NewAttributeCipher() *AttributeCipher {
	return &AttributeCipher{}
}

// EncryptWithIV encrypts plaintext with a fresh random IV. The key must be 32 bytes.
func (c *AttributeCipher) EncryptWithIV(plaintext, key []byte) (Sealed, error) {
	iv, err := RandomBytes(IVSize)
	if err != nil {
		return Sealed{}, fmt.Errorf("failed to generate IV: %w", err)
	}
	ciphertext, err := seal(key, iv, plaintext)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Ciphertext: ciphertext, IV: iv}, nil
}

// DecryptWithIV reverses EncryptWithIV.
func (c *AttributeCipher) DecryptWithIV(ciphertext, key, iv []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid IV size: expected %d, got %d", IVSize, len(iv))
	}
	return open(key, iv, ciphertext)
}

// EncryptWithIVAndSalt encrypts plaintext with a random IV and a key derived
// from key and a random salt through PBKDF2-HMAC-SHA256.
func (c *AttributeCipher) EncryptWithIVAndSalt(plaintext, key []byte) (Sealed, error) {
	if len(key) == 0 {
		return Sealed{}, fmt.Errorf("invalid key size: key cannot be empty")
	}
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return Sealed{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	iv, err := RandomBytes(IVSize)
	if err != nil {
		return Sealed{}, fmt.Errorf("failed to generate IV: %w", err)
	}
	ciphertext, err := seal(DeriveSaltedKey(key, salt), iv, plaintext)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Ciphertext: ciphertext, IV: iv, Salt: salt}, nil
}

// DecryptWithIVAndSalt reverses EncryptWithIVAndSalt.
func (c *AttributeCipher) DecryptWithIVAndSalt(ciphertext, key, iv, salt []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("invalid key size: key cannot be empty")
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("missing salt")
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid IV size: expected %d, got %d", IVSize, len(iv))
	}
	return open(DeriveSaltedKey(key, salt), iv, ciphertext)
}

// EncryptDeterministic encrypts plaintext so that equal inputs under the same key
// produce equal outputs. The nonce is an HMAC of the plaintext and is prepended
// to the ciphertext.
func (c *AttributeCipher) EncryptDeterministic(plaintext, key []byte) ([]byte, error) {
	cipherKey, nonceKey, err := deriveDeterministicKeys(key)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, nonceKey)
	mac.Write(plaintext)
	nonce := mac.Sum(nil)[:IVSize]

	ciphertext, err := seal(cipherKey, nonce, plaintext)
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// DecryptDeterministic reverses EncryptDeterministic.
func (c *AttributeCipher) DecryptDeterministic(ciphertext, key []byte) ([]byte, error) {
	cipherKey, _, err := deriveDeterministicKeys(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < IVSize {
		return nil, fmt.Errorf("invalid ciphertext size")
	}
	return open(cipherKey, ciphertext[:IVSize], ciphertext[IVSize:])
}

// DeriveSaltedKey stretches key with salt into an AES-256 key.
func DeriveSaltedKey(key, salt []byte) []byte {
	return pbkdf2.Key(key, salt, pbkdf2Iterations, KeySize, sha256.New)
}

func deriveDeterministicKeys(key []byte) ([]byte, []byte, error) {
	if len(key) == 0 {
		return nil, nil, fmt.Errorf("invalid key size: key cannot be empty")
	}
	cipherKey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(hkdfInfoCipher)), cipherKey); err != nil {
		return nil, nil, fmt.Errorf("failed to derive cipher key: %w", err)
	}
	nonceKey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(hkdfInfoNonce)), nonceKey); err != nil {
		return nil, nil, fmt.Errorf("failed to derive nonce key: %w", err)
	}
	return cipherKey, nonceKey, nil
}

func seal(key, nonce, plaintext []byte) ([]byte, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesGCM.Seal(nil, nonce, plaintext, nil), nil
}

func open(key, nonce, ciphertext []byte) ([]byte, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aesGCM.Overhead() {
		return nil, fmt.Errorf("invalid ciphertext size")
	}
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
