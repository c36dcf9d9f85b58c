package encattr

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hengadev/encattr/internal/crypto"
)

// SimpleTestKMS is an in-memory KeyManagementService for tests and examples.
// Keys live only as long as the value.
type SimpleTestKMS struct {
	mu      sync.RWMutex
	keys    map[string][]byte
	aliases map[string]string
}

func NewSimpleTestKMS() *SimpleTestKMS {
	return &SimpleTestKMS{
		keys:    make(map[string][]byte),
		aliases: make(map[string]string),
	}
}

func (s *SimpleTestKMS) GetKeyID(ctx context.Context, alias string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if keyID, exists := s.aliases[alias]; exists {
		return keyID, nil
	}
	return "", fmt.Errorf("key not found for alias: %s", alias)
}

func (s *SimpleTestKMS) CreateKey(ctx context.Context, description string) (string, error) {
	key, err := crypto.RandomBytes(crypto.KeySize)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keyID := "test-key-" + uuid.NewString()
	s.keys[keyID] = key
	s.aliases[description] = keyID
	return keyID, nil
}

func (s *SimpleTestKMS) EncryptDEK(ctx context.Context, keyID string, plaintext []byte) ([]byte, error) {
	aesGCM, err := s.gcm(keyID)
	if err != nil {
		return nil, err
	}
	nonce, err := crypto.RandomBytes(aesGCM.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aesGCM.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *SimpleTestKMS) DecryptDEK(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	aesGCM, err := s.gcm(keyID)
	if err != nil {
		return nil, err
	}
	nonceSize := aesGCM.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func (s *SimpleTestKMS) gcm(keyID string) (cipher.AEAD, error) {
	s.mu.RLock()
	key, exists := s.keys[keyID]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("key not found: %s", keyID)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// InMemorySecretStore is a SecretManagementService kept in process memory.
type InMemorySecretStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func NewInMemorySecretStore() *InMemorySecretStore {
	return &InMemorySecretStore{
		keys: make(map[string][]byte),
	}
}

func (s *InMemorySecretStore) GetStoragePath(ref string) string {
	return fmt.Sprintf(MemoryKeyPathTemplate, ref)
}

func (s *InMemorySecretStore) StoreKey(ctx context.Context, ref string, key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: key for %q cannot be empty", ErrInvalidConfiguration, ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[ref] = append([]byte(nil), key...)
	return nil
}

func (s *InMemorySecretStore) GetKey(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, exists := s.keys[ref]
	if !exists {
		return nil, fmt.Errorf("%w: key not found for reference: %s", ErrSecretStorageUnavailable, ref)
	}
	return append([]byte(nil), key...), nil
}

func (s *InMemorySecretStore) KeyExists(ctx context.Context, ref string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.keys[ref]
	return exists, nil
}
