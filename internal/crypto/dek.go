package crypto

import (
	"context"
	"fmt"
)

// DataKeyOperations generates data keys and wraps them with a key encryption key
// held by a KMS.
type DataKeyOperations struct {
	kmsService KeyManagementService
}

// KeyManagementService defines the KMS operations needed by the crypto package
type KeyManagementService interface {
	EncryptDEK(ctx context.Context, keyID string, plaintext []byte) ([]byte, error)
	DecryptDEK(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// NewDataKeyOperations creates a new DataKeyOperations instance
func NewDataKeyOperations(kmsService KeyManagementService) *DataKeyOperations {
	return &DataKeyOperations{kmsService: kmsService}
}

// GenerateDataKey generates a new AES-256 data key.
func (d *DataKeyOperations) GenerateDataKey() ([]byte, error) {
	dek, err := RandomBytes(KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}
	return dek, nil
}

// Wrap encrypts a data key with the KMS key identified by keyID.
func (d *DataKeyOperations) Wrap(ctx context.Context, keyID string, dek []byte) ([]byte, error) {
	wrapped, err := d.kmsService.EncryptDEK(ctx, keyID, dek)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap data key with KMS key %s: %w", keyID, err)
	}
	return wrapped, nil
}

// Unwrap decrypts a data key previously produced by Wrap.
func (d *DataKeyOperations) Unwrap(ctx context.Context, keyID string, wrapped []byte) ([]byte, error) {
	dek, err := d.kmsService.DecryptDEK(ctx, keyID, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap data key with KMS key %s: %w", keyID, err)
	}
	if len(dek) != KeySize {
		return nil, fmt.Errorf("unwrapped data key has invalid size: expected %d, got %d", KeySize, len(dek))
	}
	return dek, nil
}
