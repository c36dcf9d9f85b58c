// Package hashicorp wraps data keys with the HashiCorp Vault Transit engine.
//
// Transit keys are addressed by name, so the KEK alias is the key ID.
package hashicorp

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/vault/api"
	"github.com/hengadev/encattr"
	vaultsecrets "github.com/hengadev/encattr/providers/secrets/hashicorp"
)

// TransitService implements encattr.KeyManagementService using Vault Transit.
type TransitService struct {
	client *api.Client
}

// NewTransitService creates a service with a client configured from the
// environment (VAULT_ADDR plus VAULT_TOKEN or AppRole credentials).
func NewTransitService(ctx context.Context) (*TransitService, error) {
	client, err := vaultsecrets.NewVaultClient(ctx)
	if err != nil {
		return nil, err
	}
	return &TransitService{client: client}, nil
}

// NewTransitServiceWithClient creates a service over an existing client.
func NewTransitServiceWithClient(client *api.Client) (*TransitService, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: vault client cannot be nil", encattr.ErrInvalidConfiguration)
	}
	return &TransitService{client: client}, nil
}

// GetKeyID returns alias when a transit key of that name exists.
func (t *TransitService) GetKeyID(ctx context.Context, alias string) (string, error) {
	if alias == "" {
		return "", fmt.Errorf("%w: alias cannot be empty", encattr.ErrInvalidConfiguration)
	}
	secret, err := t.client.Logical().ReadWithContext(ctx, "transit/keys/"+alias)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read transit key '%s': %w", encattr.ErrKMSUnavailable, alias, err)
	}
	if secret == nil {
		return "", fmt.Errorf("%w: transit key '%s' does not exist", encattr.ErrKMSUnavailable, alias)
	}
	return alias, nil
}

// CreateKey creates an aes256-gcm96 transit key named name and returns the name.
func (t *TransitService) CreateKey(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: key name cannot be empty", encattr.ErrInvalidConfiguration)
	}

	_, err := t.client.Logical().WriteWithContext(ctx, "transit/keys/"+name, map[string]any{
		"type": "aes256-gcm96",
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to create transit key '%s': %w", encattr.ErrKMSUnavailable, name, err)
	}
	return name, nil
}

// EncryptDEK returns the "vault:vN:..." ciphertext of plaintextDEK.
func (t *TransitService) EncryptDEK(ctx context.Context, keyID string, plaintextDEK []byte) ([]byte, error) {
	if len(plaintextDEK) == 0 {
		return nil, fmt.Errorf("%w: plaintext cannot be empty", encattr.ErrEncryptionFailed)
	}
	if keyID == "" {
		return nil, fmt.Errorf("%w: keyID cannot be empty", encattr.ErrInvalidConfiguration)
	}

	resp, err := t.client.Logical().WriteWithContext(ctx, "transit/encrypt/"+keyID, map[string]any{
		"plaintext": base64.StdEncoding.EncodeToString(plaintextDEK),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encrypt with key '%s': %w", encattr.ErrEncryptionFailed, keyID, err)
	}
	if resp == nil || resp.Data == nil {
		return nil, fmt.Errorf("%w: no response from Vault Transit encrypt", encattr.ErrEncryptionFailed)
	}

	ciphertext, ok := resp.Data["ciphertext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: ciphertext not found in response", encattr.ErrEncryptionFailed)
	}
	return []byte(ciphertext), nil
}

func (t *TransitService) DecryptDEK(ctx context.Context, keyID string, ciphertextDEK []byte) ([]byte, error) {
	if len(ciphertextDEK) == 0 {
		return nil, fmt.Errorf("%w: ciphertext cannot be empty", encattr.ErrDecryptionFailed)
	}
	if keyID == "" {
		return nil, fmt.Errorf("%w: keyID cannot be empty", encattr.ErrInvalidConfiguration)
	}

	resp, err := t.client.Logical().WriteWithContext(ctx, "transit/decrypt/"+keyID, map[string]any{
		"ciphertext": string(ciphertextDEK),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt with key '%s': %w", encattr.ErrDecryptionFailed, keyID, err)
	}
	if resp == nil || resp.Data == nil {
		return nil, fmt.Errorf("%w: no response from Vault Transit decrypt", encattr.ErrDecryptionFailed)
	}

	plaintextBase64, ok := resp.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: plaintext not found in response", encattr.ErrDecryptionFailed)
	}
	plaintext, err := base64.StdEncoding.DecodeString(plaintextBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode plaintext: %w", encattr.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

var _ encattr.KeyManagementService = (*TransitService)(nil)
