// Package hashicorp stores named attribute keys in a HashiCorp Vault KV v2 engine.
//
// Keys are base64 encoded under the "value" field of "secret/data/encattr/{ref}/key".
package hashicorp

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/vault/api"
	"github.com/hengadev/encattr"
)

// KVStore implements encattr.SecretManagementService using Vault KV v2.
type KVStore struct {
	client *api.Client
}

// NewKVStore creates a store with a client configured from the environment.
func NewKVStore(ctx context.Context) (*KVStore, error) {
	client, err := NewVaultClient(ctx)
	if err != nil {
		return nil, err
	}
	return &KVStore{client: client}, nil
}

// NewKVStoreWithClient creates a store over an existing client.
func NewKVStoreWithClient(client *api.Client) (*KVStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: vault client cannot be nil", encattr.ErrInvalidConfiguration)
	}
	return &KVStore{client: client}, nil
}

func (k *KVStore) GetStoragePath(ref string) string {
	return fmt.Sprintf(encattr.VaultKeyPathTemplate, ref)
}

// StoreKey writes key as a new version of the secret for ref.
func (k *KVStore) StoreKey(ctx context.Context, ref string, key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: key for %q cannot be empty", encattr.ErrInvalidConfiguration, ref)
	}

	data := map[string]any{
		"data": map[string]any{
			"value": base64.StdEncoding.EncodeToString(key),
		},
	}
	if _, err := k.client.Logical().WriteWithContext(ctx, k.GetStoragePath(ref), data); err != nil {
		return fmt.Errorf("%w: failed to store key in Vault KV: %w",
			encattr.ErrSecretStorageUnavailable, err)
	}
	return nil
}

func (k *KVStore) GetKey(ctx context.Context, ref string) ([]byte, error) {
	value, err := k.readValue(ctx, ref)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, fmt.Errorf("%w: key not found for reference: %s",
			encattr.ErrSecretStorageUnavailable, ref)
	}

	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode key %s: %w",
			encattr.ErrSecretStorageUnavailable, ref, err)
	}
	return key, nil
}

func (k *KVStore) KeyExists(ctx context.Context, ref string) (bool, error) {
	value, err := k.readValue(ctx, ref)
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// readValue returns the "value" field of the latest version, or "" when the
// secret or the field is missing.
func (k *KVStore) readValue(ctx context.Context, ref string) (string, error) {
	secret, err := k.client.Logical().ReadWithContext(ctx, k.GetStoragePath(ref))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read key from Vault KV: %w",
			encattr.ErrSecretStorageUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return "", nil
	}
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return "", nil
	}
	value, _ := data["value"].(string)
	return value, nil
}

var _ encattr.SecretManagementService = (*KVStore)(nil)
