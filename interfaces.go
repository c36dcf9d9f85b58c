package encattr

import "context"

// KeyManagementService defines the contract for cryptographic key operations.
//
// Implementations wrap and unwrap data keys with a Key Encryption Key (KEK) that
// never leaves the KMS. The Keyring uses it to protect the data keys it tracks.
//
// Implementations:
//   - AWS KMS: github.com/hengadev/encattr/providers/awskms.KMSService
//   - HashiCorp Vault Transit: github.com/hengadev/encattr/providers/keys/hashicorp.TransitService
//   - Testing: encattr.SimpleTestKMS
type KeyManagementService interface {
	// GetKeyID resolves a key alias to a key ID.
	//
	// For AWS KMS, this resolves an alias like "alias/my-key" to the underlying key ID.
	// For HashiCorp Vault, this returns the key name directly.
	GetKeyID(ctx context.Context, alias string) (string, error)

	// CreateKey creates a new symmetric key suitable for wrapping data keys.
	CreateKey(ctx context.Context, description string) (string, error)

	// EncryptDEK wraps a data key with the KMS key identified by keyID.
	EncryptDEK(ctx context.Context, keyID string, plaintext []byte) ([]byte, error)

	// DecryptDEK unwraps a data key that was wrapped by EncryptDEK.
	DecryptDEK(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// SecretManagementService defines the contract for storing named attribute keys.
//
// Each implementation determines its own storage path from the key reference:
//   - AWS Secrets Manager: "encattr/{ref}/key"
//   - Vault KV v2: "secret/data/encattr/{ref}/key"
//   - In-Memory: "memory://{ref}/key"
//
// Implementations:
//   - AWS Secrets Manager: github.com/hengadev/encattr/providers/secrets/aws.SecretsManagerStore
//   - HashiCorp Vault KV v2: github.com/hengadev/encattr/providers/secrets/hashicorp.KVStore
//   - In-Memory (testing): encattr.InMemorySecretStore
type SecretManagementService interface {
	// StoreKey stores the key for ref, replacing any existing value.
	StoreKey(ctx context.Context, ref string, key []byte) error

	// GetKey retrieves the key stored for ref.
	GetKey(ctx context.Context, ref string) ([]byte, error)

	// KeyExists reports whether a key is stored for ref. It returns an error only
	// if the check itself fails.
	KeyExists(ctx context.Context, ref string) (bool, error)

	// GetStoragePath returns the full storage path for ref, for logs and debugging.
	GetStoragePath(ref string) string
}

// KeyResolver turns a key reference declared with WithKeyRef into key bytes.
type KeyResolver interface {
	ResolveKey(ctx context.Context, ref string) ([]byte, error)
}
