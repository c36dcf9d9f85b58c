package encattr

import (
	"context"
	"fmt"

	"github.com/hengadev/encattr/internal/crypto"
)

// StaticKeyResolver serves keys from a fixed map. Handy for tests and for keys
// injected from configuration.
type StaticKeyResolver map[string][]byte

func (s StaticKeyResolver) ResolveKey(ctx context.Context, ref string) ([]byte, error) {
	key, ok := s[ref]
	if !ok {
		return nil, fmt.Errorf("%w: no key for reference %q", ErrKeyUnavailable, ref)
	}
	return append([]byte(nil), key...), nil
}

// SecretKeyResolver reads named keys from a secret store.
type SecretKeyResolver struct {
	secrets SecretManagementService
}

// NewSecretKeyResolver creates a resolver over secrets.
func NewSecretKeyResolver(secrets SecretManagementService) (*SecretKeyResolver, error) {
	if secrets == nil {
		return nil, fmt.Errorf("%w: secret store cannot be nil", ErrInvalidConfiguration)
	}
	return &SecretKeyResolver{secrets: secrets}, nil
}

func (r *SecretKeyResolver) ResolveKey(ctx context.Context, ref string) ([]byte, error) {
	key, err := r.secrets.GetKey(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q from %s: %w", ref, r.secrets.GetStoragePath(ref), err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: key %q at %s is empty", ErrKeyUnavailable, ref, r.secrets.GetStoragePath(ref))
	}
	return key, nil
}

// GenerateKey creates a random KeyLength key for ref in secrets. An existing key
// is kept unless overwrite is set. It reports whether a key was written.
func GenerateKey(ctx context.Context, secrets SecretManagementService, ref string, overwrite bool) (bool, error) {
	if ref == "" {
		return false, fmt.Errorf("%w: key reference cannot be empty", ErrInvalidConfiguration)
	}
	exists, err := secrets.KeyExists(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("failed to check key %q: %w", ref, err)
	}
	if exists && !overwrite {
		return false, nil
	}

	key, err := crypto.RandomBytes(KeyLength)
	if err != nil {
		return false, err
	}
	if err := secrets.StoreKey(ctx, ref, key); err != nil {
		return false, fmt.Errorf("failed to store key %q at %s: %w", ref, secrets.GetStoragePath(ref), err)
	}
	return true, nil
}

var (
	_ KeyResolver = StaticKeyResolver(nil)
	_ KeyResolver = (*SecretKeyResolver)(nil)
	_ KeyResolver = (*Keyring)(nil)

	_ KeyManagementService    = (*SimpleTestKMS)(nil)
	_ SecretManagementService = (*InMemorySecretStore)(nil)
)
