package encattr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticKeyResolver(t *testing.T) {
	r := StaticKeyResolver{"a": testKey(1)}

	key, err := r.ResolveKey(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, testKey(1), key)

	key[0] = 9
	again, _ := r.ResolveKey(context.Background(), "a")
	assert.Equal(t, testKey(1), again, "callers get a copy")

	_, err = r.ResolveKey(context.Background(), "b")
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestSecretKeyResolver(t *testing.T) {
	ctx := context.Background()
	_, err := NewSecretKeyResolver(nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	secrets := NewInMemorySecretStore()
	resolver, err := NewSecretKeyResolver(secrets)
	require.NoError(t, err)

	_, err = resolver.ResolveKey(ctx, "users/ssn")
	assert.ErrorIs(t, err, ErrSecretStorageUnavailable)
	assert.Contains(t, err.Error(), "memory://users/ssn/key")

	require.NoError(t, secrets.StoreKey(ctx, "users/ssn", testKey(4)))
	key, err := resolver.ResolveKey(ctx, "users/ssn")
	require.NoError(t, err)
	assert.Equal(t, testKey(4), key)
}

func TestGenerateKey(t *testing.T) {
	ctx := context.Background()
	secrets := NewInMemorySecretStore()

	written, err := GenerateKey(ctx, secrets, "users/ssn", false)
	require.NoError(t, err)
	assert.True(t, written)
	first, err := secrets.GetKey(ctx, "users/ssn")
	require.NoError(t, err)
	assert.Len(t, first, KeyLength)

	written, err = GenerateKey(ctx, secrets, "users/ssn", false)
	require.NoError(t, err)
	assert.False(t, written)
	kept, _ := secrets.GetKey(ctx, "users/ssn")
	assert.Equal(t, first, kept)

	written, err = GenerateKey(ctx, secrets, "users/ssn", true)
	require.NoError(t, err)
	assert.True(t, written)
	replaced, _ := secrets.GetKey(ctx, "users/ssn")
	assert.NotEqual(t, first, replaced)

	_, err = GenerateKey(ctx, secrets, "", false)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestInMemorySecretStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySecretStore()

	assert.ErrorIs(t, s.StoreKey(ctx, "a", nil), ErrInvalidConfiguration)

	exists, err := s.KeyExists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)

	key := testKey(2)
	require.NoError(t, s.StoreKey(ctx, "a", key))
	key[0] = 0
	stored, err := s.GetKey(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, testKey(2), stored)
}

func TestSimpleTestKMS(t *testing.T) {
	ctx := context.Background()
	kms := NewSimpleTestKMS()

	_, err := kms.GetKeyID(ctx, "alias")
	assert.Error(t, err)

	id, err := kms.CreateKey(ctx, "alias")
	require.NoError(t, err)
	got, err := kms.GetKeyID(ctx, "alias")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	wrapped, err := kms.EncryptDEK(ctx, id, testKey(1))
	require.NoError(t, err)
	plain, err := kms.DecryptDEK(ctx, id, wrapped)
	require.NoError(t, err)
	assert.Equal(t, testKey(1), plain)

	_, err = kms.DecryptDEK(ctx, "unknown", wrapped)
	assert.Error(t, err)
	_, err = kms.DecryptDEK(ctx, id, []byte("short"))
	assert.Error(t, err)
}
