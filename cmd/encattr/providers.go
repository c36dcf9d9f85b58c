package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hengadev/encattr"
	"github.com/hengadev/encattr/providers/awskms"
	vaulttransit "github.com/hengadev/encattr/providers/keys/hashicorp"
	awssecrets "github.com/hengadev/encattr/providers/secrets/aws"
	vaultkv "github.com/hengadev/encattr/providers/secrets/hashicorp"
)

// keySource is where named keys come from: a secret store, or a Keyring of
// KMS-wrapped data keys.
type keySource struct {
	secrets encattr.SecretManagementService
	keyring *encattr.Keyring
}

// Resolver returns the KeyResolver backing Store.Register.
func (k *keySource) Resolver() (encattr.KeyResolver, error) {
	if k.keyring != nil {
		return k.keyring, nil
	}
	return encattr.NewSecretKeyResolver(k.secrets)
}

// Location describes where the key for ref lives.
func (k *keySource) Location(ref string) string {
	if k.keyring != nil {
		return fmt.Sprintf("keyring (KEK %s)", k.keyring.KEKID())
	}
	return k.secrets.GetStoragePath(ref)
}

func (k *keySource) Close() error {
	if k.keyring != nil {
		return k.keyring.Close()
	}
	return nil
}

// openKeySource builds the provider selected by cfg.KeyProvider.
func openKeySource(ctx context.Context, cfg encattr.Config, logger *slog.Logger) (*keySource, error) {
	switch cfg.KeyProvider {
	case encattr.ProviderMemory:
		return &keySource{secrets: encattr.NewInMemorySecretStore()}, nil
	case encattr.ProviderAWS:
		store, err := awssecrets.NewSecretsManagerStore(ctx, awssecrets.Config{})
		if err != nil {
			return nil, err
		}
		return &keySource{secrets: store}, nil
	case encattr.ProviderVault:
		store, err := vaultkv.NewKVStore(ctx)
		if err != nil {
			return nil, err
		}
		return &keySource{secrets: store}, nil
	}

	var kms encattr.KeyManagementService
	switch cfg.KeyProvider {
	case encattr.ProviderKMSAWS:
		svc, err := awskms.New(ctx, awskms.Config{})
		if err != nil {
			return nil, err
		}
		kms = svc
	case encattr.ProviderKMSVault:
		svc, err := vaulttransit.NewTransitService(ctx)
		if err != nil {
			return nil, err
		}
		kms = svc
	default:
		return nil, fmt.Errorf("%w: unknown key provider %q", encattr.ErrInvalidConfiguration, cfg.KeyProvider)
	}

	keyring, err := encattr.NewKeyring(ctx, kms, cfg.KEKAlias, cfg.KeyDBPath, encattr.WithKeyringLogger(logger))
	if err != nil {
		return nil, err
	}
	return &keySource{keyring: keyring}, nil
}
