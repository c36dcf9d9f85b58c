package hashicorp

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/vault/api"
	"github.com/hengadev/encattr"
)

// NewVaultClient builds a Vault client from the environment.
//
// VAULT_ADDR is required. Authentication uses VAULT_TOKEN when set, otherwise
// AppRole with VAULT_ROLE_ID and VAULT_SECRET_ID. VAULT_NAMESPACE is optional.
func NewVaultClient(ctx context.Context) (*api.Client, error) {
	config := api.DefaultConfig()

	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		config.Address = addr
	}
	if config.Address == "" {
		return nil, fmt.Errorf("%w: VAULT_ADDR environment variable is required", encattr.ErrInvalidConfiguration)
	}

	config.HttpClient.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Vault client: %w", encattr.ErrSecretStorageUnavailable, err)
	}

	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		client.SetNamespace(namespace)
	}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
		return client, nil
	}

	roleID := os.Getenv("VAULT_ROLE_ID")
	secretID := os.Getenv("VAULT_SECRET_ID")
	if roleID == "" || secretID == "" {
		return nil, fmt.Errorf("%w: no Vault authentication method configured (set VAULT_TOKEN or VAULT_ROLE_ID+VAULT_SECRET_ID)",
			encattr.ErrInvalidConfiguration)
	}

	resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]any{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to login with AppRole: %w", encattr.ErrAuthenticationFailed, err)
	}
	if resp == nil || resp.Auth == nil {
		return nil, fmt.Errorf("%w: no auth info returned from AppRole login", encattr.ErrAuthenticationFailed)
	}
	client.SetToken(resp.Auth.ClientToken)
	return client, nil
}
