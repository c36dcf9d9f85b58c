package encattr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hengadev/encattr/internal/monitoring"
)

// MaxKEKAliasLength bounds the KEK alias accepted by Config.Validate.
const MaxKEKAliasLength = 256

// Config holds the settings shared by the CLI and applications wiring a Store.
type Config struct {
	// DatabaseDSN is the GORM sqlite DSN of the application database.
	DatabaseDSN string

	// KeyDBPath is where the Keyring tracks wrapped data keys.
	KeyDBPath string

	// KEKAlias names the KMS key wrapping data keys. Required by the kms-* providers.
	KEKAlias string

	// KeyProvider selects the source of named keys.
	KeyProvider string

	LogLevel  string
	LogFormat string
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = DefaultDatabaseDSN
	}
	if c.KeyDBPath == "" {
		c.KeyDBPath = DefaultKeyDBPath
	}
	if c.KeyProvider == "" {
		c.KeyProvider = DefaultKeyProvider
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}

	providers := []string{ProviderMemory, ProviderAWS, ProviderVault, ProviderKMSAWS, ProviderKMSVault}
	if !slices.Contains(providers, c.KeyProvider) {
		return fmt.Errorf("%w: unknown key provider %q, expected one of %s",
			ErrInvalidConfiguration, c.KeyProvider, strings.Join(providers, ", "))
	}

	if c.UsesKMS() && c.KEKAlias == "" {
		return fmt.Errorf("%w: KEKAlias is required for provider %s", ErrInvalidConfiguration, c.KeyProvider)
	}
	if len(c.KEKAlias) > MaxKEKAliasLength {
		return fmt.Errorf("%w: KEKAlias must be %d characters or less, got %d",
			ErrInvalidConfiguration, MaxKEKAliasLength, len(c.KEKAlias))
	}

	if _, err := monitoring.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfiguration, c.LogFormat)
	}
	return nil
}

// UsesKMS reports whether named keys are envelope keys managed by a Keyring.
func (c *Config) UsesKMS() bool {
	return c.KeyProvider == ProviderKMSAWS || c.KeyProvider == ProviderKMSVault
}

// LoggerConfig returns the logger settings for component.
func (c *Config) LoggerConfig(component string) monitoring.LoggerConfig {
	return monitoring.LoggerConfig{
		Level:     c.LogLevel,
		Format:    c.LogFormat,
		Component: component,
	}
}
