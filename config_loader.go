package encattr

import (
	"fmt"
	"os"
)

// LoadConfigFromEnvironment builds a Config from the ENCATTR_* variables.
//
//	export ENCATTR_DATABASE_DSN="file:app.db"
//	export ENCATTR_KEY_PROVIDER="kms-aws"
//	export ENCATTR_KEK_ALIAS="alias/user-service-kek"
func LoadConfigFromEnvironment() (Config, error) {
	cfg := Config{
		DatabaseDSN: getEnvOrDefault(EnvDatabaseDSN, DefaultDatabaseDSN),
		KeyDBPath:   getEnvOrDefault(EnvKeyDBPath, DefaultKeyDBPath),
		KEKAlias:    os.Getenv(EnvKEKAlias),
		KeyProvider: getEnvOrDefault(EnvKeyProvider, DefaultKeyProvider),
		LogLevel:    getEnvOrDefault(EnvLogLevel, DefaultLogLevel),
		LogFormat:   getEnvOrDefault(EnvLogFormat, DefaultLogFormat),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
