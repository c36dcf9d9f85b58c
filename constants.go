package encattr

// Shadow column naming
const (
	// DefaultPrefix is prepended to an attribute name to build its shadow column.
	DefaultPrefix = "encrypted_"

	// DefaultSuffix is appended to an attribute name to build its shadow column.
	DefaultSuffix = ""

	// IVSuffix is appended to the shadow column to build the IV column.
	IVSuffix = "_iv"

	// SaltSuffix is appended to the shadow column to build the salt column.
	SaltSuffix = "_salt"

	// DefaultPrimaryKey is the primary key column assumed when none is configured.
	DefaultPrimaryKey = "id"
)

// KeyLength is the size in bytes of keys used by the IV modes and generated by the CLI.
const KeyLength = 32

// Environment variable names
const (
	// EnvDatabaseDSN is the DSN of the application database holding the records.
	// Example: "file:app.db" or ":memory:"
	EnvDatabaseDSN = "ENCATTR_DATABASE_DSN"

	// EnvKeyDBPath is the path of the SQLite database tracking wrapped data keys.
	// Default: .encattr/keys.db
	EnvKeyDBPath = "ENCATTR_KEY_DB_PATH"

	// EnvKEKAlias identifies the KMS key used to wrap data keys.
	// Example: "user-service-kek" or "alias/myapp-kek"
	EnvKEKAlias = "ENCATTR_KEK_ALIAS"

	// EnvKeyProvider selects where named attribute keys come from.
	// One of: memory, aws, vault, kms-aws, kms-vault
	EnvKeyProvider = "ENCATTR_KEY_PROVIDER"

	// EnvLogLevel is one of debug, info, warn, error.
	EnvLogLevel = "ENCATTR_LOG_LEVEL"

	// EnvLogFormat is one of json, text.
	EnvLogFormat = "ENCATTR_LOG_FORMAT"
)

// Defaults applied by Config.Validate
const (
	DefaultDatabaseDSN = "encattr.db"
	DefaultKeyDBPath   = ".encattr/keys.db"
	DefaultKeyProvider = ProviderMemory
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
)

// Key providers
const (
	ProviderMemory   = "memory"
	ProviderAWS      = "aws"
	ProviderVault    = "vault"
	ProviderKMSAWS   = "kms-aws"
	ProviderKMSVault = "kms-vault"
)

// Secret storage path templates used by the secret store providers.
const (
	AWSKeyPathTemplate    = "encattr/%s/key"
	VaultKeyPathTemplate  = "secret/data/encattr/%s/key"
	MemoryKeyPathTemplate = "memory://%s/key"
)
