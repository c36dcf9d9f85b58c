package encattr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hengadev/encattr/internal/crypto"
	"github.com/hengadev/encattr/internal/reliability"
	_ "github.com/mattn/go-sqlite3"
)

// Keyring resolves key references to data keys. A data key is generated the
// first time its reference is resolved, wrapped with the KEK of the KMS and
// recorded in a SQLite metadata database. Unwrapped keys are cached.
type Keyring struct {
	db       *sql.DB
	ownsDB   bool
	kms      KeyManagementService
	dek      *crypto.DataKeyOperations
	kekAlias string
	kekID    string
	logger   *slog.Logger
	retry    reliability.RetryConfig

	mu    sync.Mutex
	cache map[string][]byte
}

// KeyringOption configures a Keyring
type KeyringOption func(*Keyring) error

// WithKeyringDB uses an already opened metadata database.
func WithKeyringDB(db *sql.DB) KeyringOption {
	return func(k *Keyring) error {
		if db == nil {
			return fmt.Errorf("%w: keyring database cannot be nil", ErrInvalidConfiguration)
		}
		k.db = db
		return nil
	}
}

// WithKeyringLogger sets the logger for key creation events.
func WithKeyringLogger(logger *slog.Logger) KeyringOption {
	return func(k *Keyring) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfiguration)
		}
		k.logger = logger
		return nil
	}
}

// WithKeyringRetry sets how wrap and unwrap calls to the KMS are retried.
func WithKeyringRetry(config reliability.RetryConfig) KeyringOption {
	return func(k *Keyring) error {
		if config.ShouldRetry == nil {
			config.ShouldRetry = isRetryableKMSError
		}
		k.retry = config
		return nil
	}
}

// NewKeyring opens the metadata database at dbPath, unless WithKeyringDB is
// given, and makes sure a KEK exists for kekAlias.
func NewKeyring(ctx context.Context, kms KeyManagementService, kekAlias, dbPath string, options ...KeyringOption) (*Keyring, error) {
	if kms == nil {
		return nil, fmt.Errorf("%w: KMS service cannot be nil", ErrInvalidConfiguration)
	}
	if kekAlias == "" {
		return nil, fmt.Errorf("%w: KEK alias cannot be empty", ErrInvalidConfiguration)
	}

	k := &Keyring{
		kms:      kms,
		dek:      crypto.NewDataKeyOperations(kms),
		kekAlias: kekAlias,
		logger:   slog.Default(),
		retry:    reliability.DefaultRetryConfig(),
		cache:    make(map[string][]byte),
	}
	k.retry.ShouldRetry = isRetryableKMSError
	for i, opt := range options {
		if err := opt(k); err != nil {
			return nil, fmt.Errorf("invalid option %d: %w", i+1, err)
		}
	}

	if k.db == nil {
		db, err := setupKeyDatabase(dbPath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to setup database: %w", ErrDatabaseUnavailable, err)
		}
		k.db = db
		k.ownsDB = true
	}

	if err := initializeKeyDatabase(ctx, k.db); err != nil {
		k.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	if err := k.ensureKEK(ctx); err != nil {
		k.Close()
		return nil, fmt.Errorf("failed to ensure KEK for alias '%s': %w", kekAlias, err)
	}
	return k, nil
}

func setupKeyDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		dbPath = DefaultKeyDBPath
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory '%s': %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database connection test failed for '%s': %w", dbPath, err)
	}
	return db, nil
}

func initializeKeyDatabase(ctx context.Context, db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS data_keys (
			ref TEXT PRIMARY KEY,
			kms_key_id TEXT NOT NULL,
			wrapped_key BLOB NOT NULL,
			creation_time DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create data_keys table: %w", err)
	}
	return nil
}

func (k *Keyring) ensureKEK(ctx context.Context) error {
	kekID, err := k.kms.GetKeyID(ctx, k.kekAlias)
	if err != nil {
		k.logger.InfoContext(ctx, "no KEK found in KMS, creating one", "alias", k.kekAlias)
		kekID, err = k.kms.CreateKey(ctx, k.kekAlias)
		if err != nil {
			return fmt.Errorf("%w: failed to create KEK in KMS: %w", ErrKMSUnavailable, err)
		}
	}
	k.kekID = kekID
	return nil
}

// KEKID returns the KMS key id used to wrap new data keys.
func (k *Keyring) KEKID() string { return k.kekID }

// ResolveKey returns the data key for ref, creating it on first use.
func (k *Keyring) ResolveKey(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: key reference cannot be empty", ErrInvalidConfiguration)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if key, ok := k.cache[ref]; ok {
		return append([]byte(nil), key...), nil
	}

	var kmsKeyID string
	var wrapped []byte
	err := k.db.QueryRowContext(ctx,
		`SELECT kms_key_id, wrapped_key FROM data_keys WHERE ref = ?`, ref).
		Scan(&kmsKeyID, &wrapped)

	var key []byte
	switch {
	case errors.Is(err, sql.ErrNoRows):
		key, err = k.createDataKey(ctx, ref)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("%w: failed to read data key %q: %w", ErrDatabaseUnavailable, ref, err)
	default:
		key, err = k.unwrap(ctx, kmsKeyID, wrapped)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKMSUnavailable, err)
		}
	}

	k.cache[ref] = key
	return append([]byte(nil), key...), nil
}

func (k *Keyring) createDataKey(ctx context.Context, ref string) ([]byte, error) {
	key, err := k.dek.GenerateDataKey()
	if err != nil {
		return nil, err
	}
	wrapped, err := k.wrap(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKMSUnavailable, err)
	}
	_, err = k.db.ExecContext(ctx,
		`INSERT INTO data_keys (ref, kms_key_id, wrapped_key) VALUES (?, ?, ?)`,
		ref, k.kekID, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to record data key %q: %w", ErrDatabaseUnavailable, ref, err)
	}
	k.logger.InfoContext(ctx, "data key created", "ref", ref, "kek_alias", k.kekAlias)
	return key, nil
}

// Rewrap re-encrypts every stored data key with the current KEK. Key material
// is unchanged, so existing ciphertexts stay readable. It returns the number of
// keys rewrapped.
func (k *Keyring) Rewrap(ctx context.Context) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	rows, err := k.db.QueryContext(ctx, `SELECT ref, kms_key_id, wrapped_key FROM data_keys WHERE kms_key_id <> ?`, k.kekID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to list data keys: %w", ErrDatabaseUnavailable, err)
	}
	type stale struct {
		ref, kmsKeyID string
		wrapped       []byte
	}
	var pending []stale
	for rows.Next() {
		var s stale
		if err := rows.Scan(&s.ref, &s.kmsKeyID, &s.wrapped); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan data key: %w", err)
		}
		pending = append(pending, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to list data keys: %w", err)
	}

	for i, s := range pending {
		key, err := k.unwrap(ctx, s.kmsKeyID, s.wrapped)
		if err != nil {
			return i, fmt.Errorf("%w: %w", ErrKMSUnavailable, err)
		}
		wrapped, err := k.wrap(ctx, key)
		if err != nil {
			return i, fmt.Errorf("%w: %w", ErrKMSUnavailable, err)
		}
		if _, err := k.db.ExecContext(ctx,
			`UPDATE data_keys SET kms_key_id = ?, wrapped_key = ? WHERE ref = ?`,
			k.kekID, wrapped, s.ref); err != nil {
			return i, fmt.Errorf("%w: failed to update data key %q: %w", ErrDatabaseUnavailable, s.ref, err)
		}
	}
	return len(pending), nil
}

// Refs lists the references of every stored data key.
func (k *Keyring) Refs(ctx context.Context) ([]string, error) {
	rows, err := k.db.QueryContext(ctx, `SELECT ref FROM data_keys ORDER BY ref`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list data keys: %w", ErrDatabaseUnavailable, err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan data key: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (k *Keyring) wrap(ctx context.Context, key []byte) ([]byte, error) {
	var wrapped []byte
	err := reliability.Retry(ctx, k.retryConfig("wrap"), func(ctx context.Context) error {
		var err error
		wrapped, err = k.dek.Wrap(ctx, k.kekID, key)
		return err
	})
	return wrapped, err
}

func (k *Keyring) unwrap(ctx context.Context, kmsKeyID string, wrapped []byte) ([]byte, error) {
	var key []byte
	err := reliability.Retry(ctx, k.retryConfig("unwrap"), func(ctx context.Context) error {
		var err error
		key, err = k.dek.Unwrap(ctx, kmsKeyID, wrapped)
		return err
	})
	return key, err
}

func (k *Keyring) retryConfig(operation string) reliability.RetryConfig {
	cfg := k.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		k.logger.Warn("retrying KMS call", "operation", operation, "attempt", attempt, "delay", delay, "error", err)
	}
	return cfg
}

// isRetryableKMSError retries unavailable services and timeouts only.
func isRetryableKMSError(err error) bool {
	return errors.Is(err, ErrKMSUnavailable) || reliability.IsTemporaryError(err)
}

// Close closes the metadata database if the keyring opened it.
func (k *Keyring) Close() error {
	if !k.ownsDB || k.db == nil {
		return nil
	}
	return k.db.Close()
}
