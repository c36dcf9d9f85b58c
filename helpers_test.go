package encattr

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const usersSchema = `
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		name TEXT,
		role TEXT,
		key_seed TEXT,
		encrypted_email TEXT,
		encrypted_ssn TEXT,
		encrypted_ssn_iv TEXT,
		encrypted_notes TEXT,
		encrypted_notes_iv TEXT,
		encrypted_notes_salt TEXT
	)
`

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeyLength)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Exec(usersSchema).Error)
	t.Cleanup(func() { _ = CloseDB(db) })
	return db
}

// newUserModel declares email (searchable), ssn (random IV) and notes (IV and salt).
func newUserModel(t *testing.T, opts ...ModelOption) *Model {
	t.Helper()
	m, err := NewModel("User", "users", opts...)
	require.NoError(t, err)
	require.NoError(t, m.AttrEncrypted("email", WithMode(SingleIVAndSalt), WithKey(testKey(1))))
	require.NoError(t, m.AttrEncrypted("ssn", WithKey(testKey(2))))
	require.NoError(t, m.AttrEncrypted("notes", WithMode(PerAttributeIVAndSalt), WithKey([]byte("a passphrase of any length"))))
	return m
}

type testEnv struct {
	db    *gorm.DB
	store *Store
	model *Model
	logs  *bytes.Buffer
}

func newTestEnv(t *testing.T, opts ...StoreOption) *testEnv {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	db := newTestDB(t)
	store, err := NewStore(db, append([]StoreOption{WithStoreLogger(logger)}, opts...)...)
	require.NoError(t, err)

	m := newUserModel(t, WithLogger(logger))
	require.NoError(t, store.Register(context.Background(), m))
	return &testEnv{db: db, store: store, model: m, logs: logs}
}

// rawRow reads a row straight from the table, bypassing decryption.
func (e *testEnv) rawRow(t *testing.T, id any) map[string]any {
	t.Helper()
	var rows []map[string]any
	require.NoError(t, e.db.Table("users").Where("id = ?", id).Find(&rows).Error)
	require.Len(t, rows, 1)
	return rows[0]
}

func (e *testEnv) createUser(t *testing.T, attrs map[string]any) *Record {
	t.Helper()
	r := e.store.New(e.model)
	require.NoError(t, r.AssignAttributes(attrs))
	require.NoError(t, r.Save(context.Background()))
	return r
}
