package encattr

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	db := newTestDB(t)
	_, err = NewStore(db, WithStoreLogger(nil))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = NewStore(db, WithKeyResolver(nil))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestStoreRegisterIntrospectsColumns(t *testing.T) {
	env := newTestEnv(t)

	assert.True(t, env.model.ColumnsAvailable())
	assert.ElementsMatch(t, []string{
		"id", "name", "role", "key_seed",
		"encrypted_email", "encrypted_ssn", "encrypted_ssn_iv",
		"encrypted_notes", "encrypted_notes_iv", "encrypted_notes_salt",
	}, env.model.Columns())
	assert.Empty(t, env.model.MissingColumns())
	assert.Contains(t, env.model.AccessorNames(), "encrypted_ssn=")

	got, ok := env.store.Model("User")
	require.True(t, ok)
	assert.Same(t, env.model, got)
}

func TestStoreRegisterMissingTable(t *testing.T) {
	env := newTestEnv(t)
	m, err := NewModel("Ghost", "ghosts")
	require.NoError(t, err)

	require.NoError(t, env.store.Register(context.Background(), m))
	assert.False(t, m.ColumnsAvailable())
	assert.Contains(t, env.logs.String(), "table does not exist")
}

func TestStoreRegisterResolvesKeyRefs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m, err := NewModel("User", "users")
	require.NoError(t, err)
	require.NoError(t, m.AttrEncrypted("ssn", WithKeyRef("users/ssn")))

	bare, err := NewStore(db)
	require.NoError(t, err)
	assert.ErrorIs(t, bare.Register(ctx, m), ErrInvalidConfiguration)

	empty, err := NewStore(db, WithKeyResolver(StaticKeyResolver{}))
	require.NoError(t, err)
	assert.ErrorIs(t, empty.Register(ctx, m), ErrKeyUnavailable)

	metrics := NewInMemoryMetricsCollector()
	store, err := NewStore(db,
		WithKeyResolver(StaticKeyResolver{"users/ssn": testKey(7)}),
		WithObservabilityHook(NewMetricsObservabilityHook(metrics)),
	)
	require.NoError(t, err)
	require.NoError(t, store.Register(ctx, m))
	assert.Equal(t, int64(1), metrics.GetCounter("encattr.key_operations",
		map[string]string{"operation": "resolve", "key_ref": "users/ssn"}))

	r := store.New(m)
	require.NoError(t, r.Set("ssn", "123"))
	require.NoError(t, r.Save(ctx))

	found, err := store.Find(ctx, m, r.ID())
	require.NoError(t, err)
	assert.Equal(t, "123", found.MustGet("ssn"))
}

func TestStoreSaveAndFind(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	r := env.createUser(t, map[string]any{
		"name":  "Alice",
		"email": "alice@example.com",
		"ssn":   "123-45-6789",
		"notes": "likes tea",
	})
	assert.False(t, r.IsNew())
	_, err := uuid.Parse(r.ID().(string))
	require.NoError(t, err, "inserted records get a uuid primary key")

	row := env.rawRow(t, r.ID())
	assert.Equal(t, "Alice", row["name"])
	for _, col := range []string{"encrypted_email", "encrypted_ssn", "encrypted_ssn_iv", "encrypted_notes", "encrypted_notes_iv", "encrypted_notes_salt"} {
		assert.NotEmpty(t, row[col], col)
	}
	assert.NotContains(t, row["encrypted_ssn"], "123-45-6789")

	found, err := env.store.Find(ctx, env.model, r.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.MustGet("name"))
	assert.Equal(t, "alice@example.com", found.MustGet("email"))
	assert.Equal(t, "123-45-6789", found.MustGet("ssn"))
	assert.Equal(t, "likes tea", found.MustGet("notes"))
	assert.Empty(t, found.ChangedAttributes())

	_, err = env.store.Find(ctx, env.model, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStoreUpdateWritesChangedColumnsOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.createUser(t, map[string]any{"name": "Alice", "ssn": "111"})

	a, err := env.store.Find(ctx, env.model, r.ID())
	require.NoError(t, err)
	b, err := env.store.Find(ctx, env.model, r.ID())
	require.NoError(t, err)

	require.NoError(t, a.Set("name", "Alicia"))
	require.NoError(t, a.Save(ctx))
	require.NoError(t, b.Set("ssn", "222"))
	require.NoError(t, b.Save(ctx))

	found, err := env.store.Find(ctx, env.model, r.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alicia", found.MustGet("name"))
	assert.Equal(t, "222", found.MustGet("ssn"))

	// Saving without changes does not touch the database.
	require.NoError(t, found.Save(ctx))
}

func TestStoreReloadClearsCachedPlaintext(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	writer := env.createUser(t, map[string]any{"ssn": "old"})

	reader, err := env.store.Find(ctx, env.model, writer.ID())
	require.NoError(t, err)
	assert.Equal(t, "old", reader.MustGet("ssn"))

	require.NoError(t, writer.Set("ssn", "new"))
	require.NoError(t, writer.Save(ctx))
	assert.Equal(t, "old", reader.MustGet("ssn"), "plaintext stays cached until reload")

	require.NoError(t, reader.Reload(ctx))
	assert.Empty(t, reader.plain)
	assert.Equal(t, "new", reader.MustGet("ssn"))
	assert.False(t, reader.Changed("ssn"))
}

func TestStoreReloadDropsUnsavedChanges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.createUser(t, map[string]any{"ssn": "saved"})

	require.NoError(t, r.Set("ssn", "unsaved"))
	require.NoError(t, r.Reload(ctx))
	assert.Equal(t, "saved", r.MustGet("ssn"))
}

func TestStorePartialSelect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	created := env.createUser(t, map[string]any{"name": "Alice", "ssn": "123"})

	r, err := env.store.Query(env.model).Select("name").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID(), r.ID(), "the primary key is always selected")
	assert.Equal(t, "Alice", r.MustGet("name"))
	assert.Nil(t, r.MustGet("ssn"), "unselected shadow column reads as nil")

	r, err = env.store.Query(env.model).Select("ssn").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123", r.MustGet("ssn"))

	_, err = env.store.Query(env.model).Select("nickname").First(ctx)
	assert.ErrorIs(t, err, ErrUnknownAttribute)
}

func TestStoreQueryOnEncryptedAttribute(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createUser(t, map[string]any{"name": "Alice", "role": "admin", "email": "alice@example.com"})
	env.createUser(t, map[string]any{"name": "Bob", "role": "admin", "email": "bob@example.com"})
	env.createUser(t, map[string]any{"name": "Carol", "role": "user", "email": "carol@example.com"})

	r, err := env.store.FindBy(ctx, env.model, map[string]any{"email": "bob@example.com"})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "Bob", r.MustGet("name"))

	r, err = env.store.FindBy(ctx, env.model, map[string]any{"email": "nobody@example.com"})
	require.NoError(t, err)
	assert.Nil(t, r)

	admins, err := env.store.FindAllBy(ctx, env.model, map[string]any{"role": "admin"})
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	n, err := env.store.Query(env.model).Where(map[string]any{"role": "admin", "email": "alice@example.com"}).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	limited, err := env.store.Query(env.model).Limit(2).All(ctx)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = env.store.FindBy(ctx, env.model, map[string]any{"ssn": "123"})
	assert.ErrorIs(t, err, ErrNotSearchable)
	_, err = env.store.Query(env.model).Where(map[string]any{"nickname": "x"}).Count(ctx)
	assert.ErrorIs(t, err, ErrUnknownAttribute)
}

func TestStoreQueryIsImmutable(t *testing.T) {
	env := newTestEnv(t)
	base := env.store.Query(env.model).Where(map[string]any{"role": "admin"})
	narrowed := base.Where(map[string]any{"name": "Alice"})

	assert.Equal(t, map[string]any{"role": "admin"}, base.Conditions())
	assert.Equal(t, map[string]any{"role": "admin", "name": "Alice"}, narrowed.Conditions())
	assert.NoError(t, narrowed.Err())
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.createUser(t, map[string]any{"name": "Alice"})

	require.NoError(t, env.store.Delete(ctx, r))
	assert.True(t, r.Frozen())
	assert.ErrorIs(t, r.Save(ctx), ErrFrozenRecord)

	_, err := env.store.Find(ctx, env.model, r.ID())
	assert.ErrorIs(t, err, ErrRecordNotFound)

	assert.ErrorIs(t, env.store.Delete(ctx, env.store.New(env.model)), ErrNotPersisted)
}

func TestStoreDeleteUsesPersistedID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.createUser(t, map[string]any{"name": "Alice"})
	id := r.ID()

	require.NoError(t, r.Set("id", "other"))
	require.NoError(t, env.store.Delete(ctx, r))

	var count int64
	require.NoError(t, env.db.Table("users").Where("id = ?", id).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStoreDeleteVanishedRow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.createUser(t, map[string]any{"name": "Alice"})
	require.NoError(t, env.db.Exec("DELETE FROM users").Error)

	assert.ErrorIs(t, env.store.Delete(ctx, r), ErrRecordNotFound)
	assert.False(t, r.Frozen())
}

func TestStoreSetSameMarshaledValueAfterReload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	m, err := NewModel("Account", "users")
	require.NoError(t, err)
	require.NoError(t, m.AttrEncrypted("ssn", WithKey(testKey(2)), WithMarshal(nil)))
	require.NoError(t, env.store.Register(ctx, m))

	r := env.store.New(m)
	require.NoError(t, r.Set("ssn", 42))
	require.NoError(t, r.Save(ctx))
	require.NoError(t, r.Reload(ctx))
	ciphertext := r.values["encrypted_ssn"]

	require.NoError(t, r.Set("ssn", 42))
	assert.False(t, r.Changed("ssn"))
	assert.Empty(t, r.ChangedAttributes())
	assert.Equal(t, ciphertext, r.values["encrypted_ssn"])

	require.NoError(t, r.Set("ssn", 43))
	assert.True(t, r.Changed("ssn"))
}

func TestStoreSaveVanishedRow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.createUser(t, map[string]any{"name": "Alice"})
	require.NoError(t, env.db.Exec("DELETE FROM users").Error)

	require.NoError(t, r.Set("name", "Bob"))
	assert.ErrorIs(t, r.Save(ctx), ErrRecordNotFound)
	assert.ErrorIs(t, r.Reload(ctx), ErrRecordNotFound)
}

func TestStoreSkipsVirtualAttributes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)
	m := newUserModel(t, WithVirtualAttributes("password_confirmation"))
	require.NoError(t, store.Register(ctx, m))

	r := store.New(m)
	require.NoError(t, r.AssignAttributes(map[string]any{"name": "Alice", "password_confirmation": "x"}))
	require.NoError(t, r.Save(ctx))
	assert.Equal(t, "x", r.MustGet("password_confirmation"))
}

func TestStoreObservability(t *testing.T) {
	metrics := NewInMemoryMetricsCollector()
	env := newTestEnv(t, WithObservabilityHook(NewMetricsObservabilityHook(metrics)))
	env.createUser(t, map[string]any{"name": "Alice"})

	success := map[string]string{"operation": "save", "model": "User", "status": "success"}
	assert.Equal(t, int64(1), metrics.GetCounter("encattr.process.succeeded", success))
	assert.Len(t, metrics.GetTimings("encattr.process.duration", success), 1)

	_, err := env.store.Find(context.Background(), env.model, "missing")
	require.Error(t, err)
	assert.Equal(t, int64(1), metrics.GetCounter("encattr.process.succeeded",
		map[string]string{"operation": "find", "model": "User", "status": "success"}))
}
