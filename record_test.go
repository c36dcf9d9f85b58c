package encattr

import (
	"context"
	"testing"

	"github.com/hengadev/errsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSetGet(t *testing.T) {
	m := newUserModel(t)
	r := m.NewRecord()

	require.NoError(t, r.Set("ssn", "123-45-6789"))
	assert.NotEmpty(t, r.values["encrypted_ssn"])
	assert.NotEmpty(t, r.values["encrypted_ssn_iv"])
	assert.NotContains(t, r.values, "ssn")

	v, err := r.Get("ssn")
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", v)
	assert.Equal(t, "123-45-6789", r.MustGet("ssn"))

	v, err = r.Get("email")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRecordSetSameValueIsNoOp(t *testing.T) {
	m := newUserModel(t)
	r := m.NewRecord()

	require.NoError(t, r.Set("ssn", "123"))
	ciphertext := r.values["encrypted_ssn"]
	iv := r.values["encrypted_ssn_iv"]

	require.NoError(t, r.Set("ssn", "123"))
	assert.Equal(t, ciphertext, r.values["encrypted_ssn"])
	assert.Equal(t, iv, r.values["encrypted_ssn_iv"])

	require.NoError(t, r.Set("ssn", "456"))
	assert.NotEqual(t, ciphertext, r.values["encrypted_ssn"])
}

func TestRecordDecryptsLazilyAndCaches(t *testing.T) {
	m := newUserModel(t)
	cols, err := m.Encrypt(nil, "ssn", "123")
	require.NoError(t, err)

	r := newLoadedRecord(m, nil, cols, nil)
	assert.NotContains(t, r.plain, "ssn")

	v, err := r.Get("ssn")
	require.NoError(t, err)
	assert.Equal(t, "123", v)
	assert.Equal(t, "123", r.plain["ssn"])
}

func TestRecordShadowColumnWriteInvalidatesCache(t *testing.T) {
	m := newUserModel(t)
	r := m.NewRecord()
	require.NoError(t, r.Set("ssn", "old"))

	fresh, err := m.Encrypt(nil, "ssn", "new")
	require.NoError(t, err)
	for col, v := range fresh {
		require.NoError(t, r.Set(col, v))
	}

	v, err := r.Get("ssn")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestRecordFrozen(t *testing.T) {
	m := newUserModel(t)
	cols, err := m.Encrypt(nil, "ssn", "123")
	require.NoError(t, err)
	r := newLoadedRecord(m, nil, cols, nil)
	r.Freeze()
	assert.True(t, r.Frozen())

	v, err := r.Get("ssn")
	require.NoError(t, err)
	assert.Equal(t, "123", v)
	assert.Empty(t, r.plain, "frozen records do not cache plaintext")

	assert.ErrorIs(t, r.Set("ssn", "456"), ErrFrozenRecord)
	assert.ErrorIs(t, r.Restore("ssn"), ErrFrozenRecord)
}

func TestRecordPartialLoad(t *testing.T) {
	m := newUserModel(t)
	m.setColumns([]string{"id", "name", "encrypted_email", "encrypted_ssn", "encrypted_ssn_iv"})

	r := newLoadedRecord(m, nil, map[string]any{"id": "1", "name": "Alice"}, []string{"id", "name"})
	v, err := r.Get("ssn")
	require.NoError(t, err)
	assert.Nil(t, v)

	// notes has no column in the table, so the partial load check does not apply.
	v, err = r.Get("notes")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, r.Set("ssn", "123"))
	v, err = r.Get("ssn")
	require.NoError(t, err)
	assert.Equal(t, "123", v)
}

func TestRecordUnknownAttribute(t *testing.T) {
	m := newUserModel(t)
	m.setColumns([]string{"id", "name", "encrypted_email"})
	r := m.NewRecord()

	assert.ErrorIs(t, r.Set("nickname", "x"), ErrUnknownAttribute)
	_, err := r.Get("nickname")
	assert.ErrorIs(t, err, ErrUnknownAttribute)
	assert.ErrorIs(t, r.Restore("nickname"), ErrUnknownAttribute)
	assert.NoError(t, r.Set("name", "Alice"))
}

func TestRecordPresent(t *testing.T) {
	m := newUserModel(t)
	r := m.NewRecord()

	assert.False(t, r.Present("ssn"))
	require.NoError(t, r.Set("ssn", "123"))
	assert.True(t, r.Present("ssn"))
	require.NoError(t, r.Set("ssn", ""))
	assert.False(t, r.Present("ssn"))

	assert.False(t, r.Present("name"))
	require.NoError(t, r.Set("name", "   "))
	assert.False(t, r.Present("name"))
	require.NoError(t, r.Set("name", "Alice"))
	assert.True(t, r.Present("name"))
}

func TestRecordAttributesHidesPlaintext(t *testing.T) {
	m := newUserModel(t)
	r := m.NewRecord()
	require.NoError(t, r.Set("name", "Alice"))
	require.NoError(t, r.Set("ssn", "123"))
	require.NoError(t, r.Set("email", "alice@example.com"))

	attrs, err := r.Attributes()
	require.NoError(t, err)
	assert.Equal(t, "Alice", attrs["name"])
	assert.Contains(t, attrs, "encrypted_ssn")
	assert.Contains(t, attrs, "encrypted_email")
	for _, a := range m.EncryptedAttributes() {
		assert.NotContains(t, attrs, a.Name)
	}
	assert.Contains(t, r.plain, "notes", "Attributes loads every encrypted attribute")
}

func TestRecordAssignAttributesOrder(t *testing.T) {
	m, err := NewModel("User", "users")
	require.NoError(t, err)

	var seen []any
	require.NoError(t, m.AttrEncrypted("ssn", WithKeyFunc(func(r *Record) ([]byte, error) {
		seed, err := r.Get("key_seed")
		seen = append(seen, seed)
		if err != nil || seed == nil {
			return nil, ErrKeyUnavailable
		}
		return testKey(seed.(string)[0]), nil
	})))

	r := m.NewRecord()
	require.NoError(t, r.AssignAttributes(map[string]any{
		"ssn":      "123",
		"key_seed": "z",
	}))
	assert.Equal(t, "z", seen[0], "plain attributes are assigned before encrypted ones")

	v, err := r.Get("ssn")
	require.NoError(t, err)
	assert.Equal(t, "123", v)
}

func TestRecordAssignAttributesCollectsErrors(t *testing.T) {
	m := newUserModel(t)
	m.setColumns([]string{"id", "name", "encrypted_email", "encrypted_ssn", "encrypted_ssn_iv"})
	r := m.NewRecord()

	err := r.SetAttributes(map[string]any{
		"name":     "Alice",
		"nickname": "Al",
		"ssn":      42,
	})
	require.Error(t, err)

	errs, ok := err.(errsx.Map)
	require.True(t, ok, "expected error to be of type errsx.Map")
	assert.Len(t, errs, 2)
	for _, key := range []string{"assign 'nickname'", "assign 'ssn'"} {
		if _, ok := errs[key]; !ok {
			t.Errorf("expected key '%s' in errsx.Map", key)
		}
	}
	assert.Contains(t, err.Error(), ErrUnknownAttribute.Error())
	assert.Contains(t, err.Error(), ErrUnsupportedType.Error())

	v, err := r.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Alice", v, "valid keys are still assigned")

	assert.NoError(t, r.AssignAttributes(nil))
	assert.NoError(t, r.AssignAttributes(map[string]any{}))
}

func TestRecordDirtyTracking(t *testing.T) {
	m := newUserModel(t)
	cols, err := m.Encrypt(nil, "ssn", "old")
	require.NoError(t, err)
	cols["id"] = "1"
	cols["name"] = "Alice"
	r := newLoadedRecord(m, nil, cols, nil)

	assert.False(t, r.Changed("ssn"))
	assert.Empty(t, r.ChangedAttributes())

	require.NoError(t, r.Set("ssn", "new"))
	require.NoError(t, r.Set("name", "Bob"))
	assert.True(t, r.Changed("ssn"))
	assert.Equal(t, []string{"name", "ssn"}, r.ChangedAttributes())

	was, err := r.Was("ssn")
	require.NoError(t, err)
	assert.Equal(t, "old", was)
	inDB, err := r.InDatabase("name")
	require.NoError(t, err)
	assert.Equal(t, "Alice", inDB)

	require.NoError(t, r.Restore("ssn"))
	assert.False(t, r.Changed("ssn"))
	v, err := r.Get("ssn")
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	require.NoError(t, r.Restore("name"))
	assert.Empty(t, r.ChangedAttributes())
}

func TestRecordWithoutStore(t *testing.T) {
	m := newUserModel(t)
	r := m.NewRecord()
	assert.True(t, r.IsNew())
	assert.Nil(t, r.ID())
	assert.Same(t, m, r.Model())

	assert.ErrorIs(t, r.Save(context.Background()), ErrModelNotBound)
	assert.ErrorIs(t, r.Reload(context.Background()), ErrNotPersisted)
}
