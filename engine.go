package encattr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"reflect"

	"github.com/hengadev/encattr/internal/crypto"
)

// Encrypt encrypts value for attr and returns the values of every shadow column
// of the attribute. r supplies per-record keys and conditions and may be nil
// for attributes that need neither.
func (m *Model) Encrypt(r *Record, attr string, value any) (map[string]any, error) {
	a, ok := m.attrs[attr]
	if !ok {
		return nil, NewUnknownAttributeError(m.name, attr)
	}

	out := make(map[string]any, 3)
	for _, col := range a.ShadowColumns() {
		out[col] = nil
	}

	if !a.shouldEncrypt(r) {
		out[a.Column] = value
		return out, nil
	}
	if value == nil {
		return out, nil
	}
	if s, isString := value.(string); isString && s == "" && !a.AllowEmptyValue {
		return out, nil
	}

	plaintext, err := a.toBytes(value)
	if err != nil {
		return nil, err
	}
	key, err := m.keyFor(r, a)
	if err != nil {
		return nil, err
	}

	switch a.Mode {
	case SingleIVAndSalt:
		ciphertext, err := m.cipher.EncryptDeterministic(plaintext, key)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute '%s': %w", ErrEncryptionFailed, attr, err)
		}
		out[a.Column] = a.encode(ciphertext)
	case PerAttributeIVAndSalt:
		sealed, err := m.cipher.EncryptWithIVAndSalt(plaintext, key)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute '%s': %w", ErrEncryptionFailed, attr, err)
		}
		out[a.Column] = a.encode(sealed.Ciphertext)
		out[a.IVColumn()] = a.encode(sealed.IV)
		out[a.SaltColumn()] = a.encode(sealed.Salt)
	default:
		sealed, err := m.cipher.EncryptWithIV(plaintext, key)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute '%s': %w", ErrEncryptionFailed, attr, err)
		}
		out[a.Column] = a.encode(sealed.Ciphertext)
		out[a.IVColumn()] = a.encode(sealed.IV)
	}
	return out, nil
}

// Decrypt reads the shadow columns of attr from stored and returns the plaintext.
// Blank ciphertext decrypts to nil.
func (m *Model) Decrypt(r *Record, attr string, stored map[string]any) (any, error) {
	a, ok := m.attrs[attr]
	if !ok {
		return nil, NewUnknownAttributeError(m.name, attr)
	}

	raw := stored[a.Column]
	if !a.shouldEncrypt(r) {
		return raw, nil
	}
	if isBlank(raw) {
		return nil, nil
	}

	ciphertext, err := a.decode(a.Column, raw)
	if err != nil {
		return nil, err
	}
	key, err := m.keyFor(r, a)
	if err != nil {
		return nil, err
	}

	var plaintext []byte
	switch a.Mode {
	case SingleIVAndSalt:
		plaintext, err = m.cipher.DecryptDeterministic(ciphertext, key)
	case PerAttributeIVAndSalt:
		var iv, salt []byte
		if iv, err = a.decode(a.IVColumn(), stored[a.IVColumn()]); err != nil {
			return nil, err
		}
		if salt, err = a.decode(a.SaltColumn(), stored[a.SaltColumn()]); err != nil {
			return nil, err
		}
		plaintext, err = m.cipher.DecryptWithIVAndSalt(ciphertext, key, iv, salt)
	default:
		var iv []byte
		if iv, err = a.decode(a.IVColumn(), stored[a.IVColumn()]); err != nil {
			return nil, err
		}
		plaintext, err = m.cipher.DecryptWithIV(ciphertext, key, iv)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: attribute '%s': %w", ErrDecryptionFailed, attr, err)
	}
	return a.fromBytes(plaintext)
}

// EncryptForQuery returns the shadow column and ciphertext matching value, for
// equality lookups on a searchable attribute.
func (m *Model) EncryptForQuery(attr string, value any) (string, any, error) {
	a, ok := m.attrs[attr]
	if !ok {
		return "", nil, NewUnknownAttributeError(m.name, attr)
	}
	if !a.HasStaticKey() {
		return "", nil, fmt.Errorf("%w: attribute '%s' uses a key function", ErrKeyNotStatic, attr)
	}
	if a.Mode != SingleIVAndSalt {
		return "", nil, fmt.Errorf("%w: attribute '%s' uses mode %s", ErrNotSearchable, attr, a.Mode)
	}
	cols, err := m.Encrypt(nil, attr, value)
	if err != nil {
		return "", nil, err
	}
	return a.Column, cols[a.Column], nil
}

func (m *Model) keyFor(r *Record, a *EncryptedAttribute) ([]byte, error) {
	var key []byte
	switch {
	case a.keyFunc != nil:
		if r == nil {
			return nil, NewKeyUnavailableError(a.Name, "key function needs a record")
		}
		k, err := a.keyFunc(r)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute '%s': %w", ErrKeyUnavailable, a.Name, err)
		}
		key = k
	case a.key != nil:
		key = a.key
	default:
		k, ok := m.resolvedKey(a.Name)
		if !ok {
			return nil, NewKeyUnavailableError(a.Name, fmt.Sprintf("key reference %q is not resolved", a.keyRef))
		}
		key = k
	}

	if len(key) == 0 {
		return nil, NewKeyUnavailableError(a.Name, "empty key")
	}
	if a.Mode == PerAttributeIV && len(key) != crypto.KeySize {
		return nil, NewKeyUnavailableError(a.Name,
			fmt.Sprintf("mode %s needs a %d byte key, got %d", a.Mode, crypto.KeySize, len(key)))
	}
	return key, nil
}

func (a *EncryptedAttribute) toBytes(value any) ([]byte, error) {
	if a.Serializer != nil {
		b, err := a.Serializer.Serialize(value)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute '%s': %w", ErrTypeConversion, a.Name, err)
		}
		return b, nil
	}
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	default:
		return nil, NewUnsupportedTypeError(a.Name, fmt.Sprintf("%T", value), Encrypt)
	}
}

// sameValue reports whether assigning value over current would store the same
// plaintext. Serialized attributes compare by their marshaled form, since a
// decrypted value may come back as a different Go type.
func (a *EncryptedAttribute) sameValue(current, value any) bool {
	if a.Serializer == nil || current == nil || value == nil {
		return reflect.DeepEqual(current, value)
	}
	want, err := a.Serializer.Serialize(current)
	if err != nil {
		return false
	}
	got, err := a.Serializer.Serialize(value)
	if err != nil {
		return false
	}
	return bytes.Equal(want, got)
}

func (a *EncryptedAttribute) fromBytes(plaintext []byte) (any, error) {
	if a.Serializer == nil {
		return string(plaintext), nil
	}
	var v any
	if err := a.Serializer.Deserialize(plaintext, &v); err != nil {
		return nil, fmt.Errorf("%w: attribute '%s': %w", ErrTypeConversion, a.Name, err)
	}
	return v, nil
}

func (a *EncryptedAttribute) encode(b []byte) any {
	if a.Encode {
		return base64.StdEncoding.EncodeToString(b)
	}
	return b
}

func (a *EncryptedAttribute) decode(column string, raw any) ([]byte, error) {
	var b []byte
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return nil, NewInvalidFormatError(column, "string or []byte", Decrypt)
	}
	if !a.Encode {
		return b, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, NewInvalidFormatError(column, "base64", Decrypt)
	}
	return decoded, nil
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	default:
		return false
	}
}
