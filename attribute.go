package encattr

// EncryptedAttribute describes one attribute declared with Model.AttrEncrypted.
type EncryptedAttribute struct {
	// Name is the plaintext attribute exposed to application code.
	Name string
	// Column is the shadow column holding the ciphertext.
	Column string
	Mode   Mode
	// Encode stores ciphertext, IV and salt as base64 strings instead of raw bytes.
	Encode          bool
	AllowEmptyValue bool
	// Serializer, when set, marshals values before encryption.
	Serializer Serializer

	column     string
	prefix     string
	suffix     string
	key        []byte
	keyFunc    KeyFunc
	keyRef     string
	ifCond     Condition
	unlessCond Condition
}

// IVColumn returns the column storing the IV, or "" when the mode has none.
func (a *EncryptedAttribute) IVColumn() string {
	if a.Mode == SingleIVAndSalt {
		return ""
	}
	return a.Column + IVSuffix
}

// SaltColumn returns the column storing the salt, or "" when the mode has none.
func (a *EncryptedAttribute) SaltColumn() string {
	if a.Mode != PerAttributeIVAndSalt {
		return ""
	}
	return a.Column + SaltSuffix
}

// ShadowColumns lists every column written when the attribute is set.
func (a *EncryptedAttribute) ShadowColumns() []string {
	cols := []string{a.Column}
	if iv := a.IVColumn(); iv != "" {
		cols = append(cols, iv)
	}
	if salt := a.SaltColumn(); salt != "" {
		cols = append(cols, salt)
	}
	return cols
}

// KeyRef returns the named key reference, if any.
func (a *EncryptedAttribute) KeyRef() string {
	return a.keyRef
}

// HasStaticKey reports whether the key does not depend on the record.
func (a *EncryptedAttribute) HasStaticKey() bool {
	return a.keyFunc == nil
}

// Searchable reports whether equal plaintexts map to equal ciphertexts under
// a record-independent key, which dynamic finders rely on.
func (a *EncryptedAttribute) Searchable() bool {
	return a.Mode == SingleIVAndSalt && a.HasStaticKey()
}

// shouldEncrypt evaluates the If and Unless conditions. Without a record, as
// for query values, the attribute is always encrypted.
func (a *EncryptedAttribute) shouldEncrypt(r *Record) bool {
	if r == nil {
		return true
	}
	if a.ifCond != nil && !a.ifCond(r) {
		return false
	}
	if a.unlessCond != nil && a.unlessCond(r) {
		return false
	}
	return true
}
