package encattr

import (
	"fmt"
	"log/slog"
)

// AttributeOption configures an encrypted attribute declared with Model.AttrEncrypted.
type AttributeOption func(a *EncryptedAttribute) error

// KeyFunc computes the key for an attribute from the record being encrypted.
type KeyFunc func(r *Record) ([]byte, error)

// Condition decides per record whether an attribute is encrypted.
type Condition func(r *Record) bool

// WithAttribute overrides the shadow column name. Prefix and suffix are ignored.
func WithAttribute(column string) AttributeOption {
	return func(a *EncryptedAttribute) error {
		if column == "" {
			return fmt.Errorf("%w: shadow column name cannot be empty", ErrInvalidConfiguration)
		}
		a.column = column
		return nil
	}
}

func WithPrefix(prefix string) AttributeOption {
	return func(a *EncryptedAttribute) error {
		a.prefix = prefix
		return nil
	}
}

func WithSuffix(suffix string) AttributeOption {
	return func(a *EncryptedAttribute) error {
		a.suffix = suffix
		return nil
	}
}

func WithMode(mode Mode) AttributeOption {
	return func(a *EncryptedAttribute) error {
		if mode < PerAttributeIV || mode > SingleIVAndSalt {
			return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfiguration, int(mode))
		}
		a.Mode = mode
		return nil
	}
}

// WithKey sets a static key.
func WithKey(key []byte) AttributeOption {
	return func(a *EncryptedAttribute) error {
		if len(key) == 0 {
			return fmt.Errorf("%w: key cannot be empty", ErrInvalidConfiguration)
		}
		a.key = append([]byte(nil), key...)
		a.keyFunc = nil
		a.keyRef = ""
		return nil
	}
}

// WithKeyFunc derives the key from the record. Attributes using a key function
// cannot be used in dynamic finders.
func WithKeyFunc(fn KeyFunc) AttributeOption {
	return func(a *EncryptedAttribute) error {
		if fn == nil {
			return fmt.Errorf("%w: key function cannot be nil", ErrInvalidConfiguration)
		}
		a.keyFunc = fn
		a.key = nil
		a.keyRef = ""
		return nil
	}
}

// WithKeyRef names a key resolved by the store's KeyResolver at registration.
func WithKeyRef(ref string) AttributeOption {
	return func(a *EncryptedAttribute) error {
		if ref == "" {
			return fmt.Errorf("%w: key reference cannot be empty", ErrInvalidConfiguration)
		}
		a.keyRef = ref
		a.key = nil
		a.keyFunc = nil
		return nil
	}
}

// WithEncode toggles base64 encoding of the shadow columns.
func WithEncode(encode bool) AttributeOption {
	return func(a *EncryptedAttribute) error {
		a.Encode = encode
		return nil
	}
}

// WithMarshal serializes values before encryption, allowing non-string attributes.
func WithMarshal(s Serializer) AttributeOption {
	return func(a *EncryptedAttribute) error {
		if s == nil {
			s = JSONSerializer{}
		}
		a.Serializer = s
		return nil
	}
}

// WithAllowEmptyValue encrypts empty strings instead of storing nil.
func WithAllowEmptyValue() AttributeOption {
	return func(a *EncryptedAttribute) error {
		a.AllowEmptyValue = true
		return nil
	}
}

// WithIf encrypts only when cond returns true; otherwise the value is stored as is.
func WithIf(cond Condition) AttributeOption {
	return func(a *EncryptedAttribute) error {
		a.ifCond = cond
		return nil
	}
}

// WithUnless encrypts only when cond returns false; otherwise the value is stored as is.
func WithUnless(cond Condition) AttributeOption {
	return func(a *EncryptedAttribute) error {
		a.unlessCond = cond
		return nil
	}
}

// ModelOption configures a Model.
type ModelOption func(m *Model) error

func WithPrimaryKey(column string) ModelOption {
	return func(m *Model) error {
		if column == "" {
			return fmt.Errorf("%w: primary key cannot be empty", ErrInvalidConfiguration)
		}
		m.primaryKey = column
		return nil
	}
}

func WithDefaultPrefix(prefix string) ModelOption {
	return func(m *Model) error {
		m.defaultPrefix = prefix
		return nil
	}
}

func WithDefaultSuffix(suffix string) ModelOption {
	return func(m *Model) error {
		m.defaultSuffix = suffix
		return nil
	}
}

func WithDefaultMode(mode Mode) ModelOption {
	return func(m *Model) error {
		if mode < PerAttributeIV || mode > SingleIVAndSalt {
			return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfiguration, int(mode))
		}
		m.defaultMode = mode
		return nil
	}
}

func WithLogger(logger *slog.Logger) ModelOption {
	return func(m *Model) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfiguration)
		}
		m.logger = logger
		return nil
	}
}

// WithVirtualAttributes declares attributes that are accepted by Set and
// AssignAttributes without being table columns.
func WithVirtualAttributes(names ...string) ModelOption {
	return func(m *Model) error {
		for _, name := range names {
			m.virtual[name] = true
		}
		return nil
	}
}
