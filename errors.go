package encattr

import (
	"errors"
	"fmt"
)

var (
	// High-level service errors
	ErrKMSUnavailable           = errors.New("KMS service unavailable")
	ErrSecretStorageUnavailable = errors.New("secret storage unavailable")
	ErrInvalidConfiguration     = errors.New("invalid configuration")
	ErrAuthenticationFailed     = errors.New("authentication failed")
	ErrEncryptionFailed         = errors.New("encryption failed")
	ErrDecryptionFailed         = errors.New("decryption failed")
	ErrDatabaseUnavailable      = errors.New("database unavailable")

	// Key errors
	ErrKeyUnavailable = errors.New("encryption key unavailable")
	ErrKeyNotStatic   = errors.New("encryption key is not static")

	// Attribute errors
	ErrUnknownAttribute   = errors.New("unknown attribute")
	ErrDuplicateAttribute = errors.New("attribute already encrypted")
	ErrUnsupportedType    = errors.New("unsupported type")
	ErrNotSearchable      = errors.New("attribute is not searchable")

	// Record errors
	ErrFrozenRecord   = errors.New("record is frozen")
	ErrNotPersisted   = errors.New("record is not persisted")
	ErrRecordNotFound = errors.New("record not found")
	ErrModelNotBound  = errors.New("model is not registered with a store")

	// Dynamic finder errors
	ErrNoMethod      = errors.New("undefined method")
	ErrArgumentCount = errors.New("wrong number of arguments")

	// Conversion errors
	ErrTypeConversion = errors.New("type conversion failed")
	ErrInvalidFormat  = errors.New("invalid format")
)

// Action names the attribute operation an error happened in.
type Action int8

const (
	Unknown Action = iota
	Encrypt
	Decrypt
	Assign
	Find
)

func (a Action) String() string {
	switch a {
	case Encrypt:
		return "encrypt"
	case Decrypt:
		return "decrypt"
	case Assign:
		return "assign"
	case Find:
		return "find"
	default:
		return "unknown"
	}
}

func NewUnknownAttributeError(model, attr string) error {
	return fmt.Errorf("%w: '%s' for model %s", ErrUnknownAttribute, attr, model)
}

func NewUnsupportedTypeError(attr string, typeName string, action Action) error {
	return fmt.Errorf("%w: attribute '%s' has unsupported type %s for %s operation",
		ErrUnsupportedType, attr, typeName, action)
}

func NewTypeConversionError(attr string, typeName string, action Action) error {
	return fmt.Errorf("%w: failed to convert attribute '%s' to %s for %s operation",
		ErrTypeConversion, attr, typeName, action)
}

func NewInvalidFormatError(column string, formatName string, action Action) error {
	return fmt.Errorf("%w: column '%s' has invalid format for %s operation, expected %s",
		ErrInvalidFormat, column, action, formatName)
}

func NewKeyUnavailableError(attr string, details string) error {
	if details != "" {
		return fmt.Errorf("%w: attribute '%s': %s", ErrKeyUnavailable, attr, details)
	}
	return fmt.Errorf("%w: attribute '%s'", ErrKeyUnavailable, attr)
}

func NewArgumentCountError(method string, expected, got int) error {
	return fmt.Errorf("%w: %s expects %d, got %d", ErrArgumentCount, method, expected, got)
}

// IsRetryableError returns true if the error represents a transient failure that might succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrKMSUnavailable) ||
		errors.Is(err, ErrSecretStorageUnavailable) ||
		errors.Is(err, ErrDatabaseUnavailable)
}

// IsConfigurationError returns true if the error represents a configuration problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrDuplicateAttribute) ||
		errors.Is(err, ErrKeyNotStatic) ||
		errors.Is(err, ErrModelNotBound)
}

// IsAuthError returns true if the error represents an authentication problem.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

// IsOperationError returns true if the error represents a failure during encryption/decryption operations.
func IsOperationError(err error) bool {
	return errors.Is(err, ErrEncryptionFailed) ||
		errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrKeyUnavailable)
}

// IsValidationError returns true if the error represents a data validation problem.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrTypeConversion) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrUnknownAttribute)
}
