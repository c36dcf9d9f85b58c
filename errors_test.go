package encattr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"KMS Unavailable", ErrKMSUnavailable, ErrKMSUnavailable},
		{"Unknown Attribute", NewUnknownAttributeError("User", "ssn"), ErrUnknownAttribute},
		{"Unsupported Type", NewUnsupportedTypeError("ssn", "int", Encrypt), ErrUnsupportedType},
		{"Type Conversion", NewTypeConversionError("ssn", "string", Decrypt), ErrTypeConversion},
		{"Invalid Format", NewInvalidFormatError("encrypted_ssn", "base64", Decrypt), ErrInvalidFormat},
		{"Key Unavailable", NewKeyUnavailableError("ssn", ""), ErrKeyUnavailable},
		{"Argument Count", NewArgumentCountError("find_by_email", 1, 2), ErrArgumentCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.expected))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.EqualError(t, NewUnknownAttributeError("User", "nick"), "unknown attribute: 'nick' for model User")
	assert.EqualError(t, NewArgumentCountError("find_by_email", 1, 2), "wrong number of arguments: find_by_email expects 1, got 2")
	assert.EqualError(t, NewKeyUnavailableError("ssn", "empty key"), "encryption key unavailable: attribute 'ssn': empty key")
	assert.Equal(t, "assign", Assign.String())
	assert.Equal(t, "unknown", Action(42).String())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		isRetryable  bool
		isConfig     bool
		isAuth       bool
		isOperation  bool
		isValidation bool
	}{
		{name: "KMS Unavailable", err: fmt.Errorf("test: %w", ErrKMSUnavailable), isRetryable: true},
		{name: "Database Unavailable", err: fmt.Errorf("test: %w", ErrDatabaseUnavailable), isRetryable: true},
		{name: "Key Not Static", err: fmt.Errorf("test: %w", ErrKeyNotStatic), isConfig: true},
		{name: "Duplicate Attribute", err: fmt.Errorf("test: %w", ErrDuplicateAttribute), isConfig: true},
		{name: "Authentication Failed", err: fmt.Errorf("test: %w", ErrAuthenticationFailed), isAuth: true},
		{name: "Decryption Failed", err: fmt.Errorf("test: %w", ErrDecryptionFailed), isOperation: true},
		{name: "Unknown Attribute", err: NewUnknownAttributeError("User", "x"), isValidation: true},
		{name: "Record Not Found", err: ErrRecordNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isRetryable, IsRetryableError(tt.err))
			assert.Equal(t, tt.isConfig, IsConfigurationError(tt.err))
			assert.Equal(t, tt.isAuth, IsAuthError(tt.err))
			assert.Equal(t, tt.isOperation, IsOperationError(tt.err))
			assert.Equal(t, tt.isValidation, IsValidationError(tt.err))
		})
	}
}
