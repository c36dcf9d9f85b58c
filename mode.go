package encattr

import "fmt"

// Mode selects how an attribute's IV and key are derived.
type Mode int

const (
	// PerAttributeIV stores a random IV next to every ciphertext.
	PerAttributeIV Mode = iota
	// PerAttributeIVAndSalt stores a random IV and a salt used to stretch the key.
	PerAttributeIVAndSalt
	// SingleIVAndSalt encrypts deterministically so the shadow column can be
	// queried by equality.
	SingleIVAndSalt
)

func (m Mode) String() string {
	switch m {
	case PerAttributeIV:
		return "per_attribute_iv"
	case PerAttributeIVAndSalt:
		return "per_attribute_iv_and_salt"
	case SingleIVAndSalt:
		return "single_iv_and_salt"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses the string form of a Mode. The empty string is PerAttributeIV.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "per_attribute_iv":
		return PerAttributeIV, nil
	case "per_attribute_iv_and_salt":
		return PerAttributeIVAndSalt, nil
	case "single_iv_and_salt":
		return SingleIVAndSalt, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfiguration, s)
	}
}
