package serialization

// Serializer defines an interface for converting attribute values to and from byte arrays.
// Implementations handle the encoding of values before encryption and the decoding
// after decryption.
type Serializer interface {
	// Serialize takes any value and returns its byte representation and an error
	// if serialization fails.
	Serialize(v any) ([]byte, error)

	// Deserialize takes a byte array and a pointer to the target value
	// and populates it with the deserialized data.
	Deserialize(data []byte, v any) error
}
