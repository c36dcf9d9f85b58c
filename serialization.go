package encattr

import "github.com/hengadev/encattr/internal/serialization"

// Serializer converts attribute values to bytes before encryption and back
// after decryption. See WithMarshal.
type Serializer = serialization.Serializer

// JSONSerializer is the default Serializer used by WithMarshal(nil).
type JSONSerializer = serialization.JSONSerializer

// YAMLSerializer marshals values as YAML.
type YAMLSerializer = serialization.YAMLSerializer
