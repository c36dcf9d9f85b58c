package serialization

import "gopkg.in/yaml.v3"

// YAMLSerializer implements the Serializer interface using gopkg.in/yaml.v3.
// Mappings decode as map[string]any.
type YAMLSerializer struct{}

func (y YAMLSerializer) Serialize(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (y YAMLSerializer) Deserialize(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}
