package serialization

import (
	"bytes"
	"encoding/json"
)

// JSONSerializer implements the Serializer interface using the encoding/json package.
// Numbers decode as json.Number so integer values survive a round trip unchanged.
type JSONSerializer struct{}

func (j JSONSerializer) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j JSONSerializer) Deserialize(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
