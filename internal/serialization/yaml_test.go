package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLSerializer(t *testing.T) {
	s := YAMLSerializer{}

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{name: "string", value: "hello", want: "hello"},
		{name: "integer", value: 42, want: 42},
		{name: "map", value: map[string]any{"a": "b", "n": 1}, want: map[string]any{"a": "b", "n": 1}},
		{name: "slice", value: []string{"x", "y"}, want: []any{"x", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.Serialize(tt.value)
			require.NoError(t, err)

			var got any
			require.NoError(t, s.Deserialize(data, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestYAMLSerializer_DeserializeInvalid(t *testing.T) {
	var got any
	err := YAMLSerializer{}.Deserialize([]byte("a: [unterminated"), &got)
	assert.Error(t, err)
}
