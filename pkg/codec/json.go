package codec

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// JSON is a Codec backed by json-iterator.
type JSON struct {
	registry *Registry
	api      jsoniter.API
}

// NewJSON creates a JSON codec over the given registry.
func NewJSON(registry *Registry) *JSON {
	return &JSON{
		registry: registry,
		api:      jsoniter.ConfigFastest,
	}
}

// NewDefaultJSON creates a JSON codec over the default registry.
func NewDefaultJSON() *JSON {
	return NewJSON(DefaultRegistry())
}

// Encode serializes a payload value to JSON.
func (c *JSON) Encode(v any) ([]byte, error) {
	data, err := c.api.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// Decode deserializes JSON into a new payload value for the type tag.
func (c *JSON) Decode(typeTag string, data []byte) (any, error) {
	payload, ok := c.registry.New(typeTag)
	if !ok {
		return nil, &DecodeError{TypeTag: typeTag, Err: fmt.Errorf("unregistered type tag")}
	}

	if err := c.api.Unmarshal(data, payload); err != nil {
		return nil, &DecodeError{TypeTag: typeTag, Err: err}
	}

	return payload, nil
}
