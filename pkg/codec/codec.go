// Package codec serializes event and command payloads when they cross the
// store boundary. Payloads are tagged values: the type tag recorded on the
// envelope selects the Go type to decode into.
package codec

import (
	"errors"
	"fmt"
	"sync"
)

// Codec encodes a tagged payload value to bytes and back.
type Codec interface {
	// Encode serializes a payload value.
	Encode(v any) ([]byte, error)

	// Decode deserializes data into a new payload value for the given type
	// tag. It fails with a *DecodeError on an unknown tag or malformed input.
	Decode(typeTag string, data []byte) (any, error)
}

// DecodeError indicates that stored bytes could not be turned back into a
// payload value. On a historical event this means store corruption or a
// schema mismatch and must abort the affected operation.
type DecodeError struct {
	TypeTag string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.TypeTag, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a payload decode failure.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Registry maps payload type tags to factories producing zero values to
// decode into. Aggregate packages register their event and command variants
// at init time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() any
}

// NewRegistry creates an empty payload type registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() any)}
}

// Register registers a factory for a type tag. Registering the same tag
// twice panics: tags identify persisted data and must be unambiguous.
func (r *Registry) Register(typeTag string, factory func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeTag]; exists {
		panic(fmt.Sprintf("codec: type tag already registered: %s", typeTag))
	}
	r.factories[typeTag] = factory
}

// New returns a fresh payload value for the tag, or false if unregistered.
func (r *Registry) New(typeTag string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[typeTag]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// defaultRegistry backs the package-level Register used by aggregate
// packages in their init functions.
var defaultRegistry = NewRegistry()

// Register registers a payload factory in the default registry.
func Register(typeTag string, factory func() any) {
	defaultRegistry.Register(typeTag, factory)
}

// DefaultRegistry returns the process-wide payload registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
