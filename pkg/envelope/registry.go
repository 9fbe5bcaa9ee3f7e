package envelope

import (
	"encoding/json"
	"sync"

	"github.com/chris-alexander-pop/streamwork/pkg/errors"
)

// DecodeFunc unmarshals a payload into its concrete Go type and returns it
// as an interface{} for the dispatcher to type-switch on.
type DecodeFunc func(payload json.RawMessage) (interface{}, error)

// Registry maps a message_type_tag (the out-of-band "envelope_type" header
// carried on the transport message) to the decode function for that type.
//
// Unlike the source's module-init side effects, a Registry is built
// explicitly at process start with Register calls and handed to the
// workers — there is no package-level mutable state here.
type Registry struct {
	mu      sync.RWMutex
	decoder map[string]DecodeFunc
}

// NewRegistry returns an empty type registry.
func NewRegistry() *Registry {
	return &Registry{decoder: make(map[string]DecodeFunc)}
}

// Register associates typeTag with decode. Calling Register twice for the
// same tag overwrites the previous entry; callers register each tag once,
// during startup wiring.
func (r *Registry) Register(typeTag string, decode DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoder[typeTag] = decode
}

// Decode looks up typeTag and decodes payload with its registered function.
func (r *Registry) Decode(typeTag string, payload json.RawMessage) (interface{}, error) {
	r.mu.RLock()
	decode, ok := r.decoder[typeTag]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.InvalidArgument("no envelope type registered for tag: "+typeTag, nil)
	}
	return decode(payload)
}

// Has reports whether typeTag has a registered decoder.
func (r *Registry) Has(typeTag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoder[typeTag]
	return ok
}

// RegisterJSON is a convenience for the common case: decode payload
// directly into a *T via encoding/json, returning the pointer as interface{}.
func RegisterJSON[T any](r *Registry, typeTag string) {
	r.Register(typeTag, func(payload json.RawMessage) (interface{}, error) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, errors.Wrap(err, "failed to decode envelope payload for tag: "+typeTag)
		}
		return &v, nil
	})
}
