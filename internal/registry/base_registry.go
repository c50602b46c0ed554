package registry

import (
	"fmt"
	"sync"
)

// Validator is a function that validates a key-value pair before registration
type Validator[K comparable, V any] func(key K, value V, existing map[K]V) error

// Base provides a generic, thread-safe registry implementation with
// built-in validation support that can be embedded by specific registry types
type Base[K comparable, V any] struct {
	mu            sync.RWMutex
	items         map[K]V
	validator     Validator[K, V]
	registryName  string
	keyDescriptor string // e.g., "type name", "alias", etc.
}

// NewBase creates a new base registry with the specified configuration
func NewBase[K comparable, V any](registryName, keyDesc string) *Base[K, V] {
	return &Base[K, V]{
		items:         make(map[K]V),
		registryName:  registryName,
		keyDescriptor: keyDesc,
	}
}

// SetValidator sets the validation function for this registry
func (r *Base[K, V]) SetValidator(validator Validator[K, V]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validator = validator
}

// Register adds an item to the registry with validation
func (r *Base[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.validator != nil {
		if err := r.validator(key, value, r.items); err != nil {
			return fmt.Errorf("%s registry: %w", r.registryName, err)
		}
	}

	r.items[key] = value
	return nil
}

// Get retrieves an item from the registry
func (r *Base[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, exists := r.items[key]
	return value, exists
}

// GetOrError retrieves an item or returns an error if not found
func (r *Base[K, V]) GetOrError(key K) (V, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, exists := r.items[key]
	if !exists {
		var zero V
		return zero, fmt.Errorf("%s '%v' is not registered", r.keyDescriptor, key)
	}
	return value, nil
}

// Has checks if a key exists in the registry
func (r *Base[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.items[key]
	return exists
}

// List returns all keys in the registry
func (r *Base[K, V]) List() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.items))
	for key := range r.items {
		keys = append(keys, key)
	}
	return keys
}

// GetAll returns a copy of all items in the registry
func (r *Base[K, V]) GetAll() map[K]V {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[K]V, len(r.items))
	for k, v := range r.items {
		result[k] = v
	}
	return result
}

// Size returns the number of items in the registry
func (r *Base[K, V]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

// ForEach applies a function to each item in the registry
func (r *Base[K, V]) ForEach(fn func(K, V)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for k, v := range r.items {
		fn(k, v)
	}
}

// Common validators for reuse across different registry types

// NotEmptyKeyValidator validates that a string key is not empty
func NotEmptyKeyValidator[V any](keyDesc string) Validator[string, V] {
	return func(key string, value V, existing map[string]V) error {
		if key == "" {
			return fmt.Errorf("%s cannot be empty", keyDesc)
		}
		return nil
	}
}

// NoDuplicateValidator validates that a key doesn't already exist
func NoDuplicateValidator[K comparable, V any](keyDesc string) Validator[K, V] {
	return func(key K, value V, existing map[K]V) error {
		if _, exists := existing[key]; exists {
			return fmt.Errorf("%s '%v' is already registered", keyDesc, key)
		}
		return nil
	}
}

// ChainValidators combines multiple validators into one
func ChainValidators[K comparable, V any](validators ...Validator[K, V]) Validator[K, V] {
	return func(key K, value V, existing map[K]V) error {
		for _, validator := range validators {
			if validator != nil {
				if err := validator(key, value, existing); err != nil {
					return err
				}
			}
		}
		return nil
	}
}
