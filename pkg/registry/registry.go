// Package registry keeps the set of extractors and picks one per URL.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"stream-resolver-go/pkg/interfaces"
)

// ExtractorRegistry manages URL extractors.
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors []interfaces.Extractor
	byName     map[string]interfaces.Extractor
	fallback   interfaces.Extractor
}

// NewExtractorRegistry creates a new extractor registry.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		extractors: make([]interfaces.Extractor, 0),
		byName:     make(map[string]interfaces.Extractor),
	}
}

// Register adds an extractor. Registering a name again replaces the earlier
// extractor in its original matching position.
func (r *ExtractorRegistry) Register(extractor interfaces.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := extractor.Name()
	if _, exists := r.byName[name]; exists {
		for i, e := range r.extractors {
			if e.Name() == name {
				r.extractors[i] = extractor
			}
		}
	} else {
		r.extractors = append(r.extractors, extractor)
	}
	r.byName[name] = extractor
}

// SetFallback sets the fallback extractor used when no extractor matches.
func (r *ExtractorRegistry) SetFallback(extractor interfaces.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = extractor
}

// Get returns the appropriate extractor for the given URL.
func (r *ExtractorRegistry) Get(url string) interfaces.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.extractors {
		if e.CanExtract(url) {
			return e
		}
	}
	return r.fallback
}

// GetByName returns an extractor by its name. The fallback answers to its
// own name and to any unknown one.
func (r *ExtractorRegistry) GetByName(name string) interfaces.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.byName[name]; ok {
		return e
	}
	return r.fallback
}

// Names returns the registered extractor names in registration order.
func (r *ExtractorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	return names
}

// All returns all registered extractors.
func (r *ExtractorRegistry) All() []interfaces.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]interfaces.Extractor, len(r.extractors))
	copy(result, r.extractors)
	return result
}

// Close closes every extractor, including the fallback, and joins their errors.
func (r *ExtractorRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.extractors {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	if r.fallback != nil {
		if err := r.fallback.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.fallback.Name(), err))
		}
	}
	return errors.Join(errs...)
}
