package schema

import (
	"fmt"
	"strings"
	"sync"

	ldapclient "github.com/isometry/ldapom/internal/ldap"
)

// Lookup resolves the schema for an object type within a flavor.
type Lookup interface {
	Get(flavor, objectType string) (*Schema, error)
}

type registryKey struct {
	flavor     string
	objectType string
}

// Registry is an in-memory Lookup. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[registryKey]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[registryKey]*Schema)}
}

func keyFor(flavor, objectType string) registryKey {
	return registryKey{
		flavor:     strings.ToLower(flavor),
		objectType: strings.ToLower(objectType),
	}
}

// Register adds s. A (flavor, type) pair can only be registered once.
func (r *Registry) Register(s *Schema) error {
	if s == nil {
		return fmt.Errorf("schema cannot be nil")
	}

	if err := s.validate(); err != nil {
		return ldapclient.NewSchemaError("register_schema", "", err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyFor(s.Flavor, s.ObjectType)
	if _, exists := r.schemas[key]; exists {
		return ldapclient.NewSchemaError("register_schema", "",
			fmt.Sprintf("schema %s/%s is already registered", s.Flavor, s.ObjectType))
	}
	r.schemas[key] = s

	return nil
}

// MustRegister is Register for static schema tables.
func (r *Registry) MustRegister(schemas ...*Schema) *Registry {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Get implements Lookup.
func (r *Registry) Get(flavor, objectType string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[keyFor(flavor, objectType)]
	if !ok {
		return nil, ldapclient.NewSchemaError("get_schema", "",
			fmt.Sprintf("no schema registered for type %q in flavor %q", objectType, flavor))
	}

	return s, nil
}
