// Package schema maps logical attribute names onto directory attributes for
// each schema flavor and object type, and declares the value converters that
// apply to them.
package schema

import (
	"fmt"
	"strings"
)

// OperationType tells converters which direction and validation rules apply.
type OperationType int

const (
	OperationRead OperationType = iota
	OperationCreate
	OperationModify
	OperationSearch
)

func (o OperationType) String() string {
	switch o {
	case OperationRead:
		return "read"
	case OperationCreate:
		return "create"
	case OperationModify:
		return "modify"
	case OperationSearch:
		return "search"
	default:
		return "unknown"
	}
}

// Attribute declares one logical attribute of an object type.
type Attribute struct {
	Name        string    // Logical name exposed on objects
	LDAPName    string    // Attribute name on the wire
	MultiValued bool      // Values are kept as a sequence
	Converter   Converter // Optional value converter
}

// Schema describes one object type within a schema flavor.
type Schema struct {
	Flavor        string
	ObjectType    string
	ObjectClasses []string

	attributes []Attribute
}

// New builds a schema. Attribute order is kept for Attributes.
func New(flavor, objectType string, objectClasses []string, attributes ...Attribute) *Schema {
	return &Schema{
		Flavor:        flavor,
		ObjectType:    objectType,
		ObjectClasses: objectClasses,
		attributes:    attributes,
	}
}

// Attribute finds an attribute by logical name, case-insensitively.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	for _, attr := range s.attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr, true
		}
	}
	return Attribute{}, false
}

// AttributeByLDAPName finds an attribute by wire name, case-insensitively.
func (s *Schema) AttributeByLDAPName(ldapName string) (Attribute, bool) {
	for _, attr := range s.attributes {
		if strings.EqualFold(attr.LDAPName, ldapName) {
			return attr, true
		}
	}
	return Attribute{}, false
}

// LDAPName returns the wire name mapped to a logical name.
func (s *Schema) LDAPName(name string) (string, bool) {
	attr, ok := s.Attribute(name)
	if !ok || attr.LDAPName == "" {
		return "", false
	}
	return attr.LDAPName, true
}

// Attributes returns a copy of the attribute declarations.
func (s *Schema) Attributes() []Attribute {
	return append([]Attribute(nil), s.attributes...)
}

// validate rejects schemas that declare the same logical name twice.
func (s *Schema) validate() error {
	if s.Flavor == "" || s.ObjectType == "" {
		return fmt.Errorf("schema flavor and object type are required")
	}

	names := make(map[string]bool, len(s.attributes))
	for _, attr := range s.attributes {
		if attr.Name == "" || attr.LDAPName == "" {
			return fmt.Errorf("attribute in %s/%s has an empty name", s.Flavor, s.ObjectType)
		}
		key := strings.ToLower(attr.Name)
		if names[key] {
			return fmt.Errorf("attribute %q declared twice in %s/%s", attr.Name, s.Flavor, s.ObjectType)
		}
		names[key] = true
	}

	return nil
}
