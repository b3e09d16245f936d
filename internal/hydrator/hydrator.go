// Package hydrator converts between directory wire entries and domain
// representations, applying schema name mappings and value converters.
//
// Hydrators are configured before use (schemas, operation type, selected
// attributes) and hold no per-call state. Reconfiguring a hydrator while
// another goroutine is hydrating with it is not supported; create one per
// concurrent operation.
package hydrator

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"

	ldapclient "github.com/isometry/ldapom/internal/ldap"
	"github.com/isometry/ldapom/internal/object"
	"github.com/isometry/ldapom/internal/schema"
)

// Entry is a wire entry: attribute name to raw values. The entry DN is held
// under the "dn" key.
type Entry map[string][]string

// EntryFromLDAP converts a go-ldap search entry.
func EntryFromLDAP(e *ldap.Entry) Entry {
	entry := make(Entry, len(e.Attributes)+1)
	for _, attr := range e.Attributes {
		entry[attr.Name] = slices.Clone(attr.Values)
	}
	if e.DN != "" {
		entry[object.AttributeDN] = []string{e.DN}
	}
	return entry
}

// Hydrator converts wire entries to T and T back to wire changes.
type Hydrator[T any] interface {
	HydrateFromLDAP(entry Entry) (T, error)
	HydrateAllFromLDAP(entries []Entry) iter.Seq2[T, error]
	HydrateToLDAP(v T) ([]ldap.Change, error)

	SetSchemas(schemas ...*schema.Schema)
	Schemas() []*schema.Schema
	SetSelectedAttributes(names ...string)
	SelectedAttributes() []string
	SetOperationType(op schema.OperationType)
	OperationType() schema.OperationType
}

// Config is the configuration shared by hydrator implementations.
type Config struct {
	schemas  []*schema.Schema
	selected []string
	op       schema.OperationType
	logger   ldapclient.Logger
}

// SetSchemas replaces the schemas in effect. Order matters: the first schema
// mapping an attribute wins. No schemas means raw passthrough.
func (c *Config) SetSchemas(schemas ...*schema.Schema) {
	c.schemas = slices.Clone(schemas)
}

func (c *Config) Schemas() []*schema.Schema {
	return slices.Clone(c.schemas)
}

// SetSelectedAttributes records the attribute names exactly as a query
// requested them. Hydrated attributes matching one of them take its casing.
func (c *Config) SetSelectedAttributes(names ...string) {
	c.selected = slices.Clone(names)
}

func (c *Config) SelectedAttributes() []string {
	return slices.Clone(c.selected)
}

func (c *Config) SetOperationType(op schema.OperationType) {
	c.op = op
}

func (c *Config) OperationType() schema.OperationType {
	return c.op
}

// SetLogger sets where conversion warnings are logged.
func (c *Config) SetLogger(logger ldapclient.Logger) {
	c.logger = logger
}

func (c *Config) log() ldapclient.Logger {
	if c.logger == nil {
		c.logger = ldapclient.NewTFLogger(context.Background(), ldapclient.SubsystemHydrator)
	}
	return c.logger
}

// attribute resolves a logical name against the schemas, first match wins.
func (c *Config) attribute(name string) (schema.Attribute, bool) {
	for _, s := range c.schemas {
		if attr, ok := s.Attribute(name); ok {
			return attr, true
		}
	}
	return schema.Attribute{}, false
}

// attributeByLDAPName resolves a wire name against the schemas, first match wins.
func (c *Config) attributeByLDAPName(ldapName string) (schema.Attribute, bool) {
	for _, s := range c.schemas {
		if attr, ok := s.AttributeByLDAPName(ldapName); ok {
			return attr, true
		}
	}
	return schema.Attribute{}, false
}

// displayName applies the selected-attribute casing to an attribute known
// by logical and wire names.
func (c *Config) displayName(logical, wire string) string {
	for _, candidate := range []string{logical, wire} {
		for _, sel := range c.selected {
			if strings.EqualFold(sel, candidate) {
				return sel
			}
		}
	}
	return logical
}

// fromLDAP converts a wire entry to domain attribute values.
func (c *Config) fromLDAP(entry Entry) (map[string]any, error) {
	attrs := make(map[string]any, len(entry))

	for wireName, values := range entry {
		if strings.EqualFold(wireName, object.AttributeDN) {
			if len(values) > 0 {
				attrs[object.AttributeDN] = values[0]
			}
			continue
		}

		attr, mapped := c.attributeByLDAPName(wireName)
		if !mapped {
			attrs[c.displayName(wireName, wireName)] = slices.Clone(values)
			continue
		}

		value, err := c.valueFromLDAP(attr, values)
		if err != nil {
			return nil, err
		}
		attrs[c.displayName(attr.Name, wireName)] = value
	}

	return attrs, nil
}

// valueFromLDAP collapses single-valued attributes to their first value and
// applies the attribute converter.
func (c *Config) valueFromLDAP(attr schema.Attribute, values []string) (any, error) {
	if !attr.MultiValued {
		if len(values) == 0 {
			return nil, nil
		}
		if len(values) > 1 {
			c.log().Warn("Single-valued attribute has multiple values, keeping the first", map[string]any{
				"attribute":   attr.Name,
				"ldap_name":   attr.LDAPName,
				"value_count": len(values),
			})
		}
		return convertFromLDAP(attr, values[0])
	}

	out := make([]any, 0, len(values))
	for _, v := range values {
		converted, err := convertFromLDAP(attr, v)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

func convertFromLDAP(attr schema.Attribute, value string) (any, error) {
	if attr.Converter == nil {
		return value, nil
	}
	converted, err := attr.Converter.FromLDAP(value)
	if err != nil {
		return nil, ldapclient.NewConversionError("hydrate_from_ldap", attr.Name, err)
	}
	return converted, nil
}

// wireName returns the wire name and declaration for a logical name. A name
// hydrated under its wire casing resolves by wire name. Unmapped names are
// used verbatim with no converter.
func (c *Config) wireName(name string) (string, schema.Attribute) {
	if attr, ok := c.attribute(name); ok {
		return attr.LDAPName, attr
	}
	if attr, ok := c.attributeByLDAPName(name); ok {
		return attr.LDAPName, attr
	}
	return name, schema.Attribute{Name: name, LDAPName: name}
}

// valuesToLDAP converts domain values to wire strings for the configured operation.
func (c *Config) valuesToLDAP(attr schema.Attribute, values []any) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, err := c.valueToLDAP(attr, v)
		if err != nil {
			return nil, ldapclient.NewConversionError("hydrate_to_ldap", attr.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Config) valueToLDAP(attr schema.Attribute, value any) (string, error) {
	if attr.Converter != nil {
		s, err := attr.Converter.ToLDAP(value, c.op)
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.op, err)
		}
		return s, nil
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// objectClasses collects the object classes declared by the schemas, in order.
func (c *Config) objectClasses() []string {
	var classes []string
	for _, s := range c.schemas {
		for _, oc := range s.ObjectClasses {
			if !slices.ContainsFunc(classes, func(have string) bool { return strings.EqualFold(have, oc) }) {
				classes = append(classes, oc)
			}
		}
	}
	return classes
}

// seq adapts a per-entry hydrate function to a lazy, restartable sequence.
// Iteration stops after the first error.
func seq[T any](entries []Entry, hydrate func(Entry) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, entry := range entries {
			v, err := hydrate(entry)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}
