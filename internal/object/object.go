// Package object holds the in-memory representation of a directory entry and
// the change log its mutators record.
//
// Objects are not safe for concurrent mutation.
package object

import (
	"reflect"
	"slices"
	"strings"
)

// AttributeDN is the attribute holding the entry's distinguished name.
const AttributeDN = "dn"

type attribute struct {
	name  string // casing as first set
	value any
}

// Object is one directory entry. Attribute names are case-insensitive.
type Object struct {
	objectType string
	attrs      map[string]*attribute
	batch      *Batch
}

// New creates an object of objectType (empty for raw mode) holding attrs.
// attrs are loaded as-is and record no changes.
func New(objectType string, attrs map[string]any) *Object {
	o := &Object{
		objectType: objectType,
		attrs:      make(map[string]*attribute, len(attrs)),
		batch:      NewBatch(""),
	}
	o.Refresh(attrs)
	return o
}

// Type returns the schema type, or "" for raw objects.
func (o *Object) Type() string {
	return o.objectType
}

// DN returns the distinguished name, or "" when unset.
func (o *Object) DN() string {
	attr, ok := o.attrs[AttributeDN]
	if !ok {
		return ""
	}
	dn, _ := attr.value.(string)
	return dn
}

// SetDN changes the local DN and rekeys the batch. It records no change.
func (o *Object) SetDN(dn string) {
	o.Refresh(map[string]any{AttributeDN: dn})
}

// Get returns the value of name.
func (o *Object) Get(name string) (any, bool) {
	attr, ok := o.attrs[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return attr.value, true
}

// Has reports whether name holds a value.
func (o *Object) Has(name string) bool {
	_, ok := o.attrs[strings.ToLower(name)]
	return ok
}

// Names returns the attribute names, sorted case-insensitively.
func (o *Object) Names() []string {
	names := make([]string, 0, len(o.attrs))
	for _, attr := range o.attrs {
		names = append(names, attr.name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return names
}

// Attributes returns a copy of the attributes keyed by their stored casing.
func (o *Object) Attributes() map[string]any {
	out := make(map[string]any, len(o.attrs))
	for _, attr := range o.attrs {
		out[attr.name] = attr.value
	}
	return out
}

// isDN reports whether name is the dn attribute, which mutators do not record.
func isDN(name string) bool {
	return strings.EqualFold(name, AttributeDN)
}

// Set replaces all values of name. Setting dn behaves like SetDN.
func (o *Object) Set(name string, value any) {
	if isDN(name) {
		dn, _ := value.(string)
		o.SetDN(dn)
		return
	}
	o.store(name, value)
	o.batch.Replace(name, Values(value)...)
}

// Add appends values to name. The dn attribute is single-valued and is
// left unchanged.
func (o *Object) Add(name string, values ...any) {
	if isDN(name) {
		return
	}
	current, _ := o.Get(name)
	o.store(name, append(Values(current), values...))
	o.batch.Add(name, values...)
}

// Remove deletes the given values from name. The dn attribute is left
// unchanged.
func (o *Object) Remove(name string, values ...any) {
	if isDN(name) {
		return
	}
	if current, ok := o.Get(name); ok {
		remaining := slices.DeleteFunc(Values(current), func(v any) bool {
			return slices.ContainsFunc(values, func(r any) bool { return reflect.DeepEqual(v, r) })
		})
		if len(remaining) == 0 {
			delete(o.attrs, strings.ToLower(name))
		} else {
			o.store(name, remaining)
		}
	}
	o.batch.Remove(name, values...)
}

// Reset removes every value of name. The dn attribute is left unchanged.
func (o *Object) Reset(name string) {
	if isDN(name) {
		return
	}
	delete(o.attrs, strings.ToLower(name))
	o.batch.RemoveAll(name)
}

// Refresh overwrites local attribute values without recording changes.
// Refreshing the dn attribute rekeys the batch.
func (o *Object) Refresh(values map[string]any) {
	for name, value := range values {
		o.store(name, value)
		if strings.EqualFold(name, AttributeDN) {
			dn, _ := value.(string)
			o.batch.SetDN(dn)
		}
	}
}

func (o *Object) store(name string, value any) {
	key := strings.ToLower(name)
	if attr, ok := o.attrs[key]; ok {
		attr.value = value
		return
	}
	o.attrs[key] = &attribute{name: name, value: value}
}

// Batch returns the pending change log.
func (o *Object) Batch() *Batch {
	return o.batch
}

// ResetBatch discards pending changes, keeping the batch keyed to the current DN.
func (o *Object) ResetBatch() {
	o.batch = NewBatch(o.DN())
}

// Values flattens an attribute value into its value list. Slices other than
// []byte are expanded; nil yields no values.
func Values(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return slices.Clone(v)
	case []byte, string:
		return []any{v}
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return []any{value}
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
