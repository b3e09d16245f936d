package hydrator

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/isometry/ldapom/internal/object"
	"github.com/isometry/ldapom/internal/schema"
)

// ObjectHydrator hydrates *object.Object values.
type ObjectHydrator struct {
	Config
}

var _ Hydrator[*object.Object] = (*ObjectHydrator)(nil)

// NewObjectHydrator creates a hydrator using schemas (none for raw mode).
func NewObjectHydrator(schemas ...*schema.Schema) *ObjectHydrator {
	h := &ObjectHydrator{}
	h.SetSchemas(schemas...)
	return h
}

// HydrateFromLDAP builds an object from a wire entry. The object type is
// taken from the first schema in effect.
func (h *ObjectHydrator) HydrateFromLDAP(entry Entry) (*object.Object, error) {
	attrs, err := h.fromLDAP(entry)
	if err != nil {
		return nil, err
	}

	var objectType string
	if len(h.schemas) > 0 {
		objectType = h.schemas[0].ObjectType
	}

	return object.New(objectType, attrs), nil
}

func (h *ObjectHydrator) HydrateAllFromLDAP(entries []Entry) iter.Seq2[*object.Object, error] {
	return seq(entries, h.HydrateFromLDAP)
}

// HydrateToLDAP converts the object's pending batch to wire changes, one per
// recorded change and in recording order. The batch itself is not modified.
func (h *ObjectHydrator) HydrateToLDAP(obj *object.Object) ([]ldap.Change, error) {
	changes := obj.Batch().Changes()
	out := make([]ldap.Change, 0, len(changes))

	for _, change := range changes {
		wireName, attr := h.wireName(change.Attribute)

		var values []string
		if change.Kind != object.ChangeRemoveAll {
			var err error
			values, err = h.valuesToLDAP(attr, change.Values)
			if err != nil {
				return nil, err
			}
		}

		out = append(out, ldap.Change{
			Operation:    changeOperation(change.Kind),
			Modification: ldap.PartialAttribute{Type: wireName, Vals: values},
		})
	}

	return out, nil
}

// HydrateToLDAPEntry converts every attribute of obj except its DN to wire
// form, for creating the entry. objectClass defaults to the classes declared
// by the schemas.
func (h *ObjectHydrator) HydrateToLDAPEntry(obj *object.Object) (Entry, error) {
	attrs := obj.Attributes()
	entry := make(Entry, len(attrs)+1)

	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		if strings.EqualFold(name, object.AttributeDN) {
			continue
		}

		wireName, attr := h.wireName(name)
		values, err := h.valuesToLDAP(attr, object.Values(attrs[name]))
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			entry[wireName] = values
		}
	}

	if !obj.Has("objectClass") {
		if classes := h.objectClasses(); len(classes) > 0 {
			entry["objectClass"] = classes
		}
	}

	return entry, nil
}

func changeOperation(kind object.ChangeKind) uint {
	switch kind {
	case object.ChangeAdd:
		return ldap.AddAttribute
	case object.ChangeReplace:
		return ldap.ReplaceAttribute
	default:
		return ldap.DeleteAttribute
	}
}
