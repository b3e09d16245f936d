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

// AttributeHydrator hydrates plain attribute maps, for callers that only
// read or display entries.
type AttributeHydrator struct {
	Config
}

var _ Hydrator[map[string]any] = (*AttributeHydrator)(nil)

func NewAttributeHydrator(schemas ...*schema.Schema) *AttributeHydrator {
	h := &AttributeHydrator{}
	h.SetSchemas(schemas...)
	return h
}

func (h *AttributeHydrator) HydrateFromLDAP(entry Entry) (map[string]any, error) {
	return h.fromLDAP(entry)
}

func (h *AttributeHydrator) HydrateAllFromLDAP(entries []Entry) iter.Seq2[map[string]any, error] {
	return seq(entries, h.HydrateFromLDAP)
}

// HydrateToLDAP replaces every attribute in attrs except dn, in name order.
func (h *AttributeHydrator) HydrateToLDAP(attrs map[string]any) ([]ldap.Change, error) {
	out := make([]ldap.Change, 0, len(attrs))

	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		if strings.EqualFold(name, object.AttributeDN) {
			continue
		}

		wireName, attr := h.wireName(name)
		values, err := h.valuesToLDAP(attr, object.Values(attrs[name]))
		if err != nil {
			return nil, err
		}

		out = append(out, ldap.Change{
			Operation:    ldap.ReplaceAttribute,
			Modification: ldap.PartialAttribute{Type: wireName, Vals: values},
		})
	}

	return out, nil
}
