package manager

import (
	"context"
	"fmt"

	ldapclient "github.com/isometry/ldapom/internal/ldap"
	"github.com/isometry/ldapom/internal/object"
	"github.com/isometry/ldapom/internal/schema"
)

// buildRDN composes the RDN of obj from its schema's naming attribute.
// Multi-valued RDNs (cn=a+sn=b) are not supported and are rejected.
func (m *ObjectManager) buildRDN(ctx context.Context, obj *object.Object) (string, error) {
	if obj.Type() == "" {
		return "", ldapclient.NewPreconditionError("build_rdn", obj.DN(),
			"object has no type, so its naming attribute is unknown")
	}

	s, err := m.schemas.Get(m.client.SchemaFlavor(), obj.Type())
	if err != nil {
		return "", err
	}

	wireName, ok := s.LDAPName(schema.AttributeName)
	if !ok {
		return "", ldapclient.NewSchemaError("build_rdn", schema.AttributeName,
			fmt.Sprintf("schema %s/%s does not map the naming attribute", s.Flavor, s.ObjectType))
	}

	value, err := m.rdnValue(ctx, obj)
	if err != nil {
		return "", err
	}

	return ldapclient.BuildRDN(wireName, value), nil
}

// rdnValue returns the held name value, looking it up when it was not fetched.
func (m *ObjectManager) rdnValue(ctx context.Context, obj *object.Object) (string, error) {
	value, ok := obj.Get(schema.AttributeName)
	if !ok {
		found, err := m.query.SelectSingleAttribute(ctx, obj.Type(), schema.AttributeName, obj.DN())
		if err != nil {
			return "", err
		}
		if found == nil {
			return "", ldapclient.NewNotFoundError("build_rdn", obj.DN(), "entry not found while resolving its name")
		}
		if value, ok = found.Get(schema.AttributeName); !ok {
			return "", ldapclient.NewNotFoundError("build_rdn", obj.DN(), "entry has no name value")
		}
	}

	values := object.Values(value)
	switch len(values) {
	case 0:
		return "", ldapclient.NewNotFoundError("build_rdn", obj.DN(), "entry has no name value")
	case 1:
	default:
		return "", ldapclient.NewPreconditionError("build_rdn", obj.DN(), "multi-valued RDNs are not supported")
	}

	if s, ok := values[0].(string); ok {
		return s, nil
	}
	return fmt.Sprint(values[0]), nil
}
