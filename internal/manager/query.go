package manager

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/isometry/ldapom/internal/hydrator"
	ldapclient "github.com/isometry/ldapom/internal/ldap"
	"github.com/isometry/ldapom/internal/object"
	"github.com/isometry/ldapom/internal/schema"
)

// Querier fetches single attributes of known entries.
type Querier interface {
	// SelectSingleAttribute returns the entry at dn holding only attribute,
	// or nil when no such entry exists.
	SelectSingleAttribute(ctx context.Context, objectType, attribute, dn string) (*object.Object, error)
}

// LDAPQuerier is a Querier backed by base-scope searches.
type LDAPQuerier struct {
	client  ldapclient.Client
	schemas schema.Lookup
}

func NewLDAPQuerier(client ldapclient.Client, schemas schema.Lookup) *LDAPQuerier {
	return &LDAPQuerier{
		client:  client,
		schemas: schemas,
	}
}

func (q *LDAPQuerier) SelectSingleAttribute(ctx context.Context, objectType, attribute, dn string) (*object.Object, error) {
	s, err := q.schemas.Get(q.client.SchemaFlavor(), objectType)
	if err != nil {
		return nil, err
	}

	wireName, ok := s.LDAPName(attribute)
	if !ok {
		return nil, ldapclient.NewSchemaError("select_attribute", attribute,
			fmt.Sprintf("schema %s/%s does not map attribute", s.Flavor, s.ObjectType))
	}

	filter := "(objectClass=*)"
	if n := len(s.ObjectClasses); n > 0 {
		filter = fmt.Sprintf("(objectClass=%s)", ldap.EscapeFilter(s.ObjectClasses[n-1]))
	}

	result, err := q.client.Search(ctx, &ldapclient.SearchRequest{
		BaseDN:     dn,
		Scope:      ldapclient.ScopeBaseObject,
		Filter:     filter,
		Attributes: []string{wireName},
		SizeLimit:  1,
	})
	if err != nil {
		return nil, err
	}

	if len(result.Entries) == 0 {
		return nil, nil
	}

	h := hydrator.NewObjectHydrator(s)
	h.SetOperationType(schema.OperationRead)
	h.SetSelectedAttributes(attribute)
	h.SetLogger(ldapclient.NewTFLogger(ctx, ldapclient.SubsystemHydrator))

	return h.HydrateFromLDAP(hydrator.EntryFromLDAP(result.Entries[0]))
}
