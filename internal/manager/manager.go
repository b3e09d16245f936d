// Package manager applies domain object changes to the directory.
package manager

import (
	"context"
	"fmt"

	"github.com/isometry/ldapom/internal/event"
	"github.com/isometry/ldapom/internal/hydrator"
	ldapclient "github.com/isometry/ldapom/internal/ldap"
	"github.com/isometry/ldapom/internal/object"
	"github.com/isometry/ldapom/internal/schema"
)

// ObjectManager creates, modifies, moves and deletes directory objects.
//
// Every operation runs synchronously on the caller's goroutine. Transport
// errors are returned unchanged and are never retried; a failed Persist
// leaves the object's batch intact so the caller may retry it. Replaying a
// batch the server partially applied is not guaranteed to be idempotent.
type ObjectManager struct {
	client  ldapclient.Client
	schemas schema.Lookup
	events  event.Dispatcher
	query   Querier
}

// NewObjectManager creates a manager. A nil dispatcher discards events.
func NewObjectManager(client ldapclient.Client, schemas schema.Lookup, events event.Dispatcher) *ObjectManager {
	if events == nil {
		events = event.Nop{}
	}

	return &ObjectManager{
		client:  client,
		schemas: schemas,
		events:  events,
		query:   NewLDAPQuerier(client, schemas),
	}
}

// SetQuerier replaces the lookup used to resolve RDN values that were not fetched.
func (m *ObjectManager) SetQuerier(q Querier) {
	m.query = q
}

// Create adds obj to the directory with all of its attributes.
func (m *ObjectManager) Create(ctx context.Context, obj *object.Object) error {
	dn, err := requireDN("create", obj)
	if err != nil {
		return err
	}

	return ldapclient.LogOperation(ctx, ldapclient.SubsystemManager, "create", objectFields(obj), func() error {
		m.events.Dispatch(ctx, event.Event{Kind: event.BeforeCreate, Object: obj})

		h, err := m.hydrator(ctx, obj, schema.OperationCreate)
		if err != nil {
			return err
		}

		entry, err := h.HydrateToLDAPEntry(obj)
		if err != nil {
			return err
		}

		if err := m.client.Add(ctx, &ldapclient.AddRequest{DN: dn, Attributes: entry}); err != nil {
			return err
		}

		obj.ResetBatch()
		m.events.Dispatch(ctx, event.Event{Kind: event.AfterCreate, Object: obj})
		return nil
	})
}

// Persist sends the object's pending changes as one batched modify. An
// empty batch is a no-op and fires no events.
func (m *ObjectManager) Persist(ctx context.Context, obj *object.Object) error {
	if obj.Batch().IsEmpty() {
		return nil
	}

	dn, err := requireDN("persist", obj)
	if err != nil {
		return err
	}

	fields := objectFields(obj)
	fields["change_count"] = obj.Batch().Len()

	return ldapclient.LogOperation(ctx, ldapclient.SubsystemManager, "persist", fields, func() error {
		m.events.Dispatch(ctx, event.Event{Kind: event.BeforeModify, Object: obj})

		h, err := m.hydrator(ctx, obj, schema.OperationModify)
		if err != nil {
			return err
		}

		changes, err := h.HydrateToLDAP(obj)
		if err != nil {
			return err
		}

		if err := m.client.ModifyBatch(ctx, dn, changes); err != nil {
			return err
		}

		obj.ResetBatch()
		m.events.Dispatch(ctx, event.Event{Kind: event.AfterModify, Object: obj})
		return nil
	})
}

// Delete removes obj from the directory.
func (m *ObjectManager) Delete(ctx context.Context, obj *object.Object) error {
	dn, err := requireDN("delete", obj)
	if err != nil {
		return err
	}

	return ldapclient.LogOperation(ctx, ldapclient.SubsystemManager, "delete", objectFields(obj), func() error {
		m.events.Dispatch(ctx, event.Event{Kind: event.BeforeDelete, Object: obj})

		if err := m.client.Delete(ctx, dn); err != nil {
			return err
		}

		m.events.Dispatch(ctx, event.Event{Kind: event.AfterDelete, Object: obj})
		return nil
	})
}

// Move relocates obj below newParent, keeping its RDN value. On success the
// object's DN and batch are rekeyed to the new location.
func (m *ObjectManager) Move(ctx context.Context, obj *object.Object, newParent string) error {
	dn, err := requireDN("move", obj)
	if err != nil {
		return err
	}

	if err := ldapclient.ValidateDNSyntax(newParent); err != nil {
		return ldapclient.NewPreconditionError("move", dn, fmt.Sprintf("invalid destination: %v", err))
	}

	if err := checkDestination(dn, newParent); err != nil {
		return err
	}

	rdn, err := m.buildRDN(ctx, obj)
	if err != nil {
		return err
	}

	fields := objectFields(obj)
	fields["rdn"] = rdn
	fields["new_parent"] = newParent

	return ldapclient.LogOperation(ctx, ldapclient.SubsystemManager, "move", fields, func() error {
		m.events.Dispatch(ctx, event.Event{Kind: event.BeforeMove, Object: obj})

		if err := m.client.Move(ctx, dn, rdn, newParent); err != nil {
			return err
		}

		obj.SetDN(rdn + "," + newParent)
		m.events.Dispatch(ctx, event.Event{Kind: event.AfterMove, Object: obj})
		return nil
	})
}

// hydrator returns a hydrator configured for obj's schema, or for raw mode
// when obj has no type.
func (m *ObjectManager) hydrator(ctx context.Context, obj *object.Object, op schema.OperationType) (*hydrator.ObjectHydrator, error) {
	h := hydrator.NewObjectHydrator()
	h.SetOperationType(op)
	h.SetLogger(ldapclient.NewTFLogger(ctx, ldapclient.SubsystemHydrator))

	if obj.Type() != "" {
		s, err := m.schemas.Get(m.client.SchemaFlavor(), obj.Type())
		if err != nil {
			return nil, err
		}
		h.SetSchemas(s)
	}

	return h, nil
}

// checkDestination rejects moving an entry below itself.
func checkDestination(dn, newParent string) error {
	inside, err := ldapclient.IsDNChild(newParent, dn)
	if err != nil {
		return ldapclient.NewPreconditionError("move", dn, err.Error())
	}
	same, err := ldapclient.EqualDN(newParent, dn)
	if err != nil {
		return ldapclient.NewPreconditionError("move", dn, err.Error())
	}
	if inside || same {
		return ldapclient.NewPreconditionError("move", dn, "cannot move an entry below itself")
	}
	return nil
}

func requireDN(operation string, obj *object.Object) (string, error) {
	dn := obj.DN()
	if dn == "" {
		return "", ldapclient.NewPreconditionError(operation, "", "object has no distinguished name")
	}
	return dn, nil
}

func objectFields(obj *object.Object) map[string]any {
	return map[string]any{
		"dn":          obj.DN(),
		"object_type": obj.Type(),
	}
}
