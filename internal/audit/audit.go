// Package audit records directory object lifecycle events to PostgreSQL.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/isometry/ldapom/internal/event"
	ldapclient "github.com/isometry/ldapom/internal/ldap"
	"github.com/isometry/ldapom/internal/object"
)

const (
	CreateTable = `
		CREATE TABLE IF NOT EXISTS ldapom_audit (
			id          BIGSERIAL PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL,
			event       TEXT NOT NULL,
			dn          TEXT NOT NULL,
			object_type TEXT NOT NULL,
			attributes  TEXT[] NOT NULL,
			operator    TEXT,
			trace_id    TEXT
		)`

	InsertEvent = `
		INSERT INTO ldapom_audit (recorded_at, event, dn, object_type, attributes, operator, trace_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// Execer is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Recorder writes one row per dispatched event. Write failures are logged
// and never propagate to the directory operation that raised the event.
type Recorder struct {
	db  Execer
	now func() time.Time
}

func NewRecorder(db Execer) *Recorder {
	return &Recorder{
		db:  db,
		now: time.Now,
	}
}

// EnsureTable creates the audit table if it does not exist.
func (r *Recorder) EnsureTable(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, CreateTable); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

// Subscribe registers the recorder on bus for kinds, or every kind when none
// are given.
func (r *Recorder) Subscribe(bus *event.Bus, kinds ...event.Kind) {
	if len(kinds) == 0 {
		kinds = event.AllKinds()
	}
	bus.Subscribe(r.Handle, kinds...)
}

// Handle records e. It is an event.Handler.
func (r *Recorder) Handle(ctx context.Context, e event.Event) {
	if e.Object == nil {
		return
	}

	row := []any{
		r.now().UTC(),
		string(e.Kind),
		e.Object.DN(),
		e.Object.Type(),
		changedAttributes(e.Object),
		nullable(OperatorFrom(ctx)),
		nullable(TraceIDFrom(ctx)),
	}

	if _, err := r.db.Exec(ctx, InsertEvent, row...); err != nil {
		ldapclient.LogLDAPError(ctx, ldapclient.SubsystemAudit, "record_event", err, map[string]any{
			"event": string(e.Kind),
			"dn":    e.Object.DN(),
		})
		return
	}

	ldapclient.NewTFLogger(ctx, ldapclient.SubsystemAudit).Debug("Recorded audit event", map[string]any{
		"event": string(e.Kind),
		"dn":    e.Object.DN(),
	})
}

// changedAttributes lists the attributes named by the pending batch, in
// first-change order and without repeats.
func changedAttributes(obj *object.Object) []string {
	changes := obj.Batch().Changes()
	seen := make(map[string]bool, len(changes))
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		if !seen[c.Attribute] {
			seen[c.Attribute] = true
			names = append(names, c.Attribute)
		}
	}
	return names
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
