package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/isometry/ldapom/internal/event"
	"github.com/isometry/ldapom/internal/object"
)

// MockExecer implements Execer for testing.
type MockExecer struct {
	mock.Mock
}

func (m *MockExecer) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(append([]any{ctx, sql}, arguments...)...)
	return pgconn.NewCommandTag(args.String(0)), args.Error(1)
}

var fixedTime = time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)

func newTestRecorder(db Execer) *Recorder {
	r := NewRecorder(db)
	r.now = func() time.Time { return fixedTime }
	return r
}

func TestRecorder_EnsureTable(t *testing.T) {
	db := &MockExecer{}
	db.On("Exec", mock.Anything, CreateTable).Return("CREATE TABLE", nil).Once()

	require.NoError(t, newTestRecorder(db).EnsureTable(context.Background()))
	db.AssertExpectations(t)
}

func TestRecorder_EnsureTableError(t *testing.T) {
	db := &MockExecer{}
	db.On("Exec", mock.Anything, CreateTable).Return("", errors.New("permission denied for schema public")).Once()

	err := newTestRecorder(db).EnsureTable(context.Background())
	assert.ErrorContains(t, err, "create audit table")
}

func TestRecorder_Handle(t *testing.T) {
	db := &MockExecer{}
	r := newTestRecorder(db)

	obj := object.New("user", map[string]any{"dn": "cn=Alice,dc=example,dc=com"})
	obj.Set("description", "contractor")
	obj.Add("otherPhones", "555-0100")
	obj.Set("description", "employee")

	operator := "svc-ldapom"
	traceID := "trace-1"
	db.On("Exec", mock.Anything, InsertEvent,
		fixedTime,
		"before.modify",
		"cn=Alice,dc=example,dc=com",
		"user",
		[]string{"description", "otherPhones"},
		&operator,
		&traceID,
	).Return("INSERT 0 1", nil).Once()

	ctx := WithTraceID(WithOperator(context.Background(), operator), traceID)
	r.Handle(ctx, event.Event{Kind: event.BeforeModify, Object: obj})

	db.AssertExpectations(t)
}

func TestRecorder_HandleWithoutMetadata(t *testing.T) {
	db := &MockExecer{}
	r := newTestRecorder(db)
	obj := object.New("", map[string]any{"dn": "cn=Alice,dc=example,dc=com"})

	db.On("Exec", mock.Anything, InsertEvent,
		fixedTime, "after.delete", "cn=Alice,dc=example,dc=com", "", []string{},
		(*string)(nil), (*string)(nil),
	).Return("INSERT 0 1", nil).Once()

	r.Handle(context.Background(), event.Event{Kind: event.AfterDelete, Object: obj})

	db.AssertExpectations(t)
}

func TestRecorder_HandleSwallowsErrors(t *testing.T) {
	db := &MockExecer{}
	r := newTestRecorder(db)
	obj := object.New("", map[string]any{"dn": "cn=Alice,dc=example,dc=com"})

	db.On("Exec", mock.Anything, InsertEvent, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	).Return("", errors.New("connection reset by peer")).Once()

	assert.NotPanics(t, func() {
		r.Handle(context.Background(), event.Event{Kind: event.AfterDelete, Object: obj})
	})
	db.AssertExpectations(t)
}

func TestRecorder_IgnoresEventsWithoutObject(t *testing.T) {
	db := &MockExecer{}
	newTestRecorder(db).Handle(context.Background(), event.Event{Kind: event.AfterDelete})
	db.AssertNotCalled(t, "Exec")
}

func TestRecorder_Subscribe(t *testing.T) {
	db := &MockExecer{}
	r := newTestRecorder(db)
	bus := event.NewBus()
	r.Subscribe(bus, event.AfterMove)

	db.On("Exec", mock.Anything, InsertEvent, mock.Anything, "after.move", mock.Anything,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	).Return("INSERT 0 1", nil).Once()

	obj := object.New("user", map[string]any{"dn": "cn=Alice,ou=New,dc=example,dc=com"})
	bus.Dispatch(context.Background(), event.Event{Kind: event.BeforeMove, Object: obj})
	bus.Dispatch(context.Background(), event.Event{Kind: event.AfterMove, Object: obj})

	db.AssertExpectations(t)
	db.AssertNumberOfCalls(t, "Exec", 1)
}

func TestContextMetadata(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, OperatorFrom(ctx))
	assert.Empty(t, TraceIDFrom(ctx))

	ctx = WithOperator(ctx, "alice")
	ctx = WithTraceID(ctx, "abc")
	assert.Equal(t, "alice", OperatorFrom(ctx))
	assert.Equal(t, "abc", TraceIDFrom(ctx))
}
